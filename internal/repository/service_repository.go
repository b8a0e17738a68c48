package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository/base"
)

type ServiceRepository struct {
	*base.Repository
}

func NewServiceRepository(db base.DBTX) *ServiceRepository {
	return &ServiceRepository{Repository: base.NewRepository(db)}
}

// FindService получает услугу по ID
func (r *ServiceRepository) FindService(ctx context.Context, id int64) (*model.Service, error) {
	query := `
		SELECT id, name, estimated_duration_minutes, created_at
		FROM services
		WHERE id = $1
	`

	var service model.Service
	err := r.QueryRow(ctx, query, id).Scan(
		&service.ID,
		&service.Name,
		&service.EstimatedDurationMinutes,
		&service.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get service by id: %w", err)
	}

	return &service, nil
}

// AllServices получает весь каталог услуг
func (r *ServiceRepository) AllServices(ctx context.Context) ([]*model.Service, error) {
	query := `
		SELECT id, name, estimated_duration_minutes, created_at
		FROM services
		ORDER BY id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}
	defer rows.Close()

	services := []*model.Service{}
	for rows.Next() {
		var service model.Service
		if err := rows.Scan(&service.ID, &service.Name, &service.EstimatedDurationMinutes, &service.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, &service)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	return services, nil
}
