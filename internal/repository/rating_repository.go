package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository/base"
)

type RatingRepository struct {
	*base.Repository
}

func NewRatingRepository(db base.DBTX) *RatingRepository {
	return &RatingRepository{Repository: base.NewRepository(db)}
}

// InsertRating сохраняет оценку
func (r *RatingRepository) InsertRating(ctx context.Context, rating *model.Rating) error {
	query := `
		INSERT INTO ratings (user_id, appointment_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, rating.UserID, rating.AppointmentID, rating.Rating, rating.Comment).
		Scan(&rating.ID, &rating.CreatedAt)
	if err != nil {
		if base.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert rating: %w", ErrMissingReference)
		}
		return fmt.Errorf("insert rating: %w", err)
	}

	return nil
}

// ListRatings получает все оценки, новые первыми
func (r *RatingRepository) ListRatings(ctx context.Context) ([]*model.Rating, error) {
	query := `
		SELECT id, user_id, appointment_id, rating, comment, created_at
		FROM ratings
		ORDER BY created_at DESC, id DESC
	`
	return r.listRatings(ctx, query)
}

// FindRatingsByAppointments получает оценки для набора записей
func (r *RatingRepository) FindRatingsByAppointments(ctx context.Context, appointmentIDs []int64) ([]*model.Rating, error) {
	if len(appointmentIDs) == 0 {
		return []*model.Rating{}, nil
	}

	query := `
		SELECT id, user_id, appointment_id, rating, comment, created_at
		FROM ratings
		WHERE appointment_id = ANY($1)
		ORDER BY id
	`
	return r.listRatings(ctx, query, appointmentIDs)
}

func (r *RatingRepository) listRatings(ctx context.Context, query string, args ...any) ([]*model.Rating, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	ratings := []*model.Rating{}
	for rows.Next() {
		var rating model.Rating
		err := rows.Scan(
			&rating.ID,
			&rating.UserID,
			&rating.AppointmentID,
			&rating.Rating,
			&rating.Comment,
			&rating.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, &rating)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}

	return ratings, nil
}
