package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, customer_user_id, technician_user_id, service_id, start_time, end_time, status, created_at, updated_at`

type AppointmentRepository struct {
	*base.Repository
}

// NewAppointmentRepository создаёт репозиторий поверх пула или транзакции
func NewAppointmentRepository(db base.DBTX) *AppointmentRepository {
	return &AppointmentRepository{Repository: base.NewRepository(db)}
}

// Insert создаёт новую запись
func (r *AppointmentRepository) Insert(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (customer_user_id, technician_user_id, service_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		appt.CustomerID,
		appt.TechnicianID,
		appt.ServiceID,
		appt.StartTime.UTC(),
		appt.EndTime.UTC(),
		appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)

	if err != nil {
		if base.IsExclusionViolation(err) {
			return fmt.Errorf("insert appointment: %w", ErrTechnicianOverlap)
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	return nil
}

// Find получает запись по ID
func (r *AppointmentRepository) Find(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appt, err := scanAppointment(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}

	return appt, nil
}

// Update сохраняет техника и статус
func (r *AppointmentRepository) Update(ctx context.Context, appt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET technician_user_id = $1, status = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`

	err := r.QueryRow(ctx, query, appt.TechnicianID, appt.Status, appt.ID).Scan(&appt.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("appointment not found")
		}
		if base.IsExclusionViolation(err) {
			return fmt.Errorf("update appointment: %w", ErrTechnicianOverlap)
		}
		return fmt.Errorf("update appointment: %w", err)
	}

	return nil
}

// Count считает записи по фильтру
func (r *AppointmentRepository) Count(ctx context.Context, filter model.AppointmentFilter) (int, error) {
	where, args := buildAppointmentWhere(filter)
	query := `SELECT COUNT(*) FROM appointments ` + where

	var count int
	if err := r.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}

	return count, nil
}

// ExistsOverlap проверяет пересечение с записями техника
func (r *AppointmentRepository) ExistsOverlap(
	ctx context.Context,
	technicianID int64,
	start, end time.Time,
	statuses []model.AppointmentStatus,
	excludeID int64,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE technician_user_id = $1
			  AND status = ANY($2)
			  AND start_time < $4
			  AND end_time > $3
			  AND id <> $5
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, technicianID, statusStrings(statuses), start.UTC(), end.UTC(), excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check technician overlap: %w", err)
	}

	return exists, nil
}

// List получает записи по фильтру
func (r *AppointmentRepository) List(ctx context.Context, filter model.AppointmentFilter, order model.SortOrder) ([]*model.Appointment, error) {
	where, args := buildAppointmentWhere(filter)
	orderBy := "ORDER BY start_time ASC, id ASC"
	if order == model.SortByStartDesc {
		orderBy = "ORDER BY start_time DESC, id DESC"
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments ` + where + ` ` + orderBy

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	appointments := []*model.Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}

	return appointments, nil
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.TechnicianID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func buildAppointmentWhere(f model.AppointmentFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != 0 {
		add("customer_user_id = $%d", f.CustomerID)
	}
	if f.TechnicianID != 0 {
		add("technician_user_id = $%d", f.TechnicianID)
	}
	if f.ParticipantID != 0 {
		args = append(args, f.ParticipantID)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(customer_user_id = $%d OR technician_user_id = $%d)", n, n))
	}
	if !f.StartAt.IsZero() {
		add("start_time = $%d", f.StartAt.UTC())
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To.UTC())
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func statusStrings(statuses []model.AppointmentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
