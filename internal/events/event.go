// Package events описывает доменные события записей и способы их публикации.
package events

import (
	"context"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/google/uuid"
)

type Type string

const (
	AppointmentCreated           Type = "appointment.created"
	AppointmentStatusChanged     Type = "appointment.status_changed"
	AppointmentTechnicianChanged Type = "appointment.technician_changed"
	AssignmentFailed             Type = "appointment.assignment_failed"
)

// Event структурированное событие из операций планировщика
type Event struct {
	ID         string    `json:"event_id"`
	Type       Type      `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`

	AppointmentID        int64                   `json:"appointment_id,omitempty"`
	CustomerID           int64                   `json:"customer_id,omitempty"`
	ServiceID            int64                   `json:"service_id,omitempty"`
	TechnicianID         int64                   `json:"technician_id,omitempty"`
	PreviousTechnicianID int64                   `json:"previous_technician_id,omitempty"`
	Status               model.AppointmentStatus `json:"status,omitempty"`
	PreviousStatus       model.AppointmentStatus `json:"previous_status,omitempty"`
	StartTime            time.Time               `json:"start_time,omitempty"`
	Reason               string                  `json:"reason,omitempty"`
}

// New создаёт событие с новым ID
func New(t Type) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}

// ForAppointment заполняет поля события из записи
func (e Event) ForAppointment(appt *model.Appointment) Event {
	e.AppointmentID = appt.ID
	e.CustomerID = appt.CustomerID
	e.ServiceID = appt.ServiceID
	e.TechnicianID = appt.TechnicianID
	e.Status = appt.Status
	e.StartTime = appt.StartTime
	return e
}

// Publisher получатель доменных событий
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Multi публикует событие во все получатели и возвращает первую ошибку
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
