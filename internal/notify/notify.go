// Package notify доставляет клиентам уведомления об изменении статуса записи.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
	"go.uber.org/zap"
)

// ErrNoRecipient у клиента нет адреса для канала
var ErrNoRecipient = errors.New("recipient has no address for channel")

// StatusChange данные уведомления. Сериализуется в очередь задач.
type StatusChange struct {
	AppointmentID  int64                   `json:"appointment_id"`
	CustomerID     int64                   `json:"customer_id"`
	Status         model.AppointmentStatus `json:"status"`
	StartTime      time.Time               `json:"start_time"`
	ServiceName    string                  `json:"service_name"`
	TechnicianName string                  `json:"technician_name"`
}

// NewStatusChange собирает уведомление из загруженной записи
func NewStatusChange(details *model.AppointmentDetails, status model.AppointmentStatus) StatusChange {
	change := StatusChange{
		AppointmentID: details.ID,
		CustomerID:    details.CustomerID,
		Status:        status,
		StartTime:     details.StartTime,
	}
	if details.Service != nil {
		change.ServiceName = details.Service.Name
	}
	if details.Technician != nil {
		change.TechnicianName = details.Technician.Name
	}
	return change
}

// Channel канал доставки: почта, Telegram
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient *model.User, msg *Message) error
}

// Deliverer отправляет уведомление клиенту во все каналы, для которых у него есть адрес
type Deliverer struct {
	users    repository.UserDirectory
	renderer *Renderer
	channels []Channel
	logger   *zap.Logger
}

func NewDeliverer(users repository.UserDirectory, renderer *Renderer, logger *zap.Logger, channels ...Channel) *Deliverer {
	return &Deliverer{
		users:    users,
		renderer: renderer,
		channels: channels,
		logger:   logger,
	}
}

// Deliver возвращает ошибку, только если ни один из подходящих каналов не сработал
func (d *Deliverer) Deliver(ctx context.Context, change StatusChange) error {
	customer, err := d.users.FindUser(ctx, change.CustomerID)
	if err != nil {
		return fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		d.logger.Warn("Skipping notification, customer not found",
			zap.Int64("appointment_id", change.AppointmentID),
			zap.Int64("customer_id", change.CustomerID),
		)
		return nil
	}

	msg, err := d.renderer.Render(customer, change)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}

	var (
		attempted int
		failures  []error
	)
	for _, ch := range d.channels {
		err := ch.Send(ctx, customer, msg)
		if errors.Is(err, ErrNoRecipient) {
			continue
		}
		attempted++
		if err != nil {
			d.logger.Error("Failed to send notification",
				zap.String("channel", ch.Name()),
				zap.Int64("appointment_id", change.AppointmentID),
				zap.Error(err),
			)
			failures = append(failures, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		d.logger.Info("Notification sent",
			zap.String("channel", ch.Name()),
			zap.Int64("appointment_id", change.AppointmentID),
			zap.String("status", string(change.Status)),
		)
	}

	if attempted == 0 {
		d.logger.Warn("No notification channel available for customer",
			zap.Int64("appointment_id", change.AppointmentID),
			zap.Int64("customer_id", customer.ID),
		)
		return nil
	}
	if len(failures) == attempted {
		return errors.Join(failures...)
	}
	return nil
}
