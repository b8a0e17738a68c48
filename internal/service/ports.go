package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
)

// Stores хранилища, с которыми работают сервисы
type Stores struct {
	Tx           repository.Transactor
	Appointments repository.AppointmentStore
	Users        repository.UserDirectory
	Services     repository.ServiceCatalog
	Ratings      repository.RatingStore
}

// Notifier доставляет уведомления об изменении статуса. Не блокирует вызывающего,
// ошибки доставки логируются внутри.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, details *model.AppointmentDetails, status model.AppointmentStatus)
}

// SchedulerConfig параметры политики записи
type SchedulerConfig struct {
	MaxPerCustomerPerDay int
	SlotCapacity         int
	// ConfirmDeadline после start + ConfirmDeadline запись уже нельзя подтвердить
	ConfirmDeadline time.Duration
	// CompleteLeadTime раньше start - CompleteLeadTime запись нельзя завершить
	CompleteLeadTime time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxPerCustomerPerDay: 3,
		SlotCapacity:         2,
		ConfirmDeadline:      8 * time.Hour,
		CompleteLeadTime:     4 * time.Hour,
	}
}
