package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
)

// Availability отвечает, свободен ли техник в интервале [start, end).
// Используется и при назначении, и при переназначении техника.
type Availability struct {
	store repository.AppointmentStore
}

func NewAvailability(store repository.AppointmentStore) *Availability {
	return &Availability{store: store}
}

// IsTechnicianAvailable возвращает false, если у техника есть pending или confirmed запись,
// пересекающая интервал. Запись excludeID не учитывается.
func (a *Availability) IsTechnicianAvailable(ctx context.Context, technicianID int64, start, end time.Time, excludeID int64) (bool, error) {
	busy, err := a.store.ExistsOverlap(ctx, technicianID, start, end, model.ActiveStatuses, excludeID)
	if err != nil {
		return false, storeError("check technician availability", err)
	}
	return !busy, nil
}
