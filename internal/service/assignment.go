package service

import (
	"context"
	"sort"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
)

// Assigner выбирает наименее загруженного свободного техника
type Assigner struct {
	users  repository.UserDirectory
	policy TimePolicy
}

func NewAssigner(users repository.UserDirectory, policy TimePolicy) *Assigner {
	return &Assigner{users: users, policy: policy}
}

// AssignTechnician перебирает техников по возрастанию ID, считает их записи за день слота
// и возвращает свободного техника с минимальной загрузкой. При равенстве побеждает меньший ID.
// nil означает, что свободных техников нет.
func (a *Assigner) AssignTechnician(ctx context.Context, store repository.AppointmentStore, start, end time.Time) (*model.User, error) {
	technicians, err := a.users.UsersWithRole(ctx, model.RoleTechnician)
	if err != nil {
		return nil, storeError("list technicians", err)
	}
	sort.SliceStable(technicians, func(i, j int) bool { return technicians[i].ID < technicians[j].ID })

	dayStart, dayEnd := a.policy.Day(start)
	availability := NewAvailability(store)

	var (
		best     *model.User
		bestLoad int
	)
	for _, tech := range technicians {
		free, err := availability.IsTechnicianAvailable(ctx, tech.ID, start, end, 0)
		if err != nil {
			return nil, err
		}
		if !free {
			continue
		}

		load, err := store.Count(ctx, model.AppointmentFilter{
			TechnicianID: tech.ID,
			From:         dayStart,
			To:           dayEnd,
			Statuses:     model.WorkloadStatuses,
		})
		if err != nil {
			return nil, storeError("count technician workload", err)
		}

		if best == nil || load < bestLoad {
			best = tech
			bestLoad = load
		}
	}

	return best, nil
}
