package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_api/internal/events"
	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t, 2)
	customer := f.customer(t)

	appt, err := f.create(t, customer.ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	assert.NotZero(t, appt.ID)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Equal(t, customer.ID, appt.CustomerID)
	assert.Equal(t, f.technicians[0].ID, appt.TechnicianID)
	assert.True(t, appt.StartTime.Equal(at(3, 10, 0)))
	assert.Equal(t, 20*time.Minute, appt.EndTime.Sub(appt.StartTime))

	stored, err := f.store.Find(context.Background(), appt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, appt.TechnicianID, stored.TechnicianID)

	created := f.publisher.ofType(events.AppointmentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, appt.ID, created[0].AppointmentID)
}

func TestCreateAppointmentUsesServiceDuration(t *testing.T) {
	f := newFixture(t, 1)
	long := f.store.AddService(&model.Service{Name: "Long service", EstimatedDurationMinutes: 60})

	appt, err := f.svc.CreateAppointment(context.Background(), f.customer(t).ID, long.ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, appt.EndTime.Sub(appt.StartTime))
}

func TestCreateAppointmentRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, 1)
	customer := f.customer(t)

	tests := []struct {
		name      string
		serviceID int64
		start     string
		want      error
	}{
		{"unparsable time", f.service.ID, "next tuesday", ErrInvalidInput},
		{"sunday", f.service.ID, "2025-06-08 10:00:00", ErrSchedulingViolation},
		{"off grid", f.service.ID, "2025-06-03 10:10:00", ErrSchedulingViolation},
		{"after hours", f.service.ID, "2025-06-03 20:40:00", ErrSchedulingViolation},
		{"in the past", f.service.ID, "2025-06-02 08:00:00", ErrSchedulingViolation},
		{"unknown service", 999, "2025-06-03 10:00:00", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(context.Background(), customer.ID, tt.serviceID, tt.start)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	count, err := f.store.Count(context.Background(), model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateAppointmentDailyLimit(t *testing.T) {
	f := newFixture(t, 3)
	customer := f.customer(t)

	for _, start := range []string{"2025-06-03 10:00:00", "2025-06-03 10:20:00", "2025-06-03 10:40:00"} {
		_, err := f.create(t, customer.ID, start)
		require.NoError(t, err, start)
	}

	_, err := f.create(t, customer.ID, "2025-06-03 11:00:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.ErrorIs(t, err, ErrSchedulingViolation)
	assert.Contains(t, err.Error(), "daily booking limit")

	_, err = f.create(t, customer.ID, "2025-06-04 11:00:00")
	assert.NoError(t, err, "limit is per calendar day")
}

func TestCreateAppointmentDailyLimitCountsCanceled(t *testing.T) {
	f := newFixture(t, 3)
	customer := f.customer(t)
	ctx := context.Background()

	first, err := f.create(t, customer.ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	_, err = f.create(t, customer.ID, "2025-06-03 10:20:00")
	require.NoError(t, err)
	_, err = f.create(t, customer.ID, "2025-06-03 10:40:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, first.ID, "canceled")
	require.NoError(t, err)

	_, err = f.create(t, customer.ID, "2025-06-03 11:00:00")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCreateAppointmentSlotCapacity(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	first, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	_, err = f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	third := f.customer(t)
	_, err = f.create(t, third.ID, "2025-06-03 10:00:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "fully booked")

	_, err = f.svc.UpdateStatus(ctx, first.ID, "canceled")
	require.NoError(t, err)

	_, err = f.create(t, third.ID, "2025-06-03 10:00:00")
	assert.NoError(t, err, "canceled appointments free the slot")
}

func TestCreateAppointmentNoTechnicianAvailable(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	customer := f.customer(t)
	_, err = f.create(t, customer.ID, "2025-06-03 10:00:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTechnicianAvailable)
	assert.NotErrorIs(t, err, ErrSchedulingViolation)

	failed := f.publisher.ofType(events.AssignmentFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, customer.ID, failed[0].CustomerID)
	assert.True(t, failed[0].StartTime.Equal(at(3, 10, 0)))
}

func TestCreateAppointmentWithoutTechnicians(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	assert.ErrorIs(t, err, ErrNoTechnicianAvailable)
}

func TestAssignmentPicksLeastLoadedTechnician(t *testing.T) {
	f := newFixture(t, 2)
	tech1, tech2 := f.technicians[0].ID, f.technicians[1].ID

	a, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, tech1, a.TechnicianID, "tie goes to the lowest id")

	b, err := f.create(t, f.customer(t).ID, "2025-06-03 10:20:00")
	require.NoError(t, err)
	assert.Equal(t, tech2, b.TechnicianID, "tech2 has fewer appointments that day")

	c, err := f.create(t, f.customer(t).ID, "2025-06-03 10:40:00")
	require.NoError(t, err)
	assert.Equal(t, tech1, c.TechnicianID, "tie again, lowest id wins")
}

func TestAssignmentSkipsBusyTechnician(t *testing.T) {
	f := newFixture(t, 2)

	a, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	b, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	assert.Equal(t, f.technicians[0].ID, a.TechnicianID)
	assert.Equal(t, f.technicians[1].ID, b.TechnicianID)
}

func TestAssignmentCountsCompletedWorkload(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	a, err := f.create(t, f.customer(t).ID, "2025-06-03 08:00:00")
	require.NoError(t, err)
	require.Equal(t, f.technicians[0].ID, a.TechnicianID)

	f.now = at(3, 8, 30)
	_, err = f.svc.UpdateStatus(ctx, a.ID, "completed")
	require.NoError(t, err)

	b, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, f.technicians[1].ID, b.TechnicianID, "completed appointments still count as workload")
}

func TestAvailabilityHalfOpenIntervals(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	availability := NewAvailability(f.store)
	tech := f.technicians[0].ID

	free, err := availability.IsTechnicianAvailable(ctx, tech, at(3, 10, 20), at(3, 10, 40), 0)
	require.NoError(t, err)
	assert.True(t, free, "back-to-back slots do not overlap")

	free, err = availability.IsTechnicianAvailable(ctx, tech, at(3, 9, 40), at(3, 10, 0), 0)
	require.NoError(t, err)
	assert.True(t, free)

	free, err = availability.IsTechnicianAvailable(ctx, tech, at(3, 10, 10), at(3, 10, 30), 0)
	require.NoError(t, err)
	assert.False(t, free)

	free, err = availability.IsTechnicianAvailable(ctx, tech, at(3, 10, 0), at(3, 10, 20), appt.ID)
	require.NoError(t, err)
	assert.True(t, free, "excluded appointment does not conflict with itself")
}

func TestUpdateStatusConfirmTooLate(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	f.now = at(3, 19, 0)
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "confirmed")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchedulingViolation)
	assert.Contains(t, err.Error(), "too late")

	f.now = at(3, 18, 0)
	details, err := f.svc.UpdateStatus(context.Background(), appt.ID, "confirmed")
	require.NoError(t, err, "exactly 8 hours after start is still allowed")
	assert.Equal(t, model.AppointmentStatusConfirmed, details.Status)
}

func TestUpdateStatusCompleteTooEarly(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	f.now = at(3, 5, 0)
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "completed")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchedulingViolation)
	assert.Contains(t, err.Error(), "too early")

	f.now = at(3, 6, 0)
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "completed")
	assert.NoError(t, err)
}

func TestUpdateStatusCancelCompleted(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	f.now = at(3, 10, 30)
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "completed")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "canceled")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "pending")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusCompletedCannotReclaimFullSlot(t *testing.T) {
	f := newFixture(t, 3)
	first, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	f.now = at(3, 7, 0)
	_, err = f.svc.UpdateStatus(context.Background(), first.ID, "completed")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
		require.NoError(t, err)
	}

	_, err = f.svc.UpdateStatus(context.Background(), first.ID, "confirmed")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	active, err := f.store.Count(context.Background(), model.AppointmentFilter{
		StartAt:  first.StartTime,
		Statuses: model.ActiveStatuses,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	stored, err := f.store.Find(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
}

func TestCreateAppointmentRejectsStartWithSeconds(t *testing.T) {
	f := newFixture(t, 1)

	// слоты выровнены до секунды: 10:00:30 не считается началом слота 10:00
	_, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:30")
	assert.ErrorIs(t, err, ErrSchedulingViolation)

	_, err = f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	assert.NoError(t, err)
}

func TestUpdateStatusCanceledIsTerminal(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "canceled")
	require.NoError(t, err)

	for _, status := range []string{"pending", "confirmed", "completed"} {
		_, err = f.svc.UpdateStatus(context.Background(), appt.ID, status)
		assert.ErrorIs(t, err, ErrInvalidTransition, status)
	}
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "confirmed")
	require.NoError(t, err)

	details, err := f.svc.UpdateStatus(context.Background(), appt.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, details.Status)

	assert.Len(t, f.notifier.all(), 1)
	assert.Len(t, f.publisher.ofType(events.AppointmentStatusChanged), 1)

	// Повтор не проверяет сроки: запись уже подтверждена
	f.now = at(4, 10, 0)
	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "confirmed")
	assert.NoError(t, err)
}

func TestUpdateStatusNotifications(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	a, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	b, err := f.create(t, f.customer(t).ID, "2025-06-03 10:20:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, a.ID, "confirmed")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, b.ID, "canceled")
	require.NoError(t, err)

	f.now = at(3, 10, 30)
	_, err = f.svc.UpdateStatus(ctx, a.ID, "completed")
	require.NoError(t, err)

	assert.Equal(t, []sentNotification{
		{appointmentID: a.ID, status: model.AppointmentStatusConfirmed},
		{appointmentID: b.ID, status: model.AppointmentStatusCanceled},
	}, f.notifier.all())

	changed := f.publisher.ofType(events.AppointmentStatusChanged)
	require.Len(t, changed, 3)
	assert.Equal(t, model.AppointmentStatusPending, changed[0].PreviousStatus)
	assert.Equal(t, model.AppointmentStatusConfirmed, changed[0].Status)
}

func TestUpdateStatusReturnsResolvedDetails(t *testing.T) {
	f := newFixture(t, 1)
	customer := f.customer(t)
	appt, err := f.create(t, customer.ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	details, err := f.svc.UpdateStatus(context.Background(), appt.ID, "confirmed")
	require.NoError(t, err)

	require.NotNil(t, details.Customer)
	assert.Equal(t, customer.ID, details.Customer.ID)
	require.NotNil(t, details.Technician)
	assert.Equal(t, f.technicians[0].ID, details.Technician.ID)
	require.NotNil(t, details.Service)
	assert.Equal(t, f.service.Name, details.Service.Name)
}

func TestUpdateStatusAcceptsLegacyTokens(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	details, err := f.svc.UpdateStatus(context.Background(), appt.ID, "da_xac_nhan")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, details.Status)
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), 999, "confirmed")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UpdateStatus(context.Background(), appt.ID, "approved")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChangeTechnician(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	tech1, tech2 := f.technicians[0], f.technicians[1]

	a, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	b, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)
	require.Equal(t, tech1.ID, a.TechnicianID)
	require.Equal(t, tech2.ID, b.TechnicianID)

	_, err = f.svc.ChangeTechnician(ctx, b.ID, tech1.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchedulingViolation)

	tech3 := f.store.AddUser(&model.User{Username: "techc", Name: "Technician", Role: model.RoleTechnician})
	details, err := f.svc.ChangeTechnician(ctx, b.ID, tech3.ID)
	require.NoError(t, err)
	assert.Equal(t, tech3.ID, details.TechnicianID)
	require.NotNil(t, details.Technician)
	assert.Equal(t, tech3.ID, details.Technician.ID)

	stored, err := f.store.Find(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, tech3.ID, stored.TechnicianID)

	changed := f.publisher.ofType(events.AppointmentTechnicianChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, tech2.ID, changed[0].PreviousTechnicianID)
	assert.Equal(t, tech3.ID, changed[0].TechnicianID)

	f.assertNoTechnicianOverlap(t)
}

func TestChangeTechnicianToSameTechnician(t *testing.T) {
	f := newFixture(t, 1)
	appt, err := f.create(t, f.customer(t).ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	details, err := f.svc.ChangeTechnician(context.Background(), appt.ID, f.technicians[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.technicians[0].ID, details.TechnicianID)
	assert.Empty(t, f.publisher.ofType(events.AppointmentTechnicianChanged))
}

func TestChangeTechnicianErrors(t *testing.T) {
	f := newFixture(t, 1)
	customer := f.customer(t)
	appt, err := f.create(t, customer.ID, "2025-06-03 10:00:00")
	require.NoError(t, err)

	_, err = f.svc.ChangeTechnician(context.Background(), 999, f.technicians[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.ChangeTechnician(context.Background(), appt.ID, customer.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.ChangeTechnician(context.Background(), appt.ID, 999)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConcurrentCreatesRespectSlotCapacity(t *testing.T) {
	f := newFixture(t, 5)

	const attempts = 10
	customers := make([]*model.User, attempts)
	for i := range customers {
		customers[i] = f.customer(t)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		full    int
	)
	for _, c := range customers {
		wg.Add(1)
		go func(customerID int64) {
			defer wg.Done()
			_, err := f.create(t, customerID, "2025-06-03 10:00:00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(c.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, created)
	assert.Equal(t, attempts-2, full)
	f.assertNoTechnicianOverlap(t)
}

func TestConcurrentCreatesRespectDailyLimit(t *testing.T) {
	f := newFixture(t, 5)
	customer := f.customer(t)

	starts := []string{
		"2025-06-03 08:00:00", "2025-06-03 08:20:00", "2025-06-03 08:40:00",
		"2025-06-03 09:00:00", "2025-06-03 09:20:00", "2025-06-03 09:40:00",
	}

	var wg sync.WaitGroup
	for _, start := range starts {
		wg.Add(1)
		go func(start string) {
			defer wg.Done()
			_, _ = f.create(t, customer.ID, start)
		}(start)
	}
	wg.Wait()

	count, err := f.store.Count(context.Background(), model.AppointmentFilter{CustomerID: customer.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRandomOperationsNeverDoubleBook(t *testing.T) {
	f := newFixture(t, 3)
	f.now = at(3, 7, 0)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"pending", "confirmed", "completed", "canceled"}

	customers := make([]*model.User, 6)
	for i := range customers {
		customers[i] = f.customer(t)
	}
	var created []*model.Appointment

	for i := 0; i < 200; i++ {
		switch rng.Intn(4) {
		case 0, 1:
			customer := customers[rng.Intn(len(customers))]
			start := at(3, 8+rng.Intn(3), 20*rng.Intn(3))
			appt, err := f.create(t, customer.ID, start.Format(StartTimeLayout))
			if err == nil {
				created = append(created, appt)
			}
		case 2:
			if len(created) == 0 {
				continue
			}
			appt := created[rng.Intn(len(created))]
			tech := f.technicians[rng.Intn(len(f.technicians))]
			_, _ = f.svc.ChangeTechnician(ctx, appt.ID, tech.ID)
		case 3:
			if len(created) == 0 {
				continue
			}
			appt := created[rng.Intn(len(created))]
			_, _ = f.svc.UpdateStatus(ctx, appt.ID, statuses[rng.Intn(len(statuses))])
		}
	}

	f.assertNoTechnicianOverlap(t)

	for _, c := range customers {
		count, err := f.store.Count(ctx, model.AppointmentFilter{CustomerID: c.ID, From: at(3, 0, 0), To: at(4, 0, 0)})
		require.NoError(t, err)
		assert.LessOrEqual(t, count, 3, fmt.Sprintf("customer %d", c.ID))
	}

	for hour := 8; hour < 11; hour++ {
		for minute := 0; minute < 60; minute += 20 {
			count, err := f.store.Count(ctx, model.AppointmentFilter{StartAt: at(3, hour, minute), Statuses: model.ActiveStatuses})
			require.NoError(t, err)
			assert.LessOrEqual(t, count, 2)
		}
	}
}
