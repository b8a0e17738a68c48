package service

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/booking_api/internal/events"
	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
	"go.uber.org/zap"
)

type AppointmentService struct {
	stores    Stores
	policy    TimePolicy
	cfg       SchedulerConfig
	assigner  *Assigner
	queries   *QueryService
	notifier  Notifier
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewAppointmentService(
	stores Stores,
	policy TimePolicy,
	cfg SchedulerConfig,
	queries *QueryService,
	notifier Notifier,
	publisher events.Publisher,
	logger *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		stores:    stores,
		policy:    policy,
		cfg:       cfg,
		assigner:  NewAssigner(stores.Users, policy),
		queries:   queries,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock подменяет источник текущего времени
func (s *AppointmentService) WithClock(now func() time.Time) *AppointmentService {
	s.now = now
	return s
}

// CreateAppointment создаёт запись клиента в статусе pending и назначает техника
func (s *AppointmentService) CreateAppointment(ctx context.Context, customerID, serviceID int64, startTime string) (*model.Appointment, error) {
	start, err := s.policy.ParseStartTime(startTime)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if start.Before(now.Add(-s.policy.Grace)) {
		return nil, newError(ErrSchedulingViolation, "cannot book an appointment in the past")
	}
	if !s.policy.IsBookable(start, now) {
		return nil, newError(ErrSchedulingViolation, "requested time is not bookable: %s", s.policy.Describe())
	}

	svc, err := s.stores.Services.FindService(ctx, serviceID)
	if err != nil {
		return nil, s.internalError("create appointment", storeError("get service", err), customerID, serviceID, start)
	}
	if svc == nil {
		return nil, newError(ErrNotFound, "service %d not found", serviceID)
	}
	end := start.Add(svc.Duration())

	var created *model.Appointment
	err = s.stores.Tx.Atomic(ctx, s.policy.DayKey(start), func(ctx context.Context, store repository.AppointmentStore) error {
		dayStart, dayEnd := s.policy.Day(start)

		booked, err := store.Count(ctx, model.AppointmentFilter{
			CustomerID: customerID,
			From:       dayStart,
			To:         dayEnd,
		})
		if err != nil {
			return storeError("count customer appointments", err)
		}
		if booked >= s.cfg.MaxPerCustomerPerDay {
			return newError(ErrCapacityExceeded, "daily booking limit reached: at most %d appointments per day", s.cfg.MaxPerCustomerPerDay)
		}

		inSlot, err := store.Count(ctx, model.AppointmentFilter{
			StartAt:  start,
			Statuses: model.ActiveStatuses,
		})
		if err != nil {
			return storeError("count slot appointments", err)
		}
		if inSlot >= s.cfg.SlotCapacity {
			return newError(ErrCapacityExceeded, "time slot is fully booked")
		}

		tech, err := s.assigner.AssignTechnician(ctx, store, start, end)
		if err != nil {
			return err
		}
		if tech == nil {
			return newError(ErrNoTechnicianAvailable, "no technician is available at the requested time")
		}

		appt := &model.Appointment{
			CustomerID:   customerID,
			TechnicianID: tech.ID,
			ServiceID:    svc.ID,
			StartTime:    start,
			EndTime:      end,
			Status:       model.AppointmentStatusPending,
		}
		if err := store.Insert(ctx, appt); err != nil {
			return storeError("insert appointment", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoTechnicianAvailable) {
			e := events.New(events.AssignmentFailed)
			e.CustomerID = customerID
			e.ServiceID = serviceID
			e.StartTime = start
			e.Reason = err.Error()
			s.publish(ctx, e)
		}
		return nil, s.internalError("create appointment", storeError("create appointment", err), customerID, serviceID, start)
	}

	s.logger.Info("Appointment created",
		zap.Int64("appointment_id", created.ID),
		zap.Int64("customer_id", customerID),
		zap.Int64("technician_id", created.TechnicianID),
		zap.Time("start_time", created.StartTime),
	)
	s.publish(ctx, events.New(events.AppointmentCreated).ForAppointment(created))

	return created, nil
}

// UpdateStatus переводит запись в новый статус. Повторная установка того же статуса ничего не меняет.
// После confirmed и canceled клиент получает уведомление.
func (s *AppointmentService) UpdateStatus(ctx context.Context, appointmentID int64, rawStatus string) (*model.AppointmentDetails, error) {
	current, err := s.findAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	status, ok := model.ParseAppointmentStatus(rawStatus)
	if !ok {
		return nil, newError(ErrInvalidInput, "invalid status %q", rawStatus)
	}

	var (
		updated  *model.Appointment
		previous model.AppointmentStatus
		changed  bool
	)
	err = s.stores.Tx.Atomic(ctx, s.policy.DayKey(current.StartTime), func(ctx context.Context, store repository.AppointmentStore) error {
		appt, err := store.Find(ctx, appointmentID)
		if err != nil {
			return storeError("get appointment", err)
		}
		if appt == nil {
			return newError(ErrNotFound, "appointment %d not found", appointmentID)
		}

		if appt.Status == status {
			updated = appt
			return nil
		}
		if err := s.checkTransition(appt, status, s.now()); err != nil {
			return err
		}

		previous = appt.Status
		appt.Status = status
		if err := store.Update(ctx, appt); err != nil {
			return storeError("update appointment status", err)
		}

		updated = appt
		changed = true
		return nil
	})
	if err != nil {
		return nil, s.internalError("update appointment status", storeError("update appointment status", err), current.CustomerID, current.ServiceID, current.StartTime)
	}

	details := s.details(ctx, updated)
	if !changed {
		return details, nil
	}

	s.logger.Info("Appointment status changed",
		zap.Int64("appointment_id", updated.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)

	e := events.New(events.AppointmentStatusChanged).ForAppointment(updated)
	e.PreviousStatus = previous
	s.publish(ctx, e)

	if (status == model.AppointmentStatusConfirmed || status == model.AppointmentStatusCanceled) && s.notifier != nil {
		s.notifier.NotifyStatusChange(ctx, details, status)
	}

	return details, nil
}

// ChangeTechnician переназначает запись на другого техника, если он свободен в её интервале
func (s *AppointmentService) ChangeTechnician(ctx context.Context, appointmentID, technicianID int64) (*model.AppointmentDetails, error) {
	current, err := s.findAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	tech, err := s.stores.Users.FindUser(ctx, technicianID)
	if err != nil {
		return nil, s.internalError("change technician", storeError("get technician", err), current.CustomerID, current.ServiceID, current.StartTime)
	}
	if tech == nil || !tech.IsTechnician() {
		return nil, newError(ErrInvalidInput, "user %d is not a technician", technicianID)
	}

	var (
		updated  *model.Appointment
		previous int64
	)
	err = s.stores.Tx.Atomic(ctx, s.policy.DayKey(current.StartTime), func(ctx context.Context, store repository.AppointmentStore) error {
		appt, err := store.Find(ctx, appointmentID)
		if err != nil {
			return storeError("get appointment", err)
		}
		if appt == nil {
			return newError(ErrNotFound, "appointment %d not found", appointmentID)
		}

		free, err := NewAvailability(store).IsTechnicianAvailable(ctx, technicianID, appt.StartTime, appt.EndTime, appt.ID)
		if err != nil {
			return err
		}
		if !free {
			return newError(ErrSchedulingViolation, "technician %d already has an appointment at this time", technicianID)
		}

		previous = appt.TechnicianID
		appt.TechnicianID = technicianID
		if err := store.Update(ctx, appt); err != nil {
			return storeError("update appointment technician", err)
		}

		updated = appt
		return nil
	})
	if err != nil {
		return nil, s.internalError("change technician", storeError("change technician", err), current.CustomerID, current.ServiceID, current.StartTime)
	}

	if previous != technicianID {
		s.logger.Info("Appointment technician changed",
			zap.Int64("appointment_id", updated.ID),
			zap.Int64("from_technician_id", previous),
			zap.Int64("to_technician_id", technicianID),
		)

		e := events.New(events.AppointmentTechnicianChanged).ForAppointment(updated)
		e.PreviousTechnicianID = previous
		s.publish(ctx, e)
	}

	return s.details(ctx, updated), nil
}

func (s *AppointmentService) checkTransition(appt *model.Appointment, to model.AppointmentStatus, now time.Time) error {
	switch {
	case appt.Status == model.AppointmentStatusCanceled:
		return newError(ErrInvalidTransition, "canceled appointment cannot be changed to %s", to)
	case appt.Status == model.AppointmentStatusCompleted && to == model.AppointmentStatusCanceled:
		return newError(ErrInvalidTransition, "completed appointment cannot be canceled")
	case appt.Status == model.AppointmentStatusCompleted && to != model.AppointmentStatusCompleted:
		return newError(ErrInvalidTransition, "completed appointment cannot be reopened")
	}

	switch to {
	case model.AppointmentStatusConfirmed:
		if now.After(appt.StartTime.Add(s.cfg.ConfirmDeadline)) {
			return newError(ErrSchedulingViolation, "too late to confirm: more than %s past the start time", s.cfg.ConfirmDeadline)
		}
	case model.AppointmentStatusCompleted:
		if now.Before(appt.StartTime.Add(-s.cfg.CompleteLeadTime)) {
			return newError(ErrSchedulingViolation, "too early to complete: more than %s before the start time", s.cfg.CompleteLeadTime)
		}
	}

	return nil
}

func (s *AppointmentService) findAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	appt, err := s.stores.Appointments.Find(ctx, id)
	if err != nil {
		err = storeError("get appointment", err)
		s.logger.Error("Failed to load appointment", zap.Int64("appointment_id", id), zap.Error(err))
		return nil, err
	}
	if appt == nil {
		return nil, newError(ErrNotFound, "appointment %d not found", id)
	}
	return appt, nil
}

// details загружает участников записи. Ошибка загрузки не отменяет уже сохранённое изменение.
func (s *AppointmentService) details(ctx context.Context, appt *model.Appointment) *model.AppointmentDetails {
	if s.queries == nil {
		return &model.AppointmentDetails{Appointment: *appt}
	}
	resolved, err := s.queries.Resolve(ctx, []*model.Appointment{appt})
	if err != nil || len(resolved) == 0 {
		s.logger.Warn("Failed to resolve appointment details", zap.Int64("appointment_id", appt.ID), zap.Error(err))
		return &model.AppointmentDetails{Appointment: *appt}
	}
	return resolved[0]
}

func (s *AppointmentService) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", string(e.Type)),
			zap.String("event_id", e.ID),
			zap.Error(err),
		)
	}
}

// internalError логирует непредвиденные ошибки с идентификаторами запроса
func (s *AppointmentService) internalError(op string, err error, customerID, serviceID int64, start time.Time) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	s.logger.Error("Failed to "+op,
		zap.Int64("customer_id", customerID),
		zap.Int64("service_id", serviceID),
		zap.Time("start_time", start),
		zap.Error(err),
	)
	return err
}
