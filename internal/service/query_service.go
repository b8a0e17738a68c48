package service

import (
	"context"

	"github.com/Freeeeeet/booking_api/internal/model"
	"go.uber.org/zap"
)

// QueryService представления записей для чтения. Пользователи и услуги подгружаются явно по ID.
type QueryService struct {
	stores Stores
	policy TimePolicy
	logger *zap.Logger
}

func NewQueryService(stores Stores, policy TimePolicy, logger *zap.Logger) *QueryService {
	return &QueryService{
		stores: stores,
		policy: policy,
		logger: logger,
	}
}

// TechnicianAppointments расписание техника по возрастанию времени, опционально за один день (YYYY-MM-DD)
func (s *QueryService) TechnicianAppointments(ctx context.Context, technicianID int64, date string) ([]*model.AppointmentDetails, error) {
	tech, err := s.stores.Users.FindUser(ctx, technicianID)
	if err != nil {
		return nil, storeError("get technician", err)
	}
	if tech == nil || !tech.IsTechnician() {
		return nil, newError(ErrNotFound, "technician %d not found", technicianID)
	}

	filter := model.AppointmentFilter{TechnicianID: technicianID}
	if date != "" {
		day, err := s.policy.ParseDate(date)
		if err != nil {
			return nil, err
		}
		filter.From, filter.To = s.policy.Day(day)
	}

	return s.list(ctx, filter, model.SortByStartAsc)
}

// AllAppointments все записи, новые по времени начала первыми
func (s *QueryService) AllAppointments(ctx context.Context) ([]*model.AppointmentDetails, error) {
	return s.list(ctx, model.AppointmentFilter{}, model.SortByStartDesc)
}

// UserBookings записи, где пользователь клиент или техник, по возрастанию времени
func (s *QueryService) UserBookings(ctx context.Context, userID int64) ([]*model.AppointmentDetails, error) {
	return s.list(ctx, model.AppointmentFilter{ParticipantID: userID}, model.SortByStartAsc)
}

// Technicians список техников по возрастанию ID
func (s *QueryService) Technicians(ctx context.Context) ([]*model.User, error) {
	technicians, err := s.stores.Users.UsersWithRole(ctx, model.RoleTechnician)
	if err != nil {
		return nil, storeError("list technicians", err)
	}
	return technicians, nil
}

// Services каталог услуг
func (s *QueryService) Services(ctx context.Context) ([]*model.Service, error) {
	services, err := s.stores.Services.AllServices(ctx)
	if err != nil {
		return nil, storeError("list services", err)
	}
	return services, nil
}

func (s *QueryService) list(ctx context.Context, filter model.AppointmentFilter, order model.SortOrder) ([]*model.AppointmentDetails, error) {
	appointments, err := s.stores.Appointments.List(ctx, filter, order)
	if err != nil {
		return nil, storeError("list appointments", err)
	}
	return s.Resolve(ctx, appointments)
}

// Resolve подгружает клиента, техника, услугу и оценку для каждой записи
func (s *QueryService) Resolve(ctx context.Context, appointments []*model.Appointment) ([]*model.AppointmentDetails, error) {
	result := make([]*model.AppointmentDetails, 0, len(appointments))
	if len(appointments) == 0 {
		return result, nil
	}

	userIDs := make([]int64, 0, len(appointments)*2)
	appointmentIDs := make([]int64, 0, len(appointments))
	serviceIDs := make(map[int64]bool)
	for _, a := range appointments {
		userIDs = append(userIDs, a.CustomerID, a.TechnicianID)
		appointmentIDs = append(appointmentIDs, a.ID)
		serviceIDs[a.ServiceID] = true
	}

	users, err := s.stores.Users.FindUsers(ctx, userIDs)
	if err != nil {
		return nil, storeError("get appointment users", err)
	}
	usersByID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	servicesByID := make(map[int64]*model.Service, len(serviceIDs))
	for id := range serviceIDs {
		svc, err := s.stores.Services.FindService(ctx, id)
		if err != nil {
			return nil, storeError("get appointment service", err)
		}
		if svc != nil {
			servicesByID[id] = svc
		}
	}

	ratingsByAppointment := make(map[int64]*model.Rating)
	if s.stores.Ratings != nil {
		ratings, err := s.stores.Ratings.FindRatingsByAppointments(ctx, appointmentIDs)
		if err != nil {
			return nil, storeError("get appointment ratings", err)
		}
		for _, r := range ratings {
			if _, ok := ratingsByAppointment[r.AppointmentID]; !ok {
				ratingsByAppointment[r.AppointmentID] = r
			}
		}
	}

	for _, a := range appointments {
		result = append(result, &model.AppointmentDetails{
			Appointment: *a,
			Customer:    usersByID[a.CustomerID].Summary(),
			Technician:  usersByID[a.TechnicianID].Summary(),
			Service:     servicesByID[a.ServiceID].Summary(),
			Rating:      ratingsByAppointment[a.ID],
		})
	}

	return result, nil
}
