// Package memory хранит пользователей, услуги, записи и оценки в памяти процесса.
// Используется в тестах и в режиме STORE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
)

type Store struct {
	// txMu сериализует все вызовы Atomic
	txMu sync.Mutex

	mu           sync.RWMutex
	users        map[int64]*model.User
	services     map[int64]*model.Service
	appointments map[int64]*model.Appointment
	ratings      []*model.Rating

	nextUserID        int64
	nextServiceID     int64
	nextAppointmentID int64
	nextRatingID      int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:        make(map[int64]*model.User),
		services:     make(map[int64]*model.Service),
		appointments: make(map[int64]*model.Appointment),
		now:          time.Now,
	}
}

var (
	_ repository.UserDirectory    = (*Store)(nil)
	_ repository.ServiceCatalog   = (*Store)(nil)
	_ repository.AppointmentStore = (*Store)(nil)
	_ repository.Transactor       = (*Store)(nil)
	_ repository.RatingStore      = (*Store)(nil)
)

// AddUser добавляет пользователя. Нулевой ID назначается автоматически.
func (s *Store) AddUser(user *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = &u

	out := u
	return &out
}

// AddService добавляет услугу. Нулевой ID назначается автоматически.
func (s *Store) AddService(service *model.Service) *model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc := *service
	if svc.ID == 0 {
		s.nextServiceID++
		svc.ID = s.nextServiceID
	} else if svc.ID > s.nextServiceID {
		s.nextServiceID = svc.ID
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = s.now()
	}
	s.services[svc.ID] = &svc

	out := svc
	return &out
}

func (s *Store) FindUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (s *Store) FindUsers(_ context.Context, ids []int64) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []*model.User{}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		u, ok := s.users[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out := *u
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) UsersWithRole(_ context.Context, role model.Role) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []*model.User{}
	for _, u := range s.users {
		if u.Role == role {
			out := *u
			users = append(users, &out)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) FindService(_ context.Context, id int64) (*model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, nil
	}
	out := *svc
	return &out, nil
}

func (s *Store) AllServices(_ context.Context) ([]*model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]*model.Service, 0, len(s.services))
	for _, svc := range s.services {
		out := *svc
		services = append(services, &out)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services, nil
}

// Atomic выполняет fn под общим замком. При ошибке fn записи возвращаются в исходное состояние.
func (s *Store) Atomic(ctx context.Context, _ string, fn func(ctx context.Context, store repository.AppointmentStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[int64]model.Appointment, len(s.appointments))
	for id, a := range s.appointments {
		snapshot[id] = *a
	}
	nextID := s.nextAppointmentID
	s.mu.RUnlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.appointments = make(map[int64]*model.Appointment, len(snapshot))
		for id, a := range snapshot {
			a := a
			s.appointments[id] = &a
		}
		s.nextAppointmentID = nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Insert(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.IsActive() && s.overlapsLocked(appt.TechnicianID, appt.StartTime, appt.EndTime, model.ActiveStatuses, 0) {
		return fmt.Errorf("insert appointment: %w", repository.ErrTechnicianOverlap)
	}

	s.nextAppointmentID++
	now := s.now()
	appt.ID = s.nextAppointmentID
	appt.CreatedAt = now
	appt.UpdatedAt = now

	stored := *appt
	s.appointments[stored.ID] = &stored
	return nil
}

func (s *Store) Find(_ context.Context, id int64) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

func (s *Store) Update(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.appointments[appt.ID]
	if !ok {
		return fmt.Errorf("appointment not found")
	}
	if appt.IsActive() && s.overlapsLocked(appt.TechnicianID, stored.StartTime, stored.EndTime, model.ActiveStatuses, appt.ID) {
		return fmt.Errorf("update appointment: %w", repository.ErrTechnicianOverlap)
	}

	stored.TechnicianID = appt.TechnicianID
	stored.Status = appt.Status
	stored.UpdatedAt = s.now()
	appt.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) Count(_ context.Context, filter model.AppointmentFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.appointments {
		if filter.Matches(a) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ExistsOverlap(
	_ context.Context,
	technicianID int64,
	start, end time.Time,
	statuses []model.AppointmentStatus,
	excludeID int64,
) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.overlapsLocked(technicianID, start, end, statuses, excludeID), nil
}

func (s *Store) overlapsLocked(technicianID int64, start, end time.Time, statuses []model.AppointmentStatus, excludeID int64) bool {
	filter := model.AppointmentFilter{TechnicianID: technicianID, Statuses: statuses}
	for _, a := range s.appointments {
		if a.ID == excludeID || !filter.Matches(a) {
			continue
		}
		if a.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (s *Store) List(_ context.Context, filter model.AppointmentFilter, order model.SortOrder) ([]*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointments := []*model.Appointment{}
	for _, a := range s.appointments {
		if filter.Matches(a) {
			out := *a
			appointments = append(appointments, &out)
		}
	}

	sort.Slice(appointments, func(i, j int) bool {
		a, b := appointments[i], appointments[j]
		if order == model.SortByStartDesc {
			a, b = b, a
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	return appointments, nil
}

func (s *Store) InsertRating(_ context.Context, rating *model.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[rating.AppointmentID]; !ok {
		return fmt.Errorf("insert rating: appointment %d: %w", rating.AppointmentID, repository.ErrMissingReference)
	}

	s.nextRatingID++
	rating.ID = s.nextRatingID
	rating.CreatedAt = s.now()

	stored := *rating
	stored.User = nil
	stored.Appointment = nil
	s.ratings = append(s.ratings, &stored)
	return nil
}

func (s *Store) ListRatings(_ context.Context) ([]*model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ratings := make([]*model.Rating, 0, len(s.ratings))
	for i := len(s.ratings) - 1; i >= 0; i-- {
		out := *s.ratings[i]
		ratings = append(ratings, &out)
	}
	return ratings, nil
}

func (s *Store) FindRatingsByAppointments(_ context.Context, appointmentIDs []int64) ([]*model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]bool, len(appointmentIDs))
	for _, id := range appointmentIDs {
		wanted[id] = true
	}

	ratings := []*model.Rating{}
	for _, r := range s.ratings {
		if wanted[r.AppointmentID] {
			out := *r
			ratings = append(ratings, &out)
		}
	}
	return ratings, nil
}

// Create добавляет пользователя, как это делает репозиторий в Postgres
func (s *Store) Create(_ context.Context, user *model.User) error {
	s.mu.RLock()
	for _, u := range s.users {
		if u.Username == user.Username {
			s.mu.RUnlock()
			return fmt.Errorf("create user: username %q already exists", user.Username)
		}
	}
	s.mu.RUnlock()

	stored := s.AddUser(user)
	user.ID = stored.ID
	user.CreatedAt = stored.CreatedAt
	return nil
}
