package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_api/internal/events"
	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository/memory"
	"go.uber.org/zap"
)

var testLocation = time.FixedZone("ICT", 7*60*60)

// 2025-06-02 понедельник
func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.June, day, hour, minute, 0, 0, testLocation)
}

type sentNotification struct {
	appointmentID int64
	status        model.AppointmentStatus
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) NotifyStatusChange(_ context.Context, details *model.AppointmentDetails, status model.AppointmentStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{appointmentID: details.ID, status: status})
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store       *memory.Store
	stores      Stores
	policy      TimePolicy
	svc         *AppointmentService
	queries     *QueryService
	notifier    *recordingNotifier
	publisher   *recordingPublisher
	now         time.Time
	service     *model.Service
	admin       *model.User
	customers   []*model.User
	technicians []*model.User
}

func newFixture(t *testing.T, technicians int) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{
		store:     store,
		policy:    DefaultTimePolicy(testLocation),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		now:       at(2, 9, 0),
	}
	f.stores = Stores{
		Tx:           store,
		Appointments: store,
		Users:        store,
		Services:     store,
		Ratings:      store,
	}

	f.admin = store.AddUser(&model.User{Username: "admin", Name: "Admin", Role: model.RoleAdmin})
	for i := 0; i < technicians; i++ {
		f.technicians = append(f.technicians, store.AddUser(&model.User{
			Username: "tech" + string(rune('a'+i)),
			Name:     "Technician",
			Role:     model.RoleTechnician,
		}))
	}
	f.service = store.AddService(&model.Service{Name: "Standard service", EstimatedDurationMinutes: 20})

	logger := zap.NewNop()
	f.queries = NewQueryService(f.stores, f.policy, logger)
	f.svc = NewAppointmentService(f.stores, f.policy, DefaultSchedulerConfig(), f.queries, f.notifier, f.publisher, logger).
		WithClock(func() time.Time { return f.now })

	return f
}

func (f *fixture) customer(t *testing.T) *model.User {
	t.Helper()
	c := f.store.AddUser(&model.User{
		Username: fmt.Sprintf("customer%d", len(f.customers)+1),
		Name:     "Customer",
		Email:    "customer@example.com",
		Role:     model.RoleCustomer,
	})
	f.customers = append(f.customers, c)
	return c
}

func (f *fixture) create(t *testing.T, customerID int64, start string) (*model.Appointment, error) {
	t.Helper()
	return f.svc.CreateAppointment(context.Background(), customerID, f.service.ID, start)
}

// assertNoTechnicianOverlap проверяет, что у техников нет пересекающихся активных записей
func (f *fixture) assertNoTechnicianOverlap(t *testing.T) {
	t.Helper()

	all, err := f.store.List(context.Background(), model.AppointmentFilter{Statuses: model.ActiveStatuses}, model.SortByStartAsc)
	if err != nil {
		t.Fatalf("list appointments: %v", err)
	}
	for i, a := range all {
		for _, b := range all[i+1:] {
			if a.TechnicianID == b.TechnicianID && a.Overlaps(b.StartTime, b.EndTime) {
				t.Fatalf("technician %d has overlapping appointments %d and %d", a.TechnicianID, a.ID, b.ID)
			}
		}
	}
}
