package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
)

var (
	// ErrTechnicianOverlap хранилище отказалось сохранить пересекающиеся активные записи техника
	ErrTechnicianOverlap = errors.New("technician interval overlap")
	// ErrMissingReference запись ссылается на несуществующую строку
	ErrMissingReference = errors.New("referenced row does not exist")
)

// UserDirectory справочник пользователей. Отсутствующий пользователь - nil без ошибки.
type UserDirectory interface {
	FindUser(ctx context.Context, id int64) (*model.User, error)
	FindUsers(ctx context.Context, ids []int64) ([]*model.User, error)
	// UsersWithRole возвращает пользователей по возрастанию id
	UsersWithRole(ctx context.Context, role model.Role) ([]*model.User, error)
}

// ServiceCatalog каталог услуг, только чтение
type ServiceCatalog interface {
	FindService(ctx context.Context, id int64) (*model.Service, error)
	AllServices(ctx context.Context) ([]*model.Service, error)
}

// AppointmentStore хранилище записей
type AppointmentStore interface {
	// Insert сохраняет запись и заполняет ID и метки времени
	Insert(ctx context.Context, appt *model.Appointment) error
	Find(ctx context.Context, id int64) (*model.Appointment, error)
	// Update сохраняет техника и статус записи
	Update(ctx context.Context, appt *model.Appointment) error
	Count(ctx context.Context, filter model.AppointmentFilter) (int, error)
	// ExistsOverlap ищет записи техника с указанными статусами, пересекающие [start, end).
	// excludeID = 0 ничего не исключает.
	ExistsOverlap(ctx context.Context, technicianID int64, start, end time.Time, statuses []model.AppointmentStatus, excludeID int64) (bool, error)
	List(ctx context.Context, filter model.AppointmentFilter, order model.SortOrder) ([]*model.Appointment, error)
}

// Transactor выполняет fn атомарно. Вызовы с одинаковым lockKey выполняются строго по очереди.
type Transactor interface {
	Atomic(ctx context.Context, lockKey string, fn func(ctx context.Context, store AppointmentStore) error) error
}

// RatingStore хранилище оценок
type RatingStore interface {
	InsertRating(ctx context.Context, rating *model.Rating) error
	ListRatings(ctx context.Context) ([]*model.Rating, error)
	FindRatingsByAppointments(ctx context.Context, appointmentIDs []int64) ([]*model.Rating, error)
}
