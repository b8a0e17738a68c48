package model

import (
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"   // Ожидает подтверждения администратора
	AppointmentStatusConfirmed AppointmentStatus = "confirmed" // Подтверждено
	AppointmentStatusCompleted AppointmentStatus = "completed" // Выполнено
	AppointmentStatusCanceled  AppointmentStatus = "canceled"  // Отменено
)

// Исходные обозначения статусов, которые до сих пор присылают старые клиенты
var legacyStatusAliases = map[string]AppointmentStatus{
	"cho_xac_nhan":  AppointmentStatusPending,
	"da_xac_nhan":   AppointmentStatusConfirmed,
	"da_hoan_thanh": AppointmentStatusCompleted,
	"da_huy":        AppointmentStatusCanceled,
}

// ParseAppointmentStatus разбирает статус из запроса, принимая и старые обозначения
func ParseAppointmentStatus(raw string) (AppointmentStatus, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	switch status := AppointmentStatus(raw); status {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCompleted, AppointmentStatusCanceled:
		return status, true
	}
	if status, ok := legacyStatusAliases[raw]; ok {
		return status, true
	}
	return "", false
}

// ActiveStatuses занимают техника и место в слоте
var ActiveStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
}

// WorkloadStatuses учитываются при подсчёте загрузки техника за день
var WorkloadStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
}

type Appointment struct {
	ID           int64             `json:"id"`
	CustomerID   int64             `json:"customer_id"`
	TechnicianID int64             `json:"technician_id"`
	ServiceID    int64             `json:"service_id"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Status       AppointmentStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsActive проверяет, занимает ли запись техника
func (a *Appointment) IsActive() bool {
	return a.Status == AppointmentStatusPending || a.Status == AppointmentStatusConfirmed
}

// Overlaps проверяет пересечение полуинтервалов [start, end)
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime.After(start)
}

// AppointmentFilter описывает выборку записей. Нулевые поля не ограничивают выборку.
type AppointmentFilter struct {
	CustomerID   int64
	TechnicianID int64
	// ParticipantID ищет пользователя и как клиента, и как техника
	ParticipantID int64
	StartAt       time.Time
	From          time.Time
	To            time.Time
	Statuses      []AppointmentStatus
}

// Matches применяет фильтр к записи в памяти
func (f AppointmentFilter) Matches(a *Appointment) bool {
	if f.CustomerID != 0 && a.CustomerID != f.CustomerID {
		return false
	}
	if f.TechnicianID != 0 && a.TechnicianID != f.TechnicianID {
		return false
	}
	if f.ParticipantID != 0 && a.CustomerID != f.ParticipantID && a.TechnicianID != f.ParticipantID {
		return false
	}
	if !f.StartAt.IsZero() && !a.StartTime.Equal(f.StartAt) {
		return false
	}
	if !f.From.IsZero() && a.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartTime.Before(f.To) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type SortOrder int

const (
	SortByStartAsc SortOrder = iota
	SortByStartDesc
)

// AppointmentDetails запись вместе с загруженными участниками и услугой
type AppointmentDetails struct {
	Appointment
	Customer   *UserSummary    `json:"customer,omitempty"`
	Technician *UserSummary    `json:"technician,omitempty"`
	Service    *ServiceSummary `json:"service,omitempty"`
	Rating     *Rating         `json:"rating,omitempty"`
}
