package model

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Rating struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	AppointmentID int64     `json:"appointment_id"`
	Rating        int       `json:"rating"`
	Comment       *string   `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`

	// Дополнительные поля для удобства (не из БД)
	User        *UserSummary `json:"user,omitempty"`
	Appointment *Appointment `json:"appointment,omitempty"`
}
