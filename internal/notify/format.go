package notify

import (
	"time"

	"github.com/Freeeeeet/booking_api/internal/model"
)

// FormatDateTime время записи в письмах: "15:04, 02/01/2006"
func FormatDateTime(t time.Time) string {
	return t.Format("15:04, 02/01/2006")
}

// StatusDisplay отображение статуса записи
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay возвращает emoji и текст для статуса записи
func GetStatusDisplay(status model.AppointmentStatus) StatusDisplay {
	displays := map[model.AppointmentStatus]StatusDisplay{
		model.AppointmentStatusPending:   {"⏳", "Pending approval"},
		model.AppointmentStatusConfirmed: {"✅", "Approved"},
		model.AppointmentStatusCompleted: {"✔️", "Completed"},
		model.AppointmentStatusCanceled:  {"❌", "Canceled"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}

// Subject тема письма для статуса
func Subject(status model.AppointmentStatus) string {
	switch status {
	case model.AppointmentStatusConfirmed:
		return "Your appointment has been approved"
	case model.AppointmentStatusCanceled:
		return "Your appointment has been canceled"
	default:
		return "Update on your appointment"
	}
}
