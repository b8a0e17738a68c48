package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher пишет события в лог
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("event_type", string(e.Type)),
	}
	if e.AppointmentID != 0 {
		fields = append(fields, zap.Int64("appointment_id", e.AppointmentID))
	}
	if e.CustomerID != 0 {
		fields = append(fields, zap.Int64("customer_id", e.CustomerID))
	}
	if e.TechnicianID != 0 {
		fields = append(fields, zap.Int64("technician_id", e.TechnicianID))
	}
	if e.PreviousTechnicianID != 0 {
		fields = append(fields, zap.Int64("previous_technician_id", e.PreviousTechnicianID))
	}
	if e.Status != "" {
		fields = append(fields, zap.String("status", string(e.Status)))
	}
	if e.PreviousStatus != "" {
		fields = append(fields, zap.String("previous_status", string(e.PreviousStatus)))
	}
	if !e.StartTime.IsZero() {
		fields = append(fields, zap.Time("start_time", e.StartTime))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}

	p.logger.Info("Appointment event", fields...)
	return nil
}
