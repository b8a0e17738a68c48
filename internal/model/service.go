package model

import "time"

// DefaultServiceDuration длительность услуги, если в каталоге она не задана
const DefaultServiceDuration = 20 * time.Minute

type Service struct {
	ID                       int64     `json:"id"`
	Name                     string    `json:"name"`
	EstimatedDurationMinutes int       `json:"estimated_duration_minutes"`
	CreatedAt                time.Time `json:"created_at"`
}

// Duration возвращает длительность услуги
func (s *Service) Duration() time.Duration {
	if s.EstimatedDurationMinutes <= 0 {
		return DefaultServiceDuration
	}
	return time.Duration(s.EstimatedDurationMinutes) * time.Minute
}

type ServiceSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Service) Summary() *ServiceSummary {
	if s == nil {
		return nil
	}
	return &ServiceSummary{ID: s.ID, Name: s.Name}
}
