package service

import (
	"fmt"
	"strings"
	"time"
)

// Форматы времени начала записи, которые принимает API
const (
	StartTimeLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// TimePolicy правила рабочего времени. Все проверки выполняются в часовом поясе Location.
type TimePolicy struct {
	Location *time.Location
	// SlotStep шаг сетки слотов от начала часа
	SlotStep time.Duration
	// Grace допустимое опоздание относительно now
	Grace   time.Duration
	RestDay time.Weekday

	// Время суток в минутах от полуночи, границы включительно
	OpenAt          int
	WeekdayCloseAt  int
	SaturdayCloseAt int
}

// DefaultTimePolicy пн-пт 08:00-20:00, сб 08:00-12:00, вс выходной, слоты по 20 минут
func DefaultTimePolicy(loc *time.Location) TimePolicy {
	if loc == nil {
		loc = time.UTC
	}
	return TimePolicy{
		Location:        loc,
		SlotStep:        20 * time.Minute,
		Grace:           time.Minute,
		RestDay:         time.Sunday,
		OpenAt:          8 * 60,
		WeekdayCloseAt:  20 * 60,
		SaturdayCloseAt: 12 * 60,
	}
}

// IsBookable проверяет, можно ли начать запись в candidate
func (p TimePolicy) IsBookable(candidate, now time.Time) bool {
	if candidate.Before(now.Add(-p.Grace)) {
		return false
	}

	local := candidate.In(p.Location)
	if local.Weekday() == p.RestDay {
		return false
	}

	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	step := int(p.SlotStep / time.Minute)
	if step > 0 && local.Minute()%step != 0 {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	switch local.Weekday() {
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday:
		return minutes >= p.OpenAt && minutes <= p.WeekdayCloseAt
	case time.Saturday:
		return minutes >= p.OpenAt && minutes <= p.SaturdayCloseAt
	default:
		return false
	}
}

// Day возвращает границы календарного дня [start, end), в который попадает t
func (p TimePolicy) Day(t time.Time) (time.Time, time.Time) {
	local := t.In(p.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.Location)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, p.Location)
	return start, end
}

// DayKey ключ календарного дня, по нему сериализуются изменения записей
func (p TimePolicy) DayKey(t time.Time) string {
	return "appointments:" + t.In(p.Location).Format(DateLayout)
}

// ParseStartTime разбирает "2006-01-02 15:04:05" в часовом поясе бизнеса или RFC 3339
func (p TimePolicy) ParseStartTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, newError(ErrInvalidInput, "start time is required")
	}
	if t, err := time.ParseInLocation(StartTimeLayout, raw, p.Location); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, newError(ErrInvalidInput, "invalid start time %q, expected format %s", raw, StartTimeLayout)
}

// ParseDate разбирает дату YYYY-MM-DD в часовом поясе бизнеса
func (p TimePolicy) ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), p.Location)
	if err != nil {
		return time.Time{}, newError(ErrInvalidInput, "invalid date %q, expected format YYYY-MM-DD", raw)
	}
	return t, nil
}

// Describe человекочитаемое описание правил для сообщений об ошибке
func (p TimePolicy) Describe() string {
	return fmt.Sprintf(
		"appointments start every %d minutes, Mon-Fri %s-%s, Sat %s-%s, closed on %s",
		int(p.SlotStep/time.Minute),
		clock(p.OpenAt), clock(p.WeekdayCloseAt),
		clock(p.OpenAt), clock(p.SaturdayCloseAt),
		p.RestDay,
	)
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
