package service

import (
	"context"
	"strings"

	"github.com/Freeeeeet/booking_api/internal/model"
	"go.uber.org/zap"
)

type RatingService struct {
	stores Stores
	logger *zap.Logger
}

func NewRatingService(stores Stores, logger *zap.Logger) *RatingService {
	return &RatingService{
		stores: stores,
		logger: logger,
	}
}

// CreateRating сохраняет оценку пользователя для записи
func (s *RatingService) CreateRating(ctx context.Context, userID, appointmentID int64, value int, comment *string) (*model.Rating, error) {
	if value < model.MinRating || value > model.MaxRating {
		return nil, newError(ErrInvalidInput, "rating must be between %d and %d", model.MinRating, model.MaxRating)
	}

	appt, err := s.stores.Appointments.Find(ctx, appointmentID)
	if err != nil {
		return nil, storeError("get appointment", err)
	}
	if appt == nil {
		return nil, newError(ErrNotFound, "appointment %d not found", appointmentID)
	}

	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	rating := &model.Rating{
		UserID:        userID,
		AppointmentID: appointmentID,
		Rating:        value,
		Comment:       comment,
	}
	if err := s.stores.Ratings.InsertRating(ctx, rating); err != nil {
		err = storeError("insert rating", err)
		s.logger.Error("Failed to create rating",
			zap.Int64("user_id", userID),
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Rating created",
		zap.Int64("rating_id", rating.ID),
		zap.Int64("appointment_id", appointmentID),
		zap.Int("rating", value),
	)

	rating.Appointment = appt
	return rating, nil
}

// ListRatings все оценки с автором и записью
func (s *RatingService) ListRatings(ctx context.Context) ([]*model.Rating, error) {
	ratings, err := s.stores.Ratings.ListRatings(ctx)
	if err != nil {
		return nil, storeError("list ratings", err)
	}

	userIDs := make([]int64, 0, len(ratings))
	for _, r := range ratings {
		userIDs = append(userIDs, r.UserID)
	}
	users, err := s.stores.Users.FindUsers(ctx, userIDs)
	if err != nil {
		return nil, storeError("get rating authors", err)
	}
	usersByID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	appointments := make(map[int64]*model.Appointment)
	for _, r := range ratings {
		r.User = usersByID[r.UserID].Summary()

		appt, ok := appointments[r.AppointmentID]
		if !ok {
			appt, err = s.stores.Appointments.Find(ctx, r.AppointmentID)
			if err != nil {
				return nil, storeError("get rated appointment", err)
			}
			appointments[r.AppointmentID] = appt
		}
		r.Appointment = appt
	}

	return ratings, nil
}
