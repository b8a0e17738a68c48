package service

import (
	"context"
	"strings"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
	"go.uber.org/zap"
)

// UserRegistry справочник пользователей с возможностью добавления
type UserRegistry interface {
	repository.UserDirectory
	Create(ctx context.Context, user *model.User) error
}

type UserService struct {
	users  UserRegistry
	logger *zap.Logger
}

func NewUserService(users UserRegistry, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// RegisterUserParams данные нового пользователя
type RegisterUserParams struct {
	Username       string
	Name           string
	Email          string
	PhoneNumber    string
	TelegramChatID *int64
	Role           string
}

// RegisterUser создаёт пользователя с ролью
func (s *UserService) RegisterUser(ctx context.Context, p RegisterUserParams) (*model.User, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return nil, newError(ErrInvalidInput, "username is required")
	}

	role, ok := model.ParseRole(p.Role)
	if !ok {
		return nil, newError(ErrInvalidInput, "invalid role %q", p.Role)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = username
	}

	user := &model.User{
		Username:       username,
		Name:           name,
		Email:          strings.TrimSpace(p.Email),
		PhoneNumber:    strings.TrimSpace(p.PhoneNumber),
		TelegramChatID: p.TelegramChatID,
		Role:           role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError("create user", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)

	return user, nil
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.FindUser(ctx, id)
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}
