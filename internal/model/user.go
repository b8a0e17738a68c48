package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleCustomer   Role = "customer"
)

// ParseRole разбирает роль пользователя
func ParseRole(raw string) (Role, bool) {
	switch role := Role(strings.TrimSpace(strings.ToLower(raw))); role {
	case RoleAdmin, RoleTechnician, RoleCustomer:
		return role, true
	}
	return "", false
}

type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // nil - уведомления в Telegram не нужны
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasRole проверяет роль пользователя
func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// IsTechnician проверяет, может ли пользователь выполнять записи
func (u *User) IsTechnician() bool {
	return u.HasRole(RoleTechnician)
}

// UserSummary публичная часть пользователя для выдачи вместе с записью
type UserSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Summary возвращает публичную часть пользователя
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
	}
}
