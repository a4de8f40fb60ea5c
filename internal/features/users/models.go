// Package users управляет учётными записями: регистрация, вход по паролю
// с блокировкой перебора, вход через Google и Apple, одноразовые коды
// на почту и профиль.
// models.go описывает структуры пользователей и запросов.
package users

import (
	"time"

	"serotonyl.ru/birdwatch/internal/auth"
)

// User: учётная запись в базе.
type User struct {
	ID              int64
	Email           string
	Username        string
	FirstName       string
	PasswordHash    string
	DateOfBirth     *time.Time
	Location        string
	ProfileImage    string
	IsEmailVerified bool
	IsStaff         bool
	GoogleID        string
	AppleID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Principal: пользователь для выпуска токенов.
func (u *User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Staff: u.IsStaff}
}

// Profile: пользователь в ответах API вместе с производными счётчиками.
type Profile struct {
	ID                int64   `json:"id"`
	Email             string  `json:"email"`
	Username          string  `json:"username"`
	FirstName         string  `json:"first_name"`
	DateOfBirth       *string `json:"date_of_birth"`
	Location          string  `json:"location"`
	ProfileImage      string  `json:"profile_image"`
	StreakCount       int     `json:"streak_count"`
	CollectionScore   int     `json:"collection_score"`
	LocationsExplored int     `json:"locations_explored"`
	IsEmailVerified   bool    `json:"is_email_verified"`
	IsStaff           bool    `json:"is_staff"`
}

// AuthResponse: ответ на регистрацию и вход.
type AuthResponse struct {
	User    *Profile `json:"user"`
	Access  string   `json:"access"`
	Refresh string   `json:"refresh"`
}

// MessageResponse: простой ответ с сообщением.
type MessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// Провайдеры внешнего входа
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// Identity: пользователь, подтверждённый внешним провайдером.
type Identity struct {
	Subject string
	Email   string
}

// ============================================================================
// Запросы
// ============================================================================

// SignupRequest: POST /signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"notblank,max=150"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest: POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest: POST /token/refresh.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// SocialRequest: POST /google-signup и /apple-signup.
type SocialRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// OTPSendRequest: POST /otp/send.
type OTPSendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OTPVerifyRequest: POST /otp/verify.
type OTPVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// ResetPasswordRequest: POST /user/reset-password.
type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// EditProfileRequest: PATCH /user/edit-profile. Отсутствующие поля не меняются.
type EditProfileRequest struct {
	Username     *string `json:"username" validate:"omitempty,notblank,max=150"`
	DateOfBirth  *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Location     *string `json:"location" validate:"omitempty,max=255"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,url,max=500"`
}
