// Package users: service.go содержит бизнес-логику учётных записей.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/collection"
	"serotonyl.ru/birdwatch/internal/features/streak"
)

// Settings: параметры входа и одноразовых кодов.
type Settings struct {
	OTPTTL        time.Duration
	MaxAttempts   int           // неудачных входов до блокировки
	LockoutWindow time.Duration // окно подсчёта неудач
}

// Deps: зависимости сервиса пользователей.
type Deps struct {
	DB      postgres.TxBeginner
	Repo    *Repository
	Tokens  *auth.Manager
	Google  Verifier
	Apple   Verifier
	Mailer  Mailer
	Streaks *streak.Service
	Stats   *collection.Service
}

// Service управляет учётными записями.
type Service struct {
	Deps
	settings Settings
	now      func() time.Time
}

// NewService создаёт сервис. Не заданные верификаторы и почта выключены.
func NewService(d Deps, s Settings) *Service {
	if d.Google == nil {
		d.Google = DisabledVerifier{Provider: ProviderGoogle}
	}
	if d.Apple == nil {
		d.Apple = DisabledVerifier{Provider: ProviderApple}
	}
	if d.Mailer == nil {
		d.Mailer = LogMailer{}
	}
	return &Service{Deps: d, settings: s, now: time.Now}
}

// dummyHash сравнивается с паролем, когда пользователя нет:
// время ответа не выдаёт, зарегистрирован ли email.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ============================================================================
// Регистрация и вход
// ============================================================================

// Signup регистрирует пользователя по email и паролю.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	u := &User{
		Email:        normalizeEmail(req.Email),
		Username:     name,
		FirstName:    name,
		PasswordHash: hash,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user_id": u.ID, "email": u.Email}).Info("Новый пользователь")
	return s.authResponse(ctx, u)
}

// Login проверяет пароль. После MaxAttempts неудач за LockoutWindow
// вход для email блокируется (ErrTooManyAttempts) до конца окна.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	logger := log.WithField("email", email)

	failures, err := s.Repo.RecentFailures(ctx, email, s.settings.LockoutWindow)
	if err != nil {
		return nil, err
	}
	if failures >= s.settings.MaxAttempts {
		logger.WithField("failures", failures).Warn("Вход заблокирован: слишком много неудачных попыток")
		return nil, fmt.Errorf("login %s: %w", email, common.ErrTooManyAttempts)
	}

	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	hash := dummyHash
	if u != nil {
		hash = u.PasswordHash
	}
	if !VerifyPassword(req.Password, hash) || u == nil {
		if err := s.Repo.LogAttempt(ctx, email, false); err != nil {
			logger.WithError(err).Error("Не удалось записать попытку входа")
		}
		return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	}

	if err := s.Repo.LogAttempt(ctx, email, true); err != nil {
		logger.WithError(err).Error("Не удалось записать попытку входа")
	}
	logger.WithField("user_id", u.ID).Debug("Успешный вход")
	return s.authResponse(ctx, u)
}

// Refresh обменивает refresh-токен на новую пару.
func (s *Service) Refresh(refresh string) (auth.Pair, error) {
	return s.Tokens.Refresh(refresh)
}

// Social входит через Google или Apple, создавая пользователя при первом входе.
func (s *Service) Social(ctx context.Context, provider, token string) (*AuthResponse, error) {
	verifier := s.Google
	if provider == ProviderApple {
		verifier = s.Apple
	}
	id, err := verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	id.Email = normalizeEmail(id.Email)

	username, err := s.freeUsername(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	u, created, err := s.Repo.UpsertSocial(ctx, provider, *id, username)
	if err != nil {
		return nil, err
	}
	if created {
		log.WithFields(log.Fields{
			"user_id":  u.ID,
			"provider": provider,
		}).Info("Новый пользователь через внешний вход")
	}
	return s.authResponse(ctx, u)
}

// freeUsername берёт локальную часть email, а если имя занято, добавляет суффикс.
func (s *Service) freeUsername(ctx context.Context, email string) (string, error) {
	base, _, _ := strings.Cut(email, "@")
	if base == "" {
		base = "birder"
	}
	taken, err := s.Repo.UsernameTaken(ctx, base, 0)
	if err != nil || !taken {
		return base, err
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func (s *Service) authResponse(ctx context.Context, u *User) (*AuthResponse, error) {
	pair, err := s.Tokens.Issue(u.Principal())
	if err != nil {
		return nil, err
	}
	p, err := s.profile(ctx, u)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: p, Access: pair.Access, Refresh: pair.Refresh}, nil
}

// ============================================================================
// Одноразовые коды
// ============================================================================

// generateCode возвращает 6 случайных цифр.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("ошибка генерации кода: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// SendOTP создаёт код и отправляет его на почту.
func (s *Service) SendOTP(ctx context.Context, email string) (*MessageResponse, error) {
	email = normalizeEmail(email)
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	if err := s.Repo.CreateOTP(ctx, email, code, s.now().Add(s.settings.OTPTTL)); err != nil {
		return nil, err
	}
	if err := s.Mailer.SendOTP(ctx, email, code); err != nil {
		return nil, common.Upstream("smtp", err)
	}
	return &MessageResponse{Message: "OTP sent successfully", Email: email}, nil
}

func invalidOTP() error {
	return common.InvalidField("otp", "invalid or expired code")
}

// VerifyOTP погашает код и подтверждает email.
func (s *Service) VerifyOTP(ctx context.Context, req OTPVerifyRequest) (*MessageResponse, error) {
	email := normalizeEmail(req.Email)
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		repo := s.Repo.WithTx(tx)
		ok, err := repo.ConsumeOTP(ctx, email, req.OTP)
		if err != nil {
			return err
		}
		if !ok {
			return invalidOTP()
		}
		return repo.MarkEmailVerified(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	return &MessageResponse{Message: "OTP verified successfully"}, nil
}

// ResetPassword меняет пароль по действующему коду и погашает код.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	email := normalizeEmail(req.Email)
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		repo := s.Repo.WithTx(tx)
		ok, err := repo.ConsumeOTP(ctx, email, req.OTP)
		if err != nil {
			return err
		}
		if !ok {
			return invalidOTP()
		}
		return repo.SetPassword(ctx, u.ID, hash)
	})
	if err != nil {
		return nil, err
	}

	log.WithField("user_id", u.ID).Info("Пароль сброшен")
	return &MessageResponse{Message: "Password reset successfully"}, nil
}

// CleanupOTPs удаляет старые коды. Запускается кроном раз в час.
func (s *Service) CleanupOTPs(ctx context.Context) error {
	n, err := s.Repo.DeleteStaleOTPs(ctx)
	if err != nil {
		return err
	}
	log.WithField("deleted", n).Debug("Очистка одноразовых кодов")
	return nil
}

// ============================================================================
// Профиль
// ============================================================================

// Me возвращает профиль текущего пользователя.
func (s *Service) Me(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// EditProfile меняет username, дату рождения, место и фото.
// Username, занятый другим пользователем, даёт ErrConflict.
func (s *Service) EditProfile(ctx context.Context, userID int64, req EditProfileRequest) (*Profile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		taken, err := s.Repo.UsernameTaken(ctx, name, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("username %q: %w", name, common.ErrConflict)
		}
		u.Username = name
	}
	if req.DateOfBirth != nil {
		d, err := common.ParseDate(*req.DateOfBirth)
		if err != nil {
			return nil, common.InvalidField("date_of_birth", "must be a date in format YYYY-MM-DD")
		}
		if d.After(s.now()) {
			return nil, common.InvalidField("date_of_birth", "must not be in the future")
		}
		u.DateOfBirth = &d
	}
	if req.Location != nil {
		u.Location = strings.TrimSpace(*req.Location)
	}
	if req.ProfileImage != nil {
		u.ProfileImage = *req.ProfileImage
	}

	if err := s.Repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// IsStaff проверяет флаг модератора по базе.
func (s *Service) IsStaff(ctx context.Context, userID int64) (bool, error) {
	return s.Repo.IsStaff(ctx, userID)
}

// profile дополняет пользователя текущей серией, очками и числом мест.
func (s *Service) profile(ctx context.Context, u *User) (*Profile, error) {
	p := &Profile{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		FirstName:       u.FirstName,
		Location:        u.Location,
		ProfileImage:    u.ProfileImage,
		IsEmailVerified: u.IsEmailVerified,
		IsStaff:         u.IsStaff,
	}
	if u.DateOfBirth != nil {
		d := u.DateOfBirth.Format(time.DateOnly)
		p.DateOfBirth = &d
	}

	if s.Streaks != nil {
		st, err := s.Streaks.Get(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		p.StreakCount = st.Current
	}
	if s.Stats != nil {
		sum, err := s.Stats.ProfileSummary(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		p.CollectionScore = sum.TotalScore
		p.LocationsExplored = sum.LocationsExplored
	}
	return p, nil
}
