// Package users: repository.go выполняет операции с таблицами users, otps и login_attempts.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// Repository предоставляет методы для работы с пользователями.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт новый репозиторий.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx возвращает репозиторий, работающий внутри транзакции.
func (r *Repository) WithTx(tx postgres.DBTX) *Repository {
	return &Repository{db: tx}
}

const userColumns = `id, email, username, first_name, password_hash, date_of_birth, location,
	profile_image, is_email_verified, is_staff, google_id, apple_id, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.PasswordHash, &u.DateOfBirth, &u.Location,
		&u.ProfileImage, &u.IsEmailVerified, &u.IsStaff, &u.GoogleID, &u.AppleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create вставляет пользователя. Занятые email или username дают ErrConflict.
func (r *Repository) Create(ctx context.Context, u *User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (email, username, first_name, password_hash, is_email_verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.Email, u.Username, u.FirstName, u.PasswordHash, u.IsEmailVerified)
	created, err := scanUser(row)
	if err != nil {
		return postgres.Translate(err, "пользователь")
	}
	*u = *created
	return nil
}

// providerColumns: колонки идентификаторов внешних провайдеров.
var providerColumns = map[string]string{
	ProviderGoogle: "google_id",
	ProviderApple:  "apple_id",
}

// UpsertSocial находит пользователя по email или создаёт его.
// Email считается подтверждённым; идентификатор провайдера записывается, если его ещё нет.
func (r *Repository) UpsertSocial(ctx context.Context, provider string, id Identity, username string) (*User, bool, error) {
	column, ok := providerColumns[provider]
	if !ok {
		return nil, false, fmt.Errorf("неизвестный провайдер %q", provider)
	}

	var (
		u       User
		created bool
	)
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, username, is_email_verified, `+column+`)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (email) DO UPDATE
		SET is_email_verified = TRUE,
		    `+column+` = CASE WHEN users.`+column+` = '' THEN EXCLUDED.`+column+` ELSE users.`+column+` END,
		    updated_at = NOW()
		RETURNING `+userColumns+`, (xmax = 0)
	`, id.Email, username, id.Subject).Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.PasswordHash,
		&u.DateOfBirth, &u.Location, &u.ProfileImage, &u.IsEmailVerified, &u.IsStaff, &u.GoogleID, &u.AppleID,
		&u.CreatedAt, &u.UpdatedAt, &created)
	if err != nil {
		return nil, false, postgres.Translate(err, "пользователь")
	}
	return &u, created, nil
}

// GetByID возвращает пользователя или ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, postgres.Translate(err, "пользователь")
	}
	return u, nil
}

// GetByEmail ищет пользователя по email без учёта регистра.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, postgres.Translate(err, "пользователь")
	}
	return u, nil
}

// UsernameTaken сообщает, занят ли username другим пользователем.
func (r *Repository) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND id <> $2)`, username, exceptID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки username: %w", err)
	}
	return taken, nil
}

// UpdateProfile сохраняет редактируемые поля профиля.
func (r *Repository) UpdateProfile(ctx context.Context, u *User) error {
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET username = $2, date_of_birth = $3, location = $4, profile_image = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.Username, u.DateOfBirth, u.Location, u.ProfileImage).Scan(&u.UpdatedAt)
	return postgres.Translate(err, "пользователь")
}

// SetPassword меняет хеш пароля.
func (r *Repository) SetPassword(ctx context.Context, userID int64, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash)
	if err != nil {
		return fmt.Errorf("ошибка смены пароля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "пользователь")
	}
	return nil
}

// MarkEmailVerified отмечает email подтверждённым. Неизвестный email не ошибка.
func (r *Repository) MarkEmailVerified(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET is_email_verified = TRUE, updated_at = NOW() WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return fmt.Errorf("ошибка подтверждения email: %w", err)
	}
	return nil
}

// IsStaff проверяет флаг модератора.
func (r *Repository) IsStaff(ctx context.Context, userID int64) (bool, error) {
	var staff bool
	err := r.db.QueryRow(ctx, `SELECT is_staff FROM users WHERE id = $1`, userID).Scan(&staff)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки is_staff: %w", err)
	}
	return staff, nil
}

// ============================================================================
// Попытки входа
// ============================================================================

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, email string, success bool) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO login_attempts (email, success) VALUES (LOWER($1), $2)`, email, success)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// RecentFailures считает неудачные попытки за период после последнего успешного входа.
func (r *Repository) RecentFailures(ctx context.Context, email string, period time.Duration) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = LOWER($1) AND success = FALSE
		  AND attempted_at >= $2
		  AND attempted_at > COALESCE(
		      (SELECT MAX(attempted_at) FROM login_attempts WHERE email = LOWER($1) AND success),
		      '-infinity'::timestamptz)
	`, email, time.Now().Add(-period)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return n, nil
}

// ============================================================================
// Одноразовые коды
// ============================================================================

// CreateOTP сохраняет код.
func (r *Repository) CreateOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO otps (email, code, expires_at) VALUES (LOWER($1), $2, $3)`, email, code, expiresAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения кода: %w", err)
	}
	return nil
}

// ConsumeOTP помечает использованным самый свежий подходящий код.
// Возвращает false, если действующего кода нет.
func (r *Repository) ConsumeOTP(ctx context.Context, email, code string) (bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE otps SET is_used = TRUE
		WHERE id = (
			SELECT id FROM otps
			WHERE email = LOWER($1) AND code = $2 AND NOT is_used AND expires_at > NOW()
			ORDER BY created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING id
	`, email, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки кода: %w", err)
	}
	return true, nil
}

// DeleteStaleOTPs удаляет просроченные или использованные коды старше суток.
func (r *Repository) DeleteStaleOTPs(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM otps
		WHERE (expires_at < NOW() OR is_used) AND created_at < NOW() - INTERVAL '1 day'
	`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки кодов: %w", err)
	}
	return tag.RowsAffected(), nil
}
