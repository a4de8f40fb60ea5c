// Package postgres: queries.go содержит общие утилиты для выполнения запросов:
// интерфейс DBTX, транзакции и перевод ошибок драйвера в ошибки домена.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/birdwatch/internal/common"
)

// DBTX объединяет *pgxpool.Pool и pgx.Tx: методы репозиториев принимают его,
// чтобы одна и та же операция работала и в транзакции, и без неё.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner умеет открывать транзакции (*pgxpool.Pool).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx выполняет fn в транзакции. Если fn вернула ошибку,
// транзакция откатывается, иначе фиксируется.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откатываем транзакцию, если что-то пошло не так (после Commit это no-op)
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// ExecMigrationSQL выполняет один SQL-скрипт миграции в транзакции.
// Возвращает applied=false, если версия уже была применена.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	applied := false
	err := WithTx(ctx, pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки миграции: %w", err)
		}
		if exists {
			return nil
		}

		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", version,
		); err != nil {
			return fmt.Errorf("ошибка записи версии миграции: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// Коды SQLSTATE, которые переводим в ошибки домена
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// IsUniqueViolation сообщает, что ошибка вызвана нарушением уникального индекса.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsForeignKeyViolation сообщает, что ссылка на несуществующую запись.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// Translate переводит ошибки драйвера в таксономию common:
// pgx.ErrNoRows → ErrNotFound, 23505 → ErrConflict, 23503 → ErrNotFound.
// what попадает в текст ошибки ("место", "наблюдение", ...).
func Translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, common.ErrConflict)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%s: связанная запись: %w", what, common.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern экранирует спецсимволы LIKE и оборачивает строку в %...%
// для поиска подстроки (ILIKE $1).
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
