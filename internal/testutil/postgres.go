// Package testutil поднимает PostgreSQL в контейнере для интеграционных тестов репозиториев.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// NewPostgres запускает postgres:16-alpine, применяет все миграции и возвращает пул.
// В режиме -short и без Docker тест пропускается.
func NewPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("интеграционный тест: пропущен в режиме -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("birdwatch"),
		tcpostgres.WithUsername("birdwatch"),
		tcpostgres.WithPassword("birdwatch"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("не удалось запустить контейнер postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("не удалось остановить контейнер: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("строка подключения: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("парсинг DSN: %v", err)
	}
	pool, err := postgres.Connect(ctx, poolConfig)
	if err != nil {
		t.Fatalf("подключение: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.RunMigrations(ctx, pool, postgres.Schema); err != nil {
		t.Fatalf("миграции: %v", err)
	}
	return pool
}

// CreateUser вставляет пользователя напрямую и возвращает его id.
func CreateUser(t *testing.T, pool *pgxpool.Pool, email string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, username) VALUES ($1, $1) RETURNING id`, email,
	).Scan(&id)
	if err != nil {
		t.Fatalf("создание пользователя: %v", err)
	}
	return id
}

// CreateBird вставляет птицу с указанной редкостью и возвращает id.
func CreateBird(t *testing.T, pool *pgxpool.Pool, name, rarity string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO birds (name, rarity) VALUES ($1, $2) RETURNING id`, name, rarity,
	).Scan(&id)
	if err != nil {
		t.Fatalf("создание птицы: %v", err)
	}
	return id
}
