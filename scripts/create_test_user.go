//go:build ignore

// create_test_user.go: утилита для создания тестового пользователя.
// Запуск: go run scripts/create_test_user.go [-staff]
//
// Создаёт test@example.com / testpass123 (username testuser), если его ещё нет.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"serotonyl.ru/birdwatch/internal/config"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/users"
)

const (
	email    = "test@example.com"
	password = "testpass123"
	username = "testuser"
)

func main() {
	staff := flag.Bool("staff", false, "выдать права модератора")
	flag.Parse()

	if err := run(*staff); err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run(staff bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, postgres.Schema); err != nil {
		return err
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx, `
		INSERT INTO users (email, username, first_name, password_hash, is_email_verified, is_staff)
		VALUES ($1, $2, 'Test', $3, TRUE, $4)
		ON CONFLICT (email) DO NOTHING`,
		email, username, hash, staff,
	)
	if err != nil {
		return fmt.Errorf("не удалось создать пользователя: %w", err)
	}

	if tag.RowsAffected() == 0 {
		fmt.Printf("Пользователь %s уже существует\n", email)
		return nil
	}
	fmt.Printf("Создан пользователь %s / %s (username %s, staff=%t)\n", email, password, username, staff)
	return nil
}
