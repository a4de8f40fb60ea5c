// Package subscription: repository.go выполняет операции с таблицами
// subscription_plans, user_subscriptions и payments.
package subscription

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/birdwatch/internal/db/postgres"
)

// Repository предоставляет методы для работы с подписками.
type Repository struct {
	db postgres.DBTX
}

// NewRepository создаёт новый репозиторий подписок.
func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

const planColumns = `id, name, stripe_price_id, price_cents, billing_interval, features`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	if err := row.Scan(&p.ID, &p.Name, &p.StripePriceID, &p.PriceCents, &p.Interval, &p.Features); err != nil {
		return nil, err
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	p.Price = centsToAmount(p.PriceCents)
	return &p, nil
}

// ActivePlans возвращает действующие планы, дешёвые первыми.
func (r *Repository) ActivePlans(ctx context.Context) ([]*Plan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+planColumns+` FROM subscription_plans
		WHERE is_active
		ORDER BY price_cents, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки планов: %w", err)
	}
	defer rows.Close()

	out := make([]*Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования плана: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ActivePlan возвращает действующий план по id.
func (r *Repository) ActivePlan(ctx context.Context, id int64) (*Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE id = $1 AND is_active`, id))
	if err != nil {
		return nil, postgres.Translate(err, fmt.Sprintf("план %d", id))
	}
	return p, nil
}

// Plan возвращает план по id, в том числе архивный.
func (r *Repository) Plan(ctx context.Context, id int64) (*Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		return nil, postgres.Translate(err, fmt.Sprintf("план %d", id))
	}
	return p, nil
}

// ByUser возвращает подписку пользователя.
func (r *Repository) ByUser(ctx context.Context, userID int64) (*Subscription, error) {
	var s Subscription
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, plan_id, stripe_customer_id, stripe_subscription_id, status,
		       current_period_start, current_period_end, cancel_at_period_end
		FROM user_subscriptions WHERE user_id = $1
	`, userID).Scan(&s.ID, &s.UserID, &s.PlanID, &s.StripeCustomerID, &s.StripeSubscriptionID, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd)
	if err != nil {
		return nil, postgres.Translate(err, "подписка")
	}
	return &s, nil
}

// Upsert создаёт или заменяет подписку пользователя.
func (r *Repository) Upsert(ctx context.Context, s *Subscription) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO user_subscriptions (user_id, plan_id, stripe_customer_id, stripe_subscription_id,
		                                status, current_period_start, current_period_end, cancel_at_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = NOW()
		RETURNING id
	`, s.UserID, s.PlanID, s.StripeCustomerID, s.StripeSubscriptionID,
		s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd,
	).Scan(&s.ID)
	if err != nil {
		return postgres.Translate(err, "подписка")
	}
	return nil
}

// SyncRemote переносит состояние подписки Stripe в локальную запись.
// Неизвестная подписка даёт ErrNotFound.
func (r *Repository) SyncRemote(ctx context.Context, rem *Remote) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_subscriptions
		SET status = $2, current_period_start = $3, current_period_end = $4,
		    cancel_at_period_end = $5, updated_at = NOW()
		WHERE stripe_subscription_id = $1
	`, rem.ID, rem.Status, rem.CurrentPeriodStart, rem.CurrentPeriodEnd, rem.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("ошибка обновления подписки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, fmt.Sprintf("подписка %s", rem.ID))
	}
	return nil
}

// AddPayment записывает платёж подписки покупателя customerID.
// Неизвестный покупатель даёт ErrNotFound.
func (r *Repository) AddPayment(ctx context.Context, customerID, paymentIntentID string, amountCents int64, status string) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO payments (subscription_id, stripe_payment_intent_id, amount_cents, status)
		SELECT id, $2, $3, $4 FROM user_subscriptions WHERE stripe_customer_id = $1
		LIMIT 1
	`, customerID, paymentIntentID, amountCents, status)
	if err != nil {
		return fmt.Errorf("ошибка записи платежа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, fmt.Sprintf("покупатель %s", customerID))
	}
	return nil
}

// Payments возвращает платежи пользователя, новые первыми.
func (r *Repository) Payments(ctx context.Context, userID int64) ([]*Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.amount_cents, p.status, p.created_at
		FROM payments p
		JOIN user_subscriptions s ON s.id = p.subscription_id
		WHERE s.user_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки платежей: %w", err)
	}
	defer rows.Close()

	out := make([]*Payment, 0)
	for rows.Next() {
		var p Payment
		var cents int64
		if err := rows.Scan(&cents, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования платежа: %w", err)
		}
		p.Amount = centsToAmount(cents)
		out = append(out, &p)
	}
	return out, rows.Err()
}
