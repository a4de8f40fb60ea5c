// Package subscription продаёт подписки через Stripe и принимает его вебхуки.
// models.go описывает планы, подписки и платежи.
package subscription

import "time"

// Статусы платежей
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// StatusNone: ответ /status для пользователя без подписки.
const StatusNone = "no_subscription"

// Plan: тарифный план.
type Plan struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	StripePriceID string   `json:"-"`
	PriceCents    int64    `json:"-"`
	Price         float64  `json:"price"`
	Interval      string   `json:"interval"` // month или year
	Features      []string `json:"features"`
}

// Subscription: подписка пользователя (одна на пользователя).
type Subscription struct {
	ID                   int64
	UserID               int64
	PlanID               int64
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
}

// Payment: запись истории платежей.
type Payment struct {
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribeResponse: ответ POST /plans/{id}/subscribe.
type SubscribeResponse struct {
	SubscriptionID string `json:"subscription_id"`
	ClientSecret   string `json:"client_secret"`
}

// PlanSummary: план в ответе /status.
type PlanSummary struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Interval string  `json:"interval"`
}

// StatusResponse: ответ GET /status.
type StatusResponse struct {
	Status            string       `json:"status"`
	CurrentPeriodEnd  *time.Time   `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool         `json:"cancel_at_period_end"`
	Plan              *PlanSummary `json:"plan,omitempty"`
}

// centsToAmount переводит центы в денежную сумму ответа.
func centsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
