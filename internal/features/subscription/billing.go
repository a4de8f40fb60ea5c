// Package subscription: billing.go вызывает Stripe API через предохранитель.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/upstream"
)

// ServiceName: имя Stripe в метриках и ошибках.
const ServiceName = "stripe"

// ErrBillingDisabled: ключ Stripe не задан.
var ErrBillingDisabled = errors.New("billing is not configured")

// Remote: подписка на стороне Stripe.
type Remote struct {
	ID                 string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	ClientSecret       string // только у только что созданной подписки
}

// Billing: операции платёжной системы.
type Billing interface {
	CreateCustomer(ctx context.Context, email string, userID int64) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*Remote, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Remote, error)
	Subscription(ctx context.Context, subscriptionID string) (*Remote, error)
}

// DisabledBilling отвечает ошибкой на любой вызов.
type DisabledBilling struct{}

func (DisabledBilling) CreateCustomer(context.Context, string, int64) (string, error) {
	return "", common.Upstream(ServiceName, ErrBillingDisabled)
}

func (DisabledBilling) CreateSubscription(context.Context, string, string) (*Remote, error) {
	return nil, common.Upstream(ServiceName, ErrBillingDisabled)
}

func (DisabledBilling) CancelAtPeriodEnd(context.Context, string) (*Remote, error) {
	return nil, common.Upstream(ServiceName, ErrBillingDisabled)
}

func (DisabledBilling) Subscription(context.Context, string) (*Remote, error) {
	return nil, common.Upstream(ServiceName, ErrBillingDisabled)
}

// StripeBilling: клиент Stripe.
type StripeBilling struct {
	api     *client.API
	breaker *upstream.Breaker
}

// NewStripeBilling создаёт клиент. Пустой ключ выключает оплату.
// httpClient может быть nil. Повторов нет: ошибка сразу уходит клиенту.
func NewStripeBilling(secretKey string, httpClient *http.Client) Billing {
	if secretKey == "" {
		return DisabledBilling{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     log.StandardLogger(),
	})
	return &StripeBilling{
		api:     client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		breaker: upstream.New(ServiceName, upstream.DefaultSettings),
	}
}

// CreateCustomer создаёт покупателя с id пользователя в метаданных.
func (b *StripeBilling) CreateCustomer(ctx context.Context, email string, userID int64) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))

	c, err := upstream.Call(b.breaker, func() (*stripe.Customer, error) {
		return b.api.Customers.New(params)
	})
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// CreateSubscription создаёт неоплаченную подписку; оплату подтверждает
// клиент по client_secret платёжного намерения первого счёта.
func (b *StripeBilling) CreateSubscription(ctx context.Context, customerID, priceID string) (*Remote, error) {
	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(customerID),
		Items:           []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := upstream.Call(b.breaker, func() (*stripe.Subscription, error) {
		return b.api.Subscriptions.New(params)
	})
	if err != nil {
		return nil, err
	}
	r := toRemote(sub)
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		r.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return r, nil
}

// CancelAtPeriodEnd отменяет подписку в конце оплаченного периода.
func (b *StripeBilling) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Remote, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	sub, err := upstream.Call(b.breaker, func() (*stripe.Subscription, error) {
		return b.api.Subscriptions.Update(subscriptionID, params)
	})
	if err != nil {
		return nil, err
	}
	return toRemote(sub), nil
}

// Subscription возвращает текущее состояние подписки.
func (b *StripeBilling) Subscription(ctx context.Context, subscriptionID string) (*Remote, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := upstream.Call(b.breaker, func() (*stripe.Subscription, error) {
		return b.api.Subscriptions.Get(subscriptionID, params)
	})
	if err != nil {
		return nil, err
	}
	return toRemote(sub), nil
}

func toRemote(sub *stripe.Subscription) *Remote {
	return &Remote{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
}

// describe возвращает подпись ошибки Stripe для логов.
func describe(err error) string {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Sprintf("%s/%s", se.Type, se.Code)
	}
	return ""
}
