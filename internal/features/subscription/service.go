// Package subscription: service.go содержит логику подписок и разбор вебхуков Stripe.
package subscription

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// События Stripe, которые обрабатывает вебхук
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

// Service управляет подписками.
type Service struct {
	repo          *Repository
	billing       Billing
	webhookSecret string
}

// NewService создаёт сервис подписок.
func NewService(repo *Repository, billing Billing, webhookSecret string) *Service {
	if billing == nil {
		billing = DisabledBilling{}
	}
	return &Service{repo: repo, billing: billing, webhookSecret: webhookSecret}
}

// Plans возвращает действующие планы.
func (s *Service) Plans(ctx context.Context) ([]*Plan, error) {
	return s.repo.ActivePlans(ctx)
}

// current возвращает подписку пользователя или nil.
func (s *Service) current(ctx context.Context, userID int64) (*Subscription, error) {
	sub, err := s.repo.ByUser(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

// Subscribe оформляет подписку на план. Покупатель Stripe создаётся
// при первой подписке и переиспользуется при смене плана.
func (s *Service) Subscribe(ctx context.Context, userID int64, email string, planID int64) (*SubscribeResponse, error) {
	plan, err := s.repo.ActivePlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	existing, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{"user_id": userID, "plan_id": planID})

	customerID := ""
	if existing != nil {
		customerID = existing.StripeCustomerID
	} else {
		if customerID, err = s.billing.CreateCustomer(ctx, email, userID); err != nil {
			logger.WithError(err).WithField("stripe_error", describe(err)).Error("Не удалось создать покупателя")
			return nil, err
		}
	}

	remote, err := s.billing.CreateSubscription(ctx, customerID, plan.StripePriceID)
	if err != nil {
		logger.WithError(err).WithField("stripe_error", describe(err)).Error("Не удалось создать подписку")
		return nil, err
	}

	err = s.repo.Upsert(ctx, &Subscription{
		UserID:               userID,
		PlanID:               plan.ID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: remote.ID,
		Status:               remote.Status,
		CurrentPeriodStart:   remote.CurrentPeriodStart,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
	})
	if err != nil {
		return nil, err
	}

	logger.WithField("subscription", remote.ID).Info("Подписка оформлена")
	return &SubscribeResponse{SubscriptionID: remote.ID, ClientSecret: remote.ClientSecret}, nil
}

// Cancel отменяет подписку в конце периода. Без подписки: ErrNotFound.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	sub, err := s.repo.ByUser(ctx, userID)
	if err != nil {
		return err
	}
	remote, err := s.billing.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return err
	}
	remote.CancelAtPeriodEnd = true
	if err := s.repo.SyncRemote(ctx, remote); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "subscription": sub.StripeSubscriptionID}).Info("Подписка отменена с конца периода")
	return nil
}

// Status возвращает актуальное состояние подписки из Stripe и сохраняет его.
func (s *Service) Status(ctx context.Context, userID int64) (*StatusResponse, error) {
	sub, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &StatusResponse{Status: StatusNone}, nil
	}

	remote, err := s.billing.Subscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SyncRemote(ctx, remote); err != nil {
		return nil, err
	}
	plan, err := s.repo.Plan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	end := remote.CurrentPeriodEnd
	return &StatusResponse{
		Status:            remote.Status,
		CurrentPeriodEnd:  &end,
		CancelAtPeriodEnd: remote.CancelAtPeriodEnd,
		Plan:              &PlanSummary{Name: plan.Name, Price: plan.Price, Interval: plan.Interval},
	}, nil
}

// History возвращает платежи пользователя.
func (s *Service) History(ctx context.Context, userID int64) ([]*Payment, error) {
	return s.repo.Payments(ctx, userID)
}

// ============================================================================
// Вебхук
// ============================================================================

// HandleWebhook проверяет подпись Stripe-Signature и применяет событие.
// Неверная подпись даёт ErrInvalidParameters. Незнакомые события и события
// о неизвестных подписках подтверждаются без изменений, чтобы Stripe их не повторял.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		return common.InvalidField("Stripe-Signature", "invalid webhook signature")
	}

	eventType := string(event.Type)
	logger := log.WithFields(log.Fields{"event_id": event.ID, "type": eventType})

	err = s.apply(ctx, eventType, event.Data)
	switch {
	case err == nil:
		metrics.WebhookEvents.WithLabelValues(eventType, "ok").Inc()
	case errors.Is(err, common.ErrNotFound):
		metrics.WebhookEvents.WithLabelValues(eventType, "unknown_subscription").Inc()
		logger.WithError(err).Warn("Событие Stripe о неизвестной подписке")
		return nil
	default:
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		return err
	}
	logger.Debug("Событие Stripe обработано")
	return nil
}

func (s *Service) apply(ctx context.Context, eventType string, data *stripe.EventData) error {
	if data == nil {
		return nil
	}
	switch eventType {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(data.Raw, &sub); err != nil {
			return common.InvalidField("data", "malformed subscription object")
		}
		return s.repo.SyncRemote(ctx, toRemote(&sub))

	case EventPaymentSucceeded, EventPaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(data.Raw, &inv); err != nil || inv.Customer == nil {
			return common.InvalidField("data", "malformed invoice object")
		}
		paymentIntent := ""
		if inv.PaymentIntent != nil {
			paymentIntent = inv.PaymentIntent.ID
		}
		if eventType == EventPaymentSucceeded {
			return s.repo.AddPayment(ctx, inv.Customer.ID, paymentIntent, inv.AmountPaid, PaymentSucceeded)
		}
		return s.repo.AddPayment(ctx, inv.Customer.ID, paymentIntent, inv.AmountDue, PaymentFailed)
	}
	return nil
}
