package subscription

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestWebhookRejectsBadSignature(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewService(nil, nil, testWebhookSecret)).WebhookRoutes(r)

	payload := event(EventSubscriptionUpdated, `{"id":"sub_1","object":"subscription"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed(payload, "whsec_other"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Stripe-Signature")
}

func TestWebhookAcknowledgesUnknownEvent(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewService(nil, nil, testWebhookSecret)).WebhookRoutes(r)

	payload := event("customer.created", `{"id":"cus_1","object":"customer"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed(payload, testWebhookSecret))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscribeRejectsBadPlanID(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewService(nil, nil, "")).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans/zero/subscribe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
