package subscription

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
)

const stripeAPI = "https://api.stripe.com/v1"

func newMockBilling(t *testing.T) (*StripeBilling, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	b := NewStripeBilling("sk_test_123", &http.Client{Transport: mt})
	return b.(*StripeBilling), mt
}

func TestStripeCreateSubscription(t *testing.T) {
	b, mt := newMockBilling(t)
	ctx := context.Background()

	var subscriptionForm string
	mt.RegisterResponder(http.MethodPost, stripeAPI+"/customers",
		httpmock.NewStringResponder(http.StatusOK, `{"id":"cus_123","object":"customer","email":"a@b.co"}`))
	mt.RegisterResponder(http.MethodPost, stripeAPI+"/subscriptions",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			subscriptionForm = string(body)
			return httpmock.NewStringResponse(http.StatusOK, `{
				"id": "sub_1", "object": "subscription", "status": "incomplete",
				"current_period_start": 1700000000, "current_period_end": 1702592000,
				"cancel_at_period_end": false,
				"latest_invoice": {"id": "in_1", "object": "invoice",
					"payment_intent": {"id": "pi_1", "object": "payment_intent", "client_secret": "pi_1_secret_x"}}
			}`), nil
		})

	customer, err := b.CreateCustomer(ctx, "a@b.co", 42)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", customer)

	sub, err := b.CreateSubscription(ctx, customer, "price_monthly")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "incomplete", sub.Status)
	assert.Equal(t, "pi_1_secret_x", sub.ClientSecret)
	assert.Equal(t, int64(1702592000), sub.CurrentPeriodEnd.Unix())

	assert.Contains(t, subscriptionForm, "payment_behavior=default_incomplete")
	assert.Contains(t, subscriptionForm, "customer=cus_123")
	assert.Equal(t, 2, mt.GetTotalCallCount())
}

func TestStripeErrorIsUpstream(t *testing.T) {
	b, mt := newMockBilling(t)
	mt.RegisterResponder(http.MethodPost, stripeAPI+"/subscriptions",
		httpmock.NewStringResponder(http.StatusBadRequest,
			`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price"}}`))

	_, err := b.CreateSubscription(context.Background(), "cus_1", "price_gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, "invalid_request_error/resource_missing", describe(err))
}

func TestDisabledBilling(t *testing.T) {
	b := NewStripeBilling("", nil)
	_, err := b.CreateCustomer(context.Background(), "a@b.co", 1)
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.ErrorIs(t, err, ErrBillingDisabled)
}
