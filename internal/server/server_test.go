package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{common.InvalidField("latitude", "is required"), http.StatusBadRequest, "invalid_parameters"},
		{fmt.Errorf("x: %w", common.ErrInvalidParameters), http.StatusBadRequest, "invalid_parameters"},
		{common.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("spot 1: %w", common.ErrForbidden), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("spot: %w", common.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("collection entry: %w", common.ErrConflict), http.StatusConflict, "conflict"},
		{common.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
		{common.Upstream("gemini", errors.New("quota")), http.StatusBadGateway, "upstream_error"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error)
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("password=hunter2"))
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec = httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), common.Upstream("stripe", errors.New("sk_live_secret")))
	assert.NotContains(t, rec.Body.String(), "sk_live_secret")
}

func TestRespondErrorFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		common.InvalidField("latitude", "must be a number"))

	assert.JSONEq(t,
		`{"error":"invalid_parameters","message":"invalid parameters","fields":{"latitude":"must be a number"}}`,
		rec.Body.String())
}

type decodeTarget struct {
	Name string `json:"name" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	var v decodeTarget
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Pond"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "Pond", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(req, &v), common.ErrInvalidParameters)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.ErrorIs(t, DecodeJSON(req, &v), common.ErrInvalidParameters)

	v = decodeTarget{}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	var fe *common.FieldError
	require.ErrorAs(t, DecodeJSON(req, &v), &fe)
	assert.Contains(t, fe.Fields, "name")
}

func TestQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?latitude=40.5&longitude=abc&time_period=week&radius=NaN", nil)
	q := NewQuery(req)

	assert.Equal(t, 40.5, q.Float("latitude"))
	q.Float("longitude")
	q.Float("missing")
	assert.Equal(t, 10.0, q.FloatOr("radius", 10))
	assert.Equal(t, "all", q.OneOf("time_period", "all", "all", "recent"))
	assert.Equal(t, 5.0, q.FloatOr("absent", 5))

	var fe *common.FieldError
	require.ErrorAs(t, q.Err(), &fe)
	assert.Equal(t, "must be a number", fe.Fields["longitude"])
	assert.Equal(t, "is required", fe.Fields["missing"])
	assert.Equal(t, "must be a number", fe.Fields["radius"])
	assert.Contains(t, fe.Fields["time_period"], "must be one of")
	assert.NotContains(t, fe.Fields, "latitude")
}

func TestQueryNoErrors(t *testing.T) {
	q := NewQuery(httptest.NewRequest(http.MethodGet, "/?latitude=1&longitude=2", nil))
	q.Float("latitude")
	q.Float("longitude")
	assert.NoError(t, q.Err())
}

func TestPathID(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/spots/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = PathID(r, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/spots/17", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(17), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/spots/abc", nil))
	assert.ErrorIs(t, gotErr, common.ErrInvalidParameters)
}

func TestRouterHealthAndNotFound(t *testing.T) {
	healthy := true
	r := NewRouter(Options{
		CORSOrigins: []string{"*"},
		MaxInflight: 4,
		Health: func(ctx context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("db down")
		},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
