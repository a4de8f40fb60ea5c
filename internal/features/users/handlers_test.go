package users

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/server"
)

func TestRequestValidation(t *testing.T) {
	r := chi.NewRouter()
	h := NewHandler(&Service{})
	h.PublicRoutes(r)
	h.PrivateRoutes(r)

	cases := []struct {
		name, path, body, field string
	}{
		{"signup without body", "/signup", "", "body"},
		{"signup bad email", "/signup", `{"email":"nope","name":"n","password":"testpass123"}`, "email"},
		{"signup short password", "/signup", `{"email":"a@b.co","name":"n","password":"short"}`, "password"},
		{"signup blank name", "/signup", `{"email":"a@b.co","name":"  ","password":"testpass123"}`, "name"},
		{"login without password", "/login", `{"email":"a@b.co"}`, "password"},
		{"refresh empty", "/token/refresh", `{}`, "refresh"},
		{"google without token", "/google-signup", `{}`, "access_token"},
		{"apple without token", "/apple-signup", `{"access_token":""}`, "access_token"},
		{"otp send bad email", "/otp/send", `{"email":"x"}`, "email"},
		{"otp verify letters", "/otp/verify", `{"email":"a@b.co","otp":"12ab56"}`, "otp"},
		{"otp verify short", "/otp/verify", `{"email":"a@b.co","otp":"123"}`, "otp"},
		{"reset short password", "/user/reset-password", `{"email":"a@b.co","otp":"123456","password":"x"}`, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var eb server.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
			assert.Equal(t, "invalid_parameters", eb.Error)
			assert.Contains(t, eb.Fields, tc.field)
		})
	}

	for _, body := range []string{
		`{"date_of_birth":"12/04/1990"}`,
		`{"profile_image":"not a url"}`,
		`{"username":"   "}`,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/user/edit-profile", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
