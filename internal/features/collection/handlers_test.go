package collection

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

// Запросы ниже отклоняются до обращения к сервису, поэтому он пустой.
func serve(t *testing.T, method, path, body string) (int, server.ErrorBody) {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(&Service{}).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var eb server.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	return rec.Code, eb
}

func TestRequestValidation(t *testing.T) {
	cases := []struct {
		name, method, path, body, field string
	}{
		{"create without body", http.MethodPost, "/collection/create", "", "body"},
		{"create without bird", http.MethodPost, "/collection/create", `{"location":"Park"}`, "bird_id"},
		{"create bad latitude", http.MethodPost, "/collection/create", `{"bird_id":1,"latitude":91,"longitude":0}`, "latitude"},
		{"favorite without bird", http.MethodPost, "/collection/favorite", `{}`, "bird_id"},
		{"filter unknown type", http.MethodPost, "/collection/filter", `{"filter_type":"color","filter_value":"red"}`, "filter_type"},
		{"filter blank value", http.MethodPost, "/collection/filter", `{"filter_type":"rarity","filter_value":"  "}`, "filter_value"},
		{"search bad rarity", http.MethodPost, "/collection/search", `{"rarity":"X"}`, "rarity"},
		{"search bad date", http.MethodPost, "/collection/search", `{"date_from":"05/01/2024"}`, "date_from"},
		{"get bad id", http.MethodGet, "/collection/abc", "", "id"},
		{"delete bad id", http.MethodDelete, "/collection/0", "", "id"},
		{"patch malformed", http.MethodPatch, "/collection/5", `{"notes":`, "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, eb := serve(t, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "invalid_parameters", eb.Error)
			assert.Contains(t, eb.Fields, tc.field)
		})
	}
}
