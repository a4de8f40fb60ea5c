package nearby

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/server"
)

// newValidationRouter собирает роутер без БД: все запросы ниже
// отклоняются до обращения к репозиторию.
func newValidationRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler(NewService(nil, nil, nil, nil, nil, time.UTC)).Routes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (int, server.ErrorBody) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var eb server.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	return rec.Code, eb
}

func TestNearbyQueryValidation(t *testing.T) {
	h := newValidationRouter()

	cases := []struct {
		name   string
		target string
		field  string
	}{
		{"missing latitude", "/nearby-spots?longitude=10", "latitude"},
		{"missing longitude", "/nearby-spots?latitude=10", "longitude"},
		{"non-numeric latitude", "/nearby-spots?latitude=north&longitude=10", "latitude"},
		{"NaN longitude", "/nearby-spots?latitude=1&longitude=NaN", "longitude"},
		{"latitude out of range", "/nearby-spots?latitude=91&longitude=10", "latitude"},
		{"longitude out of range", "/nearby-spots?latitude=1&longitude=-181", "longitude"},
		{"zero radius", "/nearby-spots?latitude=1&longitude=1&radius=0", "radius"},
		{"negative radius", "/nearby-bird-activity?latitude=1&longitude=1&radius=-5", "radius"},
		{"non-numeric radius", "/nearby-bird-activity/view-all?latitude=1&longitude=1&radius=far", "radius"},
		{"bad time period", "/nearby-bird-activity?latitude=1&longitude=1&time_period=week", "time_period"},
		{"search without center", "/nearby-bird-activity/search?query=robin", "latitude"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := doRequest(t, h, http.MethodGet, tc.target, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "invalid_parameters", body.Error)
			assert.Contains(t, body.Fields, tc.field)
		})
	}
}

func TestCreateSpotValidation(t *testing.T) {
	h := newValidationRouter()

	code, body := doRequest(t, h, http.MethodPost, "/nearby-spots/create", `{"name":"Pond","latitude":40}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Fields, "longitude")

	code, body = doRequest(t, h, http.MethodPost, "/nearby-spots/create", `{"name":"  ","latitude":40,"longitude":200}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Fields, "name")
	assert.Equal(t, "must be between -180 and 180", body.Fields["longitude"])

	code, body = doRequest(t, h, http.MethodPost, "/nearby-spots/create", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Fields, "body")
}

func TestReportSightingValidation(t *testing.T) {
	h := newValidationRouter()

	code, body := doRequest(t, h, http.MethodPost, "/nearby-sightings/create", `{"spot":1,"bird":2,"sighting_date":"2024-13-40"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Fields, "sighting_date")

	code, body = doRequest(t, h, http.MethodPost, "/nearby-sightings/create", `{"sighting_date":"2024-05-01"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Fields, "spot")
	assert.Contains(t, body.Fields, "bird")
}

func TestPathIDValidation(t *testing.T) {
	h := newValidationRouter()

	code, body := doRequest(t, h, http.MethodGet, "/nearby-spots/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Fields, "id")

	code, _ = doRequest(t, h, http.MethodDelete, "/nearby-sightings/0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
