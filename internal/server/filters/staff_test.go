package filters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/birdwatch/internal/auth"
)

type fakeStaff struct {
	staff map[int64]bool
	err   error
}

func (f fakeStaff) IsStaff(_ context.Context, userID int64) (bool, error) {
	return f.staff[userID], f.err
}

func TestStaffFilter(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name      string
		principal *auth.Principal
		checker   fakeStaff
		want      int
	}{
		{"аноним", nil, fakeStaff{}, http.StatusUnauthorized},
		{"обычный пользователь", &auth.Principal{UserID: 1}, fakeStaff{}, http.StatusForbidden},
		{"права сняты", &auth.Principal{UserID: 1, Staff: true}, fakeStaff{staff: map[int64]bool{}}, http.StatusForbidden},
		{"ошибка БД", &auth.Principal{UserID: 1, Staff: true}, fakeStaff{err: errors.New("db down")}, http.StatusInternalServerError},
		{"модератор", &auth.Principal{UserID: 1, Staff: true}, fakeStaff{staff: map[int64]bool{1: true}}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/moderation/spots/1/verify", nil)
			if tc.principal != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), *tc.principal))
			}
			rec := httptest.NewRecorder()
			NewStaffFilter(tc.checker).Middleware(next).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
