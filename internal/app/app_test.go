package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/loans"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/config"
	"equipahub-backend/internal/platform/dbtest"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/metrics"
)

const secret = "router_test_secret"

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Mode: "release",
		Auth: config.AuthConfig{JWTSecret: secret},
		Booking: config.BookingConfig{
			BulkThreshold:        5,
			ReservationGraceDays: 1,
			Timezone:             "UTC",
		},
		Scheduler: config.SchedulerConfig{
			HoursBefore:    2,
			ReminderWindow: 6 * time.Hour,
			OverdueWindow:  24 * time.Hour,
			Cooldown:       "history",
		},
	}
	a := &App{Config: cfg, DB: dbtest.Open(t), Metrics: metrics.New(), log: logger.Discard()}
	a.wire(clock.NewFixed(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)))
	return a
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func call(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newTestApp(t).Router()

	w := call(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = call(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodGet, "/api/v1/equipment", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_LoanLifecycle(t *testing.T) {
	a := newTestApp(t)
	r := a.Router()
	unit := dbtest.SeedEquipment(t, a.DB, "available")
	lecturer := token(t, "lec-1", "lecturer")
	tech := token(t, "tech-1", "technician")

	body := `{"equipment_id":` + strconv.FormatUint(unit, 10) + `,"expected_return_date":"2026-10-20","purpose":"lab session"}`
	w := call(r, http.MethodPost, "/api/v1/loans", lecturer, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var loan loans.LoanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loan))
	assert.Equal(t, "lec-1", loan.BorrowerID)
	assert.Equal(t, "/loans/"+loan.ULID, w.Header().Get("Location"))

	// 同じ機材の二重貸出
	w = call(r, http.MethodPost, "/api/v1/loans", lecturer, body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodPost, "/api/v1/loans/"+loan.ULID+"/pickup", lecturer, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodPost, "/api/v1/loans/"+loan.ULID+"/pickup", tech, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "loaned", dbtest.Availability(t, a.DB, unit))

	w = call(r, http.MethodGet, "/api/v1/notifications/unread-count", lecturer, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":2}`, w.Body.String())

	w = call(r, http.MethodPost, "/api/v1/scheduler/run", lecturer, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
