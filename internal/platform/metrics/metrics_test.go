package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("loan", "create", "")
	m.Observe("loan", "create", "")
	m.Observe("loan", "create", "CONFLICT")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("loan", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("loan", "create", "CONFLICT")))
}

func TestSkippedIgnoresZero(t *testing.T) {
	m := New()
	m.Skipped(0)
	m.Skipped(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FanOutSkipped))
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("loan", "create", "")
		m.Notified("loan.overdue")
		m.Scan("overdue", "ok")
		m.Skipped(2)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Notified("loan.reminder")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `booking_notifications_total{topic="loan.reminder"} 1`)
}
