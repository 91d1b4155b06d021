package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"APP_MODE", "DB_PASSWORD", "DB_HOST", "JWT_SECRET", "REDIS_ADDR", "KAFKA_BROKERS", "BULK_THRESHOLD", "CONFIG_PATH"} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte("database:\n  driver: sqlite3\n  path: /tmp/x.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5, cfg.Booking.BulkThreshold)
	assert.Equal(t, 1, cfg.Booking.ReservationGraceDays)
	assert.Equal(t, 2, cfg.Scheduler.HoursBefore)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.ReminderWindow)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.OverdueWindow)
	assert.Equal(t, "history", cfg.Scheduler.Cooldown)
	assert.Equal(t, "booking.lifecycle", cfg.Kafka.Topic)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestParse_YAMLAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("BULK_THRESHOLD", "8")

	cfg, err := Parse([]byte(`
mode: release
booking:
  bulk_threshold: 3
  timezone: Asia/Tokyo
scheduler:
  reminder_window: 90m
  cooldown: redis
redis:
  addr: 127.0.0.1:6379
`))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Booking.BulkThreshold)
	assert.Equal(t, 90*time.Minute, cfg.Scheduler.ReminderWindow)
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
}

func TestParse_ZeroGraceDaysKept(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte("booking:\n  reservation_grace_days: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Booking.ReservationGraceDays)

	cfg, err = Parse([]byte("booking:\n  bulk_threshold: 6\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultGraceDays, cfg.Booking.ReservationGraceDays)
}

func TestParse_Invalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown mode", "mode: staging\n"},
		{"unknown timezone", "booking:\n  timezone: Mars/Olympus\n"},
		{"redis cooldown without addr", "scheduler:\n  cooldown: redis\n"},
		{"unknown cooldown", "scheduler:\n  cooldown: memcached\n"},
		{"negative grace", "booking:\n  reservation_grace_days: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "booking.yaml")
	require.NoError(t, os.WriteFile(path, []byte("booking:\n  reservation_grace_days: 2\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Booking.ReservationGraceDays)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
