package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"equipahub-backend/internal/platform/db"
)

const (
	DefaultPath      = "config/config.yaml"
	DefaultGraceDays = 1
)

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type BookingConfig struct {
	BulkThreshold        int    `yaml:"bulk_threshold"`
	ReservationGraceDays int    `yaml:"reservation_grace_days"`
	Timezone             string `yaml:"timezone"`
}

type SchedulerConfig struct {
	HoursBefore    int           `yaml:"hours_before"`
	ReminderWindow time.Duration `yaml:"reminder_window"`
	OverdueWindow  time.Duration `yaml:"overdue_window"`
	Cooldown       string        `yaml:"cooldown"` // history | redis
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Config struct {
	Version     string            `yaml:"version"`
	Mode        string            `yaml:"mode"`
	HTTP        HTTPConfig        `yaml:"http"`
	DB          db.DatabaseConfig `yaml:"database"`
	Certificate Certs             `yaml:"certificate"`
	Auth        AuthConfig        `yaml:"auth"`
	Booking     BookingConfig     `yaml:"booking"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
}

// Load reads .env (if present), the YAML file at path, then applies env overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if v := os.Getenv("CONFIG_PATH"); v != "" && path == "" {
		path = v
	}
	if path == "" {
		path = DefaultPath
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(buf []byte) (*Config, error) {
	// 0 日は有効な設定値なので、未指定の場合だけ既定値が残る
	cfg := Config{Booking: BookingConfig{ReservationGraceDays: DefaultGraceDays}}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("BULK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Booking.BulkThreshold = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Booking.BulkThreshold <= 0 {
		c.Booking.BulkThreshold = 5
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}
	if c.Scheduler.HoursBefore <= 0 {
		c.Scheduler.HoursBefore = 2
	}
	if c.Scheduler.ReminderWindow <= 0 {
		c.Scheduler.ReminderWindow = 6 * time.Hour
	}
	if c.Scheduler.OverdueWindow <= 0 {
		c.Scheduler.OverdueWindow = 24 * time.Hour
	}
	if c.Scheduler.Cooldown == "" {
		c.Scheduler.Cooldown = "history"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "booking.lifecycle"
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	if c.Booking.ReservationGraceDays < 0 {
		return fmt.Errorf("booking.reservation_grace_days must not be negative, got %d", c.Booking.ReservationGraceDays)
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	switch c.Scheduler.Cooldown {
	case "history":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("scheduler.cooldown=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("scheduler.cooldown must be history or redis, got %q", c.Scheduler.Cooldown)
	}
	return nil
}

// Location is the zone calendar dates are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
