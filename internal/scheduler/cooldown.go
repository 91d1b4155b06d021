package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"equipahub-backend/internal/notifications"
)

// Cooldown decides whether a scheduled notification for (recipient, topic, subject) may go out now.
// Allow must record the send when it returns true; Forget undoes that record after a failed send.
type Cooldown interface {
	Allow(ctx context.Context, recipient string, topic notifications.Topic, subjectID uint64, window time.Duration) (bool, error)
	Forget(ctx context.Context, recipient string, topic notifications.Topic, subjectID uint64) error
}

// HistoryCooldown reads the notification table itself: the stored notification is the record.
type HistoryCooldown struct {
	notes *notifications.Service
}

func NewHistoryCooldown(notes *notifications.Service) *HistoryCooldown {
	return &HistoryCooldown{notes: notes}
}

func (h *HistoryCooldown) Allow(ctx context.Context, recipient string, topic notifications.Topic, subjectID uint64, window time.Duration) (bool, error) {
	recent, err := h.notes.HasRecent(ctx, recipient, topic, subjectID, window)
	if err != nil {
		return false, err
	}
	return !recent, nil
}

func (h *HistoryCooldown) Forget(context.Context, string, notifications.Topic, uint64) error { return nil }

// RedisCooldown keeps one key per (recipient, topic, subject) that expires after the window.
type RedisCooldown struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisCooldown(rdb redis.UniversalClient) *RedisCooldown {
	return &RedisCooldown{rdb: rdb, prefix: "booking:cooldown"}
}

func (r *RedisCooldown) key(recipient string, topic notifications.Topic, subjectID uint64) string {
	return fmt.Sprintf("%s:%s:%s:%d", r.prefix, topic, recipient, subjectID)
}

func (r *RedisCooldown) Allow(ctx context.Context, recipient string, topic notifications.Topic, subjectID uint64, window time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.key(recipient, topic, subjectID), time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("scheduler.RedisCooldown.Allow: %w", err)
	}
	return ok, nil
}

func (r *RedisCooldown) Forget(ctx context.Context, recipient string, topic notifications.Topic, subjectID uint64) error {
	if err := r.rdb.Del(ctx, r.key(recipient, topic, subjectID)).Err(); err != nil {
		return fmt.Errorf("scheduler.RedisCooldown.Forget: %w", err)
	}
	return nil
}
