package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/notifications"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCooldown(t *testing.T) {
	mr, rdb := newRedis(t)
	cd := NewRedisCooldown(rdb)
	ctx := context.Background()

	ok, err := cd.Allow(ctx, "u-1", notifications.TopicLoanOverdue, 4, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("booking:cooldown:loan.overdue:u-1:4"))

	ok, err = cd.Allow(ctx, "u-1", notifications.TopicLoanOverdue, 4, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// 別キーは独立
	ok, err = cd.Allow(ctx, "u-1", notifications.TopicLoanReminder, 4, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cd.Forget(ctx, "u-1", notifications.TopicLoanOverdue, 4))
	ok, err = cd.Allow(ctx, "u-1", notifications.TopicLoanOverdue, 4, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Hour)
	ok, err = cd.Allow(ctx, "u-1", notifications.TopicLoanOverdue, 4, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCooldown_ServerDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := NewRedisCooldown(rdb).Allow(context.Background(), "u-1", notifications.TopicLoanOverdue, 1, time.Hour)
	assert.Error(t, err)
}

func TestScheduler_WithRedisCooldown(t *testing.T) {
	_, rdb := newRedis(t)
	f := newFixture(t, WithCooldown(NewRedisCooldown(rdb)))
	ctx := context.Background()

	f.clock.Set(time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC))
	loan := f.activeLoan(t, "2026-10-14", nil)
	f.clock.Set(t0)

	assert.Equal(t, 1, f.sched.CheckOverdueLoans(ctx))
	assert.Equal(t, 0, f.sched.CheckOverdueLoans(ctx))
	assert.Equal(t, 1, f.countFor(t, loan.BorrowerID, notifications.TopicLoanOverdue))
}

func TestHistoryCooldown(t *testing.T) {
	f := newFixture(t)
	cd := NewHistoryCooldown(f.notes)
	ctx := context.Background()

	ok, err := cd.Allow(ctx, "u-1", notifications.TopicLoanReminder, 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.notes.Notify(ctx, notifications.Input{RecipientID: "u-1", Topic: notifications.TopicLoanReminder, SubjectID: 2})
	require.NoError(t, err)

	ok, err = cd.Allow(ctx, "u-1", notifications.TopicLoanReminder, 2, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cd.Forget(ctx, "u-1", notifications.TopicLoanReminder, 2))
}
