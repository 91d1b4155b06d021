package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestULID_MonotonicWithinMillisecond(t *testing.T) {
	g := ULID()
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	prev := g.NewULID(at)
	for i := 0; i < 100; i++ {
		next := g.NewULID(at)
		assert.Less(t, prev, next)
		prev = next
	}
	assert.True(t, Valid(prev))
	assert.False(t, Valid("42"))
}
