package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	c.Set(start.In(time.FixedZone("JST", 9*3600)))
	assert.Equal(t, time.UTC, c.Now().Location())
}

func TestDateOf_UsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2026-10-16 20:00 UTC は東京では 17 日
	instant := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-16", FormatDate(DateOf(instant, time.UTC)))
	assert.Equal(t, "2026-10-17", FormatDate(DateOf(instant, tokyo)))
	assert.Equal(t, "2026-10-16", FormatDate(DateOf(instant, nil)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("28/02/2026")
	assert.Error(t, err)
}
