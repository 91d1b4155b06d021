package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReminderText(t *testing.T) {
	due := time.Date(2026, 10, 16, 17, 0, 0, 0, time.UTC)

	title, msg := ReminderText(3, "SN-1", due, due.Add(-2*time.Hour))
	assert.Equal(t, "Reminder: return due in 2 hours", title)
	assert.Contains(t, msg, "Loan #3")
	assert.Contains(t, msg, "Return by: 16/10/2026 17:00")

	title, _ = ReminderText(3, "SN-1", due, due.Add(-45*time.Minute))
	assert.Equal(t, "Reminder: return due in 45 minutes", title)
}

func TestOverdueText(t *testing.T) {
	due := time.Date(2026, 10, 15, 23, 59, 59, 0, time.UTC)

	title, msg := OverdueText(8, "SN-2", due, due.Add(50*time.Hour))
	assert.Equal(t, "Loan overdue by 2 day(s)", title)
	assert.Contains(t, msg, "ACTION REQUIRED")
	assert.Contains(t, msg, "SN-2")

	title, _ = OverdueText(8, "SN-2", due, due.Add(5*time.Hour))
	assert.Equal(t, "Loan overdue by 5 hour(s)", title)
}
