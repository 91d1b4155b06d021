package loans

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	PendingPickup Status = "pending_pickup"
	Active        Status = "active"
	Overdue       Status = "overdue"
	Completed     Status = "completed"
	Cancelled     Status = "cancelled"
)

// Open statuses hold the unit; the store allows one open loan per unit.
func (s Status) Open() bool { return s == PendingPickup || s == Active || s == Overdue }

// Running loans have been handed over and are not yet back.
func (s Status) Running() bool { return s == Active || s == Overdue }

func (s Status) Valid() bool {
	switch s {
	case PendingPickup, Active, Overdue, Completed, Cancelled:
		return true
	}
	return false
}

type Loan struct {
	ID                 uint64
	ULID               string
	EquipmentID        uint64
	BorrowerID         string
	CreatedBy          string
	Status             Status
	StartDate          time.Time
	ExpectedReturnDate time.Time
	ExpectedReturnTime sql.NullString // HH:MM:SS
	ActualReturnDate   sql.NullTime
	PickupConfirmed    bool
	PickupTechnicianID sql.NullString
	PickupConfirmedAt  sql.NullTime
	Purpose            string
	Notes              sql.NullString
	ReservationID      sql.NullInt64
	RequestID          sql.NullInt64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EndOfDay is used when a loan has no expected return time.
const EndOfDay = "23:59:59"

// ExpectedReturnAt is the instant the loan becomes overdue: expected date plus time
// (end of day when unset) on the wall clock of loc.
func ExpectedReturnAt(l *Loan, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hh, mm, ss := 23, 59, 59
	if l.ExpectedReturnTime.Valid {
		if h, m, s, err := parseClock(l.ExpectedReturnTime.String); err == nil {
			hh, mm, ss = h, m, s
		}
	}
	y, mo, d := l.ExpectedReturnDate.UTC().Date()
	return time.Date(y, mo, d, hh, mm, ss, 0, loc)
}

// Recompute derives the memoised overdue status. It never touches storage.
func Recompute(l Loan, now time.Time, loc *time.Location) Loan {
	if l.Status.Running() && now.After(ExpectedReturnAt(&l, loc)) {
		l.Status = Overdue
	}
	return l
}

func IsOverdue(l *Loan, now time.Time, loc *time.Location) bool {
	return Recompute(*l, now, loc).Status == Overdue
}

// NormalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeClock(s string) (string, error) {
	h, m, sec, err := parseClock(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), nil
}

func parseClock(s string) (int, int, int, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("invalid time %q", s)
}
