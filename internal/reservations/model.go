package reservations

import (
	"database/sql"
	"time"
)

type Status string

const (
	Active    Status = "active"
	Confirmed Status = "confirmed"
	Cancelled Status = "cancelled"
	Expired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case Active, Confirmed, Cancelled, Expired:
		return true
	}
	return false
}

type Reservation struct {
	ID                 uint64
	ULID               string
	EquipmentID        uint64
	RequesterID        string
	CreatedBy          string
	Status             Status
	ReservationDate    time.Time
	ExpectedPickupDate time.Time
	Purpose            string
	Notes              sql.NullString
	ConfirmedAt        sql.NullTime
	ConvertedLoanID    sql.NullInt64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Outstanding reservations keep their unit reserved.
func (r *Reservation) Outstanding() bool {
	return (r.Status == Active || r.Status == Confirmed) && !r.ConvertedLoanID.Valid
}

func (r *Reservation) Converted() bool { return r.ConvertedLoanID.Valid }

// ExpiresAt is the end of the grace window: the reservation stays valid through the whole of
// pickup date + graceDays in loc and expires at the following midnight.
func ExpiresAt(r *Reservation, graceDays int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := r.ExpectedPickupDate.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, graceDays+1)
}

// Recompute derives expiry for a reservation that is still active. Confirmed reservations never expire.
func Recompute(r Reservation, now time.Time, graceDays int, loc *time.Location) Reservation {
	if r.Status == Active && !r.Converted() && now.After(ExpiresAt(&r, graceDays, loc)) {
		r.Status = Expired
	}
	return r
}
