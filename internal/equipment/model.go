package equipment

import (
	"database/sql"
	"time"
)

type Availability string

const (
	Available   Availability = "available"
	Loaned      Availability = "loaned"
	Reserved    Availability = "reserved"
	Maintenance Availability = "maintenance"
	Inactive    Availability = "inactive"
)

func (a Availability) Valid() bool {
	switch a {
	case Available, Loaned, Reserved, Maintenance, Inactive:
		return true
	}
	return false
}

// CanBeBorrowed: a new loan or reservation may reference the unit.
func (a Availability) CanBeBorrowed() bool { return a == Available || a == Reserved }

func (a Availability) IsAvailable() bool { return a == Available }

// Borrowable is the allowed set for every booking that takes a unit.
var Borrowable = []Availability{Available, Reserved}

type Equipment struct {
	ID           uint64
	SerialNumber string
	Brand        string
	Model        string
	Type         string
	Availability Availability
	Location     sql.NullString
	Description  sql.NullString
	AcquiredOn   sql.NullTime
	Revision     uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e *Equipment) CanBeBorrowed() bool { return e != nil && e.Availability.CanBeBorrowed() }
func (e *Equipment) IsAvailable() bool   { return e != nil && e.Availability.IsAvailable() }
