package loanrequests

import (
	"database/sql"
	"time"
)

type Status string

const (
	Pending    Status = "pending"
	Authorized Status = "authorized"
	Rejected   Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Authorized, Rejected:
		return true
	}
	return false
}

// DefaultThreshold is the largest quantity that still goes through a direct loan.
const DefaultThreshold = 5

const DefaultApprovalReason = "Request approved."

// SkipUnavailable is the skipped reason for units that could not be booked.
const SkipUnavailable = "unavailable"

type LoanRequest struct {
	ID                 uint64
	ULID               string
	RequesterID        string
	Quantity           int
	Purpose            string
	Notes              sql.NullString
	ExpectedReturnDate time.Time
	ExpectedReturnTime sql.NullString
	Status             Status
	ApproverID         sql.NullString
	DecisionReason     sql.NullString
	DecidedAt          sql.NullTime
	TechnicianID       sql.NullString
	PickupConfirmed    bool
	PickupConfirmedAt  sql.NullTime
	PickupConfirmedBy  sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time

	EquipmentIDs []uint64
}
