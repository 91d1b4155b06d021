package loanrequests

import (
	"time"

	"equipahub-backend/internal/loans"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
)

type CreateRequest struct {
	RequesterID        *string  `json:"requester_id,omitempty"`
	Quantity           int      `json:"quantity" binding:"required"`
	Purpose            string   `json:"purpose" binding:"required"`
	Notes              *string  `json:"notes,omitempty"`
	ExpectedReturnDate string   `json:"expected_return_date" binding:"required"`
	ExpectedReturnTime *string  `json:"expected_return_time,omitempty"`
	TechnicianID       *string  `json:"technician_id,omitempty"`
	EquipmentIDs       []uint64 `json:"equipment_ids,omitempty"`
}

type SetEquipmentRequest struct {
	EquipmentIDs []uint64 `json:"equipment_ids"`
	TechnicianID *string  `json:"technician_id,omitempty"`
}

type DecisionRequest struct {
	Reason string `json:"reason"`
}

type Filter struct {
	Status      *Status
	RequesterID *string
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

type LoanRequestResponse struct {
	ID                 uint64     `json:"id"`
	ULID               string     `json:"ulid"`
	RequesterID        string     `json:"requester_id"`
	Quantity           int        `json:"quantity"`
	Purpose            string     `json:"purpose"`
	Notes              *string    `json:"notes,omitempty"`
	ExpectedReturnDate string     `json:"expected_return_date"`
	ExpectedReturnTime *string    `json:"expected_return_time,omitempty"`
	Status             Status     `json:"status"`
	ApproverID         *string    `json:"approver_id,omitempty"`
	DecisionReason     *string    `json:"decision_reason,omitempty"`
	DecidedAt          *time.Time `json:"decided_at,omitempty"`
	TechnicianID       *string    `json:"technician_id,omitempty"`
	PickupConfirmed    bool       `json:"pickup_confirmed"`
	PickupConfirmedAt  *time.Time `json:"pickup_confirmed_at,omitempty"`
	PickupConfirmedBy  *string    `json:"pickup_confirmed_by,omitempty"`
	EquipmentIDs       []uint64   `json:"equipment_ids"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ListResult struct {
	Items      []LoanRequestResponse `json:"items"`
	Total      int64                 `json:"total"`
	NextOffset int                   `json:"next_offset"`
}

// Skipped describes a unit the fan-out could not book.
type Skipped struct {
	EquipmentID  uint64 `json:"equipment_id"`
	SerialNumber string `json:"serial_number,omitempty"`
	Reason       string `json:"reason"`
}

type PickupResult struct {
	Request      LoanRequestResponse  `json:"loan_request"`
	CreatedLoans []loans.LoanResponse `json:"created_loans"`
	Skipped      []Skipped            `json:"skipped"`
}

func toResponse(r *LoanRequest) LoanRequestResponse {
	eq := r.EquipmentIDs
	if eq == nil {
		eq = []uint64{}
	}
	return LoanRequestResponse{
		ID:                 r.ID,
		ULID:               r.ULID,
		RequesterID:        r.RequesterID,
		Quantity:           r.Quantity,
		Purpose:            r.Purpose,
		Notes:              db.StringPtr(r.Notes),
		ExpectedReturnDate: clock.FormatDate(r.ExpectedReturnDate),
		ExpectedReturnTime: db.StringPtr(r.ExpectedReturnTime),
		Status:             r.Status,
		ApproverID:         db.StringPtr(r.ApproverID),
		DecisionReason:     db.StringPtr(r.DecisionReason),
		DecidedAt:          db.TimePtr(r.DecidedAt),
		TechnicianID:       db.StringPtr(r.TechnicianID),
		PickupConfirmed:    r.PickupConfirmed,
		PickupConfirmedAt:  db.TimePtr(r.PickupConfirmedAt),
		PickupConfirmedBy:  db.StringPtr(r.PickupConfirmedBy),
		EquipmentIDs:       eq,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
