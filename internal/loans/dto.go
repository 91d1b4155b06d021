package loans

import (
	"time"

	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
)

// ===== Requests =====

type CreateLoanRequest struct {
	EquipmentID        uint64  `json:"equipment_id" binding:"required"`
	BorrowerID         *string `json:"borrower_id,omitempty"` // 省略時は操作者本人
	StartDate          *string `json:"start_date,omitempty"`  // YYYY-MM-DD, default today
	ExpectedReturnDate string  `json:"expected_return_date" binding:"required"`
	ExpectedReturnTime *string `json:"expected_return_time,omitempty"` // HH:MM[:SS]
	Purpose            string  `json:"purpose" binding:"required"`
	Notes              *string `json:"notes,omitempty"`
}

type ReturnRequest struct {
	ReturnDate *string `json:"return_date,omitempty"` // default today
	Notes      *string `json:"notes,omitempty"`
}

type Filter struct {
	Status      *Status
	BorrowerID  *string
	EquipmentID *uint64
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

// ===== Responses =====

type LoanResponse struct {
	ID                 uint64     `json:"id"`
	ULID               string     `json:"ulid"`
	EquipmentID        uint64     `json:"equipment_id"`
	BorrowerID         string     `json:"borrower_id"`
	CreatedBy          string     `json:"created_by"`
	Status             Status     `json:"status"`
	StartDate          string     `json:"start_date"`
	ExpectedReturnDate string     `json:"expected_return_date"`
	ExpectedReturnTime *string    `json:"expected_return_time,omitempty"`
	DueAt              time.Time  `json:"due_at"`
	IsOverdue          bool       `json:"is_overdue"`
	ActualReturnDate   *string    `json:"actual_return_date,omitempty"`
	PickupConfirmed    bool       `json:"pickup_confirmed"`
	PickupTechnicianID *string    `json:"pickup_technician_id,omitempty"`
	PickupConfirmedAt  *time.Time `json:"pickup_confirmed_at,omitempty"`
	Purpose            string     `json:"purpose"`
	Notes              *string    `json:"notes,omitempty"`
	ReservationID      *uint64    `json:"reservation_id,omitempty"`
	RequestID          *uint64    `json:"request_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ListResult struct {
	Items      []LoanResponse `json:"items"`
	Total      int64          `json:"total"`
	NextOffset int            `json:"next_offset"`
}

// ToResponse renders l as seen at now, with the overdue flag derived.
func ToResponse(l *Loan, now time.Time, loc *time.Location) LoanResponse {
	r := Recompute(*l, now, loc)
	out := LoanResponse{
		ID:                 r.ID,
		ULID:               r.ULID,
		EquipmentID:        r.EquipmentID,
		BorrowerID:         r.BorrowerID,
		CreatedBy:          r.CreatedBy,
		Status:             r.Status,
		StartDate:          clock.FormatDate(r.StartDate),
		ExpectedReturnDate: clock.FormatDate(r.ExpectedReturnDate),
		ExpectedReturnTime: db.StringPtr(r.ExpectedReturnTime),
		DueAt:              ExpectedReturnAt(&r, loc).UTC(),
		IsOverdue:          r.Status == Overdue,
		PickupConfirmed:    r.PickupConfirmed,
		PickupTechnicianID: db.StringPtr(r.PickupTechnicianID),
		PickupConfirmedAt:  db.TimePtr(r.PickupConfirmedAt),
		Purpose:            r.Purpose,
		Notes:              db.StringPtr(r.Notes),
		ReservationID:      db.UintPtr(r.ReservationID),
		RequestID:          db.UintPtr(r.RequestID),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.ActualReturnDate.Valid {
		s := clock.FormatDate(r.ActualReturnDate.Time)
		out.ActualReturnDate = &s
	}
	return out
}
