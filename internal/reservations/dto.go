package reservations

import (
	"time"

	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
)

type CreateReservationRequest struct {
	EquipmentID        uint64  `json:"equipment_id" binding:"required"`
	RequesterID        *string `json:"requester_id,omitempty"`
	ReservationDate    *string `json:"reservation_date,omitempty"` // default today
	ExpectedPickupDate string  `json:"expected_pickup_date" binding:"required"`
	Purpose            string  `json:"purpose" binding:"required"`
	Notes              *string `json:"notes,omitempty"`
}

type ConvertRequest struct {
	ExpectedReturnDate string  `json:"expected_return_date" binding:"required"`
	ExpectedReturnTime *string `json:"expected_return_time,omitempty"`
	StartDate          *string `json:"start_date,omitempty"` // default today
}

type Filter struct {
	Status      *Status
	RequesterID *string
	EquipmentID *uint64
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

type ReservationResponse struct {
	ID                 uint64     `json:"id"`
	ULID               string     `json:"ulid"`
	EquipmentID        uint64     `json:"equipment_id"`
	RequesterID        string     `json:"requester_id"`
	CreatedBy          string     `json:"created_by"`
	Status             Status     `json:"status"`
	ReservationDate    string     `json:"reservation_date"`
	ExpectedPickupDate string     `json:"expected_pickup_date"`
	ExpiresAt          time.Time  `json:"expires_at"`
	Purpose            string     `json:"purpose"`
	Notes              *string    `json:"notes,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ConvertedLoanID    *uint64    `json:"converted_loan_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ListResult struct {
	Items      []ReservationResponse `json:"items"`
	Total      int64                 `json:"total"`
	NextOffset int                   `json:"next_offset"`
}

func toResponse(r *Reservation, now time.Time, graceDays int, loc *time.Location) ReservationResponse {
	v := Recompute(*r, now, graceDays, loc)
	return ReservationResponse{
		ID:                 v.ID,
		ULID:               v.ULID,
		EquipmentID:        v.EquipmentID,
		RequesterID:        v.RequesterID,
		CreatedBy:          v.CreatedBy,
		Status:             v.Status,
		ReservationDate:    clock.FormatDate(v.ReservationDate),
		ExpectedPickupDate: clock.FormatDate(v.ExpectedPickupDate),
		ExpiresAt:          ExpiresAt(&v, graceDays, loc).UTC(),
		Purpose:            v.Purpose,
		Notes:              db.StringPtr(v.Notes),
		ConfirmedAt:        db.TimePtr(v.ConfirmedAt),
		ConvertedLoanID:    db.UintPtr(v.ConvertedLoanID),
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}
