package equipment

import (
	"time"

	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
)

// ===== Requests =====

type CreateEquipmentRequest struct {
	SerialNumber string  `json:"serial_number" binding:"required"`
	Brand        string  `json:"brand" binding:"required"`
	Model        string  `json:"model" binding:"required"`
	Type         string  `json:"type" binding:"required"`
	Location     *string `json:"location,omitempty"`
	Description  *string `json:"description,omitempty"`
	AcquiredOn   *string `json:"acquired_on,omitempty"` // YYYY-MM-DD
}

type ChangeAvailabilityRequest struct {
	Availability Availability `json:"availability" binding:"required"`
}

type Filter struct {
	Availability *Availability
	Type         *string
	Search       *string // serial / brand / model
}

type Page struct {
	Limit  int
	Offset int
	Order  string // asc | desc
}

// ===== Responses =====

type EquipmentResponse struct {
	ID           uint64       `json:"id"`
	SerialNumber string       `json:"serial_number"`
	Brand        string       `json:"brand"`
	Model        string       `json:"model"`
	Type         string       `json:"type"`
	Availability Availability `json:"availability"`
	CanBeBorrow  bool         `json:"can_be_borrowed"`
	Location     *string      `json:"location,omitempty"`
	Description  *string      `json:"description,omitempty"`
	AcquiredOn   *string      `json:"acquired_on,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type ListResult struct {
	Items      []EquipmentResponse `json:"items"`
	Total      int64               `json:"total"`
	NextOffset int                 `json:"next_offset"`
}

func toResponse(e *Equipment) EquipmentResponse {
	out := EquipmentResponse{
		ID:           e.ID,
		SerialNumber: e.SerialNumber,
		Brand:        e.Brand,
		Model:        e.Model,
		Type:         e.Type,
		Availability: e.Availability,
		CanBeBorrow:  e.CanBeBorrowed(),
		Location:     db.StringPtr(e.Location),
		Description:  db.StringPtr(e.Description),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.AcquiredOn.Valid {
		s := clock.FormatDate(e.AcquiredOn.Time)
		out.AcquiredOn = &s
	}
	return out
}
