// Package events defines the lifecycle events emitted after a booking transition commits.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	LoanCreated         Type = "loan.created"
	LoanPickupConfirmed Type = "loan.pickup_confirmed"
	LoanReturned        Type = "loan.returned"
	LoanCancelled       Type = "loan.cancelled"

	ReservationCreated   Type = "reservation.created"
	ReservationConfirmed Type = "reservation.confirmed"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationConverted Type = "reservation.converted"
	ReservationExpired   Type = "reservation.expired"

	RequestCreated         Type = "request.created"
	RequestApproved        Type = "request.approved"
	RequestRejected        Type = "request.rejected"
	RequestPickupConfirmed Type = "request.pickup_confirmed"
)

const (
	Version  = 1
	Producer = "equipahub-backend"
)

type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  Type            `json:"event_type"`
	Version    int             `json:"event_version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	ActorID    string          `json:"actor_id,omitempty"`
	SubjectID  uint64          `json:"subject_id"`
	Payload    json.RawMessage `json:"payload"`
}

// ---- payloads ----

type LoanPayload struct {
	LoanID             uint64 `json:"loan_id"`
	LoanULID           string `json:"loan_ulid"`
	EquipmentID        uint64 `json:"equipment_id"`
	SerialNumber       string `json:"serial_number"`
	BorrowerID         string `json:"borrower_id"`
	Status             string `json:"status"`
	ExpectedReturnDate string `json:"expected_return_date"`
	TechnicianID       string `json:"technician_id,omitempty"`
}

type ReservationPayload struct {
	ReservationID uint64 `json:"reservation_id"`
	EquipmentID   uint64 `json:"equipment_id"`
	SerialNumber  string `json:"serial_number"`
	RequesterID   string `json:"requester_id"`
	Status        string `json:"status"`
	PickupDate    string `json:"pickup_date"`
	LoanID        uint64 `json:"loan_id,omitempty"`
}

type RequestPayload struct {
	RequestID    uint64 `json:"request_id"`
	RequesterID  string `json:"requester_id"`
	ApproverID   string `json:"approver_id,omitempty"`
	TechnicianID string `json:"technician_id,omitempty"`
	Quantity     int    `json:"quantity"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	LoansCreated int    `json:"loans_created,omitempty"`
	Skipped      int    `json:"skipped,omitempty"`
}

// New wraps payload in a versioned envelope.
func New(t Type, at time.Time, actorID string, subjectID uint64, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  t,
		Version:    Version,
		OccurredAt: at.UTC(),
		Producer:   Producer,
		ActorID:    actorID,
		SubjectID:  subjectID,
		Payload:    raw,
	}, nil
}

func (e Envelope) Decode(v any) error { return json.Unmarshal(e.Payload, v) }
