package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"equipahub-backend/internal/events"
	"equipahub-backend/internal/platform/logger/sl"
)

// Directory resolves recipients that are not named on the event itself.
type Directory interface {
	Coordinators(ctx context.Context) ([]string, error)
}

// Mapper turns lifecycle events into notifications, one per recipient per event.
// It is an events.Emitter and is usually combined with the Kafka producer via events.Multi.
type Mapper struct {
	svc *Service
	dir Directory
	log *slog.Logger
}

func NewMapper(svc *Service, dir Directory, log *slog.Logger) *Mapper {
	if log == nil {
		log = svc.log
	}
	return &Mapper{svc: svc, dir: dir, log: log}
}

func (m *Mapper) Emit(ctx context.Context, e events.Envelope) error {
	inputs, err := m.inputs(ctx, e)
	if err != nil {
		return err
	}
	var errs []error
	for _, in := range inputs {
		if in.RecipientID == "" {
			continue
		}
		if _, err := m.svc.Notify(ctx, in); err != nil {
			m.log.Warn("notify failed", slog.String("event", string(e.EventType)), slog.String("recipient", in.RecipientID), sl.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mapper) inputs(ctx context.Context, e events.Envelope) ([]Input, error) {
	switch e.EventType {
	case events.LoanCreated, events.LoanPickupConfirmed, events.LoanReturned, events.LoanCancelled:
		var p events.LoanPayload
		if err := e.Decode(&p); err != nil {
			return nil, fmt.Errorf("notifications.Mapper: %w", err)
		}
		return []Input{loanInput(e.EventType, p)}, nil

	case events.ReservationCreated, events.ReservationConfirmed, events.ReservationCancelled,
		events.ReservationConverted, events.ReservationExpired:
		var p events.ReservationPayload
		if err := e.Decode(&p); err != nil {
			return nil, fmt.Errorf("notifications.Mapper: %w", err)
		}
		return []Input{reservationInput(e.EventType, p)}, nil

	case events.RequestCreated, events.RequestApproved, events.RequestRejected, events.RequestPickupConfirmed:
		var p events.RequestPayload
		if err := e.Decode(&p); err != nil {
			return nil, fmt.Errorf("notifications.Mapper: %w", err)
		}
		return m.requestInputs(ctx, e.EventType, p)
	}
	return nil, nil
}

func loanInput(t events.Type, p events.LoanPayload) Input {
	in := Input{RecipientID: p.BorrowerID, SubjectID: p.LoanID}
	head := fmt.Sprintf("Loan #%d\nEquipment: %s\nReturn by: %s", p.LoanID, p.SerialNumber, p.ExpectedReturnDate)
	switch t {
	case events.LoanCreated:
		in.Category, in.Topic = Success, TopicLoanCreated
		in.Title = "Loan registered"
		in.Message = head + "\n\nRemember to return the equipment on time."
	case events.LoanPickupConfirmed:
		in.Category, in.Topic = Info, TopicLoanPickupConfirmed
		in.Title = "Pickup confirmed"
		in.Message = head + "\n\nA technician confirmed that you picked up the equipment."
	case events.LoanReturned:
		in.Category, in.Topic = Success, TopicLoanReturned
		in.Title = "Equipment returned"
		in.Message = fmt.Sprintf("Loan #%d\nEquipment: %s\n\nThank you for returning the equipment.", p.LoanID, p.SerialNumber)
	case events.LoanCancelled:
		in.Category, in.Topic = Warning, TopicLoanCancelled
		in.Title = "Loan cancelled"
		in.Message = fmt.Sprintf("Loan #%d\nEquipment: %s\n\nThe loan was cancelled.", p.LoanID, p.SerialNumber)
	}
	return in
}

func reservationInput(t events.Type, p events.ReservationPayload) Input {
	in := Input{RecipientID: p.RequesterID, SubjectID: p.ReservationID}
	head := fmt.Sprintf("Reservation #%d\nEquipment: %s\nPickup date: %s", p.ReservationID, p.SerialNumber, p.PickupDate)
	switch t {
	case events.ReservationCreated:
		in.Category, in.Topic = Info, TopicReservationCreated
		in.Title = "Reservation created"
		in.Message = head
	case events.ReservationConfirmed:
		in.Category, in.Topic = Success, TopicReservationConfirmed
		in.Title = "Reservation confirmed"
		in.Message = head
	case events.ReservationCancelled:
		in.Category, in.Topic = Warning, TopicReservationCancelled
		in.Title = "Reservation cancelled"
		in.Message = head
	case events.ReservationConverted:
		in.Category, in.Topic = Success, TopicReservationConverted
		in.Title = "Reservation picked up"
		in.Message = fmt.Sprintf("%s\n\nLoan #%d was created from this reservation.", head, p.LoanID)
	case events.ReservationExpired:
		in.Category, in.Topic = Warning, TopicReservationExpired
		in.Title = "Reservation expired"
		in.Message = head + "\n\nThe equipment was not picked up in time."
		in.ActionRequired = true
	}
	return in
}

func (m *Mapper) requestInputs(ctx context.Context, t events.Type, p events.RequestPayload) ([]Input, error) {
	switch t {
	case events.RequestCreated:
		if m.dir == nil {
			return nil, nil
		}
		ids, err := m.dir.Coordinators(ctx)
		if err != nil {
			return nil, fmt.Errorf("notifications.Mapper: coordinators: %w", err)
		}
		out := make([]Input, 0, len(ids))
		for _, id := range ids {
			out = append(out, Input{
				RecipientID:    id,
				Category:       Info,
				Topic:          TopicRequestCreated,
				SubjectID:      p.RequestID,
				Title:          "New loan request",
				Message:        fmt.Sprintf("%s requested %d units. Awaiting approval.", p.RequesterID, p.Quantity),
				ActionRequired: true,
			})
		}
		return out, nil

	case events.RequestApproved:
		reason := p.Reason
		if reason == "" {
			reason = "Approved"
		}
		out := []Input{{
			RecipientID: p.RequesterID,
			Category:    Success,
			Topic:       TopicRequestApproved,
			SubjectID:   p.RequestID,
			Title:       "Loan request approved",
			Message:     fmt.Sprintf("Your request for %d units was approved. Reason: %s", p.Quantity, reason),
		}}
		if p.TechnicianID != "" {
			out = append(out, Input{
				RecipientID:    p.TechnicianID,
				Category:       Info,
				Topic:          TopicRequestApproved,
				SubjectID:      p.RequestID,
				Title:          "Loan request approved",
				Message:        fmt.Sprintf("The request from %s was approved. Prepare the equipment for pickup.", p.RequesterID),
				ActionRequired: true,
			})
		}
		return out, nil

	case events.RequestRejected:
		return []Input{{
			RecipientID: p.RequesterID,
			Category:    Warning,
			Topic:       TopicRequestRejected,
			SubjectID:   p.RequestID,
			Title:       "Loan request rejected",
			Message:     fmt.Sprintf("Your request for %d units was rejected. Reason: %s", p.Quantity, p.Reason),
		}}, nil

	case events.RequestPickupConfirmed:
		msg := fmt.Sprintf("Pickup confirmed: %d loan(s) created.", p.LoansCreated)
		if p.Skipped > 0 {
			msg += fmt.Sprintf(" %d unit(s) could not be handed over.", p.Skipped)
		}
		return []Input{{
			RecipientID: p.RequesterID,
			Category:    Success,
			Topic:       TopicRequestPickupConfirmed,
			SubjectID:   p.RequestID,
			Title:       "Pickup confirmed",
			Message:     msg,
		}}, nil
	}
	return nil, nil
}
