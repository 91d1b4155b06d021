package loans

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/events"
	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/internal/platform/ids"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/logger/sl"
	"equipahub-backend/internal/platform/metrics"
)

// -------------- Service --------------

type Service struct {
	db      *sql.DB
	store   *Store
	reg     *equipment.Register
	clock   clock.Clock
	id      ids.IDGen
	emit    events.Emitter
	log     *slog.Logger
	metrics *metrics.Metrics
	loc     *time.Location
}

type Option func(*Service)

func WithClock(c clock.Clock) Option         { return func(s *Service) { s.clock = c } }
func WithIDGen(g ids.IDGen) Option           { return func(s *Service) { s.id = g } }
func WithEmitter(e events.Emitter) Option    { return func(s *Service) { s.emit = e } }
func WithLogger(l *slog.Logger) Option       { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option  { return func(s *Service) { s.metrics = m } }
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(conn *sql.DB, reg *equipment.Register, opts ...Option) *Service {
	s := &Service{
		db:    conn,
		store: NewStore(),
		reg:   reg,
		clock: clock.Real(),
		id:    ids.ULID(),
		emit:  events.Nop(),
		log:   logger.Discard(),
		loc:   time.UTC,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Location() *time.Location { return s.loc }
func (s *Service) Clock() clock.Clock       { return s.clock }

// DueAt is the expected-return instant of l.
func (s *Service) DueAt(l *Loan) time.Time { return ExpectedReturnAt(l, s.loc) }

// Create records a loan in pending_pickup. The unit must be borrowable but is not moved:
// it only becomes loaned when a technician confirms the pickup.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateLoanRequest) (LoanResponse, error) {
	const op = "loans.Service.Create"
	log := s.log.With(slog.String("op", op), slog.Uint64("equipment_id", in.EquipmentID))

	now := s.clock.Now()
	today := clock.DateOf(now, s.loc)

	if in.EquipmentID == 0 {
		return LoanResponse{}, apperr.Invalid("equipment_id required")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return LoanResponse{}, apperr.Invalid("purpose required")
	}
	borrower := actor.ID
	if in.BorrowerID != nil && strings.TrimSpace(*in.BorrowerID) != "" {
		borrower = strings.TrimSpace(*in.BorrowerID)
	}
	if borrower == "" {
		return LoanResponse{}, apperr.Invalid("borrower_id required")
	}

	start := today
	if in.StartDate != nil && *in.StartDate != "" {
		d, err := clock.ParseDate(*in.StartDate)
		if err != nil {
			return LoanResponse{}, apperr.Invalid("start_date must be YYYY-MM-DD")
		}
		start = d
	}
	due, err := clock.ParseDate(in.ExpectedReturnDate)
	if err != nil {
		return LoanResponse{}, apperr.Invalid("expected_return_date must be YYYY-MM-DD")
	}
	if due.Before(start) {
		return LoanResponse{}, apperr.InvalidReturnDate("expected return date %s is before start date %s",
			clock.FormatDate(due), clock.FormatDate(start))
	}
	var dueTime sql.NullString
	if in.ExpectedReturnTime != nil && *in.ExpectedReturnTime != "" {
		t, err := NormalizeClock(*in.ExpectedReturnTime)
		if err != nil {
			return LoanResponse{}, apperr.Invalid("expected_return_time must be HH:MM or HH:MM:SS")
		}
		dueTime = sql.NullString{String: t, Valid: true}
	}

	l := &Loan{
		ULID:               s.id.NewULID(now),
		EquipmentID:        in.EquipmentID,
		BorrowerID:         borrower,
		CreatedBy:          actor.ID,
		Status:             PendingPickup,
		StartDate:          start,
		ExpectedReturnDate: due,
		ExpectedReturnTime: dueTime,
		Purpose:            strings.TrimSpace(in.Purpose),
		Notes:              db.NullString(in.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var unit *equipment.Equipment
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := s.reg.TryReserve(ctx, tx, in.EquipmentID, equipment.Borrowable...); err != nil {
			return err
		}
		u, err := s.reg.Get(ctx, tx, in.EquipmentID)
		if err != nil {
			return err
		}
		unit = u
		return s.store.Insert(ctx, tx, l)
	})
	s.metrics.Observe("loan", "create", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanResponse{}, err
	}

	s.publish(ctx, events.LoanCreated, actor.ID, l, unit.SerialNumber)
	return ToResponse(l, now, s.loc), nil
}

// ConfirmPickup is the technician hand-over: the loan becomes active and the unit loaned,
// atomically. A second call fails with AlreadyConfirmed and leaves the unit alone.
func (s *Service) ConfirmPickup(ctx context.Context, id uint64, technician auth.Actor) (LoanResponse, error) {
	const op = "loans.Service.ConfirmPickup"
	log := s.log.With(slog.String("op", op), slog.Uint64("loan_id", id))

	now := s.clock.Now()
	var (
		l    *Loan
		unit *equipment.Equipment
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cur.Status.Open() {
			return apperr.InvalidState("loan %d is %s and cannot be picked up", id, cur.Status)
		}
		if cur.PickupConfirmed {
			return apperr.AlreadyConfirmed("pickup for loan %d was already confirmed", id)
		}

		next := *cur
		next.Status = Active
		next = Recompute(next, now, s.loc)

		ok, err := s.store.ConfirmPickup(ctx, tx, id, next.Status, technician.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.AlreadyConfirmed("pickup for loan %d was already confirmed", id)
		}
		if err := s.reg.Transition(ctx, tx, cur.EquipmentID, equipment.Loaned, equipment.Borrowable...); err != nil {
			return err
		}
		if unit, err = s.reg.Get(ctx, tx, cur.EquipmentID); err != nil {
			return err
		}
		l, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("loan", "confirm_pickup", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanResponse{}, err
	}

	s.publish(ctx, events.LoanPickupConfirmed, technician.ID, l, unit.SerialNumber)
	return ToResponse(l, now, s.loc), nil
}

// Return completes an active or overdue loan and hands the unit back to the register.
func (s *Service) Return(ctx context.Context, id uint64, actor auth.Actor, in ReturnRequest) (LoanResponse, error) {
	const op = "loans.Service.Return"
	log := s.log.With(slog.String("op", op), slog.Uint64("loan_id", id))

	now := s.clock.Now()
	returnDate := clock.DateOf(now, s.loc)
	if in.ReturnDate != nil && *in.ReturnDate != "" {
		d, err := clock.ParseDate(*in.ReturnDate)
		if err != nil {
			return LoanResponse{}, apperr.Invalid("return_date must be YYYY-MM-DD")
		}
		returnDate = d
	}

	var (
		l    *Loan
		unit *equipment.Equipment
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		r := Recompute(*cur, now, s.loc)
		if !r.Status.Running() {
			return apperr.InvalidState("loan %d is %s and cannot be returned", id, r.Status)
		}
		if returnDate.Before(r.StartDate) {
			return apperr.InvalidReturnDate("return date %s is before start date %s",
				clock.FormatDate(returnDate), clock.FormatDate(r.StartDate))
		}
		ok, err := s.store.Complete(ctx, tx, id, returnDate, db.NullString(in.Notes), now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("loan %d changed state concurrently", id)
		}
		if _, err := s.reg.Release(ctx, tx, cur.EquipmentID, equipment.Loaned); err != nil {
			return err
		}
		if unit, err = s.reg.Get(ctx, tx, cur.EquipmentID); err != nil {
			return err
		}
		l, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("loan", "return", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanResponse{}, err
	}

	s.publish(ctx, events.LoanReturned, actor.ID, l, unit.SerialNumber)
	return ToResponse(l, now, s.loc), nil
}

// Cancel is administrative. A running loan frees its unit; a loan still waiting for
// pickup never held the unit, so only the loan row changes.
func (s *Service) Cancel(ctx context.Context, id uint64, actor auth.Actor) (LoanResponse, error) {
	const op = "loans.Service.Cancel"
	log := s.log.With(slog.String("op", op), slog.Uint64("loan_id", id))

	now := s.clock.Now()
	var (
		l    *Loan
		unit *equipment.Equipment
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		r := Recompute(*cur, now, s.loc)
		switch {
		case r.Status.Running():
			ok, err := s.store.Cancel(ctx, tx, id, []Status{Active, Overdue}, now)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.InvalidState("loan %d changed state concurrently", id)
			}
			if _, err := s.reg.Release(ctx, tx, cur.EquipmentID, equipment.Loaned); err != nil {
				return err
			}
		case r.Status == PendingPickup:
			ok, err := s.store.Cancel(ctx, tx, id, []Status{PendingPickup}, now)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.InvalidState("loan %d changed state concurrently", id)
			}
		default:
			return apperr.InvalidState("loan %d is %s and cannot be cancelled", id, r.Status)
		}
		if unit, err = s.reg.Get(ctx, tx, cur.EquipmentID); err != nil {
			return err
		}
		l, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("loan", "cancel", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanResponse{}, err
	}

	s.publish(ctx, events.LoanCancelled, actor.ID, l, unit.SerialNumber)
	return ToResponse(l, now, s.loc), nil
}

// ---------- reads ----------

func (s *Service) Get(ctx context.Context, id uint64) (LoanResponse, error) {
	l, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		return LoanResponse{}, err
	}
	return ToResponse(l, s.clock.Now(), s.loc), nil
}

// GetByKey accepts either the numeric id or the ULID.
func (s *Service) GetByKey(ctx context.Context, key string) (LoanResponse, error) {
	if ids.Valid(key) {
		l, err := s.store.GetByULID(ctx, s.db, key)
		if err != nil {
			return LoanResponse{}, err
		}
		return ToResponse(l, s.clock.Now(), s.loc), nil
	}
	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return LoanResponse{}, apperr.Invalid("loan key must be an id or ULID")
	}
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p Page) (ListResult, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	rows, total, err := s.store.List(ctx, s.db, f, p)
	if err != nil {
		return ListResult{}, err
	}
	now := s.clock.Now()
	items := make([]LoanResponse, 0, len(rows))
	for _, l := range rows {
		items = append(items, ToResponse(l, now, s.loc))
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	}
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}

// Running returns every loan whose stored status is active or overdue.
func (s *Service) Running(ctx context.Context) ([]*Loan, error) {
	return s.store.ListByStatus(ctx, s.db, Active, Overdue)
}

// MarkOverdue persists the overdue status for a loan past its due instant.
// It reports whether a row changed; an already-overdue loan is a no-op.
func (s *Service) MarkOverdue(ctx context.Context, id uint64) (bool, error) {
	now := s.clock.Now()
	var changed bool
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		l, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !IsOverdue(l, now, s.loc) || l.Status == Overdue {
			return nil
		}
		changed, err = s.store.MarkOverdue(ctx, tx, id, now)
		return err
	})
	return changed, err
}

// ---------- used by reservations and bulk requests ----------

// HandOver is the input of CreateConfirmedTx.
type HandOver struct {
	EquipmentID        uint64
	BorrowerID         string
	TechnicianID       string
	StartDate          time.Time
	ExpectedReturnDate time.Time
	ExpectedReturnTime sql.NullString
	Purpose            string
	Notes              string
	ReservationID      *uint64
	RequestID          *uint64
}

// CreateConfirmedTx records a loan that is physically handed over right away: the unit
// moves to loaned and the loan starts active with pickup confirmed. It runs on the
// caller's transaction and returns the unit's serial number for event payloads.
func (s *Service) CreateConfirmedTx(ctx context.Context, tx db.DBTX, in HandOver) (*Loan, string, error) {
	if in.ExpectedReturnDate.Before(in.StartDate) {
		return nil, "", apperr.InvalidReturnDate("expected return date %s is before start date %s",
			clock.FormatDate(in.ExpectedReturnDate), clock.FormatDate(in.StartDate))
	}
	now := s.clock.Now()

	if err := s.reg.Transition(ctx, tx, in.EquipmentID, equipment.Loaned, equipment.Borrowable...); err != nil {
		return nil, "", err
	}
	unit, err := s.reg.Get(ctx, tx, in.EquipmentID)
	if err != nil {
		return nil, "", err
	}

	l := &Loan{
		ULID:               s.id.NewULID(now),
		EquipmentID:        in.EquipmentID,
		BorrowerID:         in.BorrowerID,
		CreatedBy:          in.TechnicianID,
		Status:             Active,
		StartDate:          in.StartDate,
		ExpectedReturnDate: in.ExpectedReturnDate,
		ExpectedReturnTime: in.ExpectedReturnTime,
		PickupConfirmed:    true,
		PickupTechnicianID: sql.NullString{String: in.TechnicianID, Valid: in.TechnicianID != ""},
		PickupConfirmedAt:  sql.NullTime{Time: now, Valid: true},
		Purpose:            in.Purpose,
		Notes:              sql.NullString{String: in.Notes, Valid: in.Notes != ""},
		ReservationID:      db.NullUint(in.ReservationID),
		RequestID:          db.NullUint(in.RequestID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	l.Status = Recompute(*l, now, s.loc).Status
	if err := s.store.Insert(ctx, tx, l); err != nil {
		return nil, "", err
	}
	return l, unit.SerialNumber, nil
}

// Payload renders l for a lifecycle event.
func Payload(l *Loan, serial string) events.LoanPayload {
	p := events.LoanPayload{
		LoanID:             l.ID,
		LoanULID:           l.ULID,
		EquipmentID:        l.EquipmentID,
		SerialNumber:       serial,
		BorrowerID:         l.BorrowerID,
		Status:             string(l.Status),
		ExpectedReturnDate: clock.FormatDate(l.ExpectedReturnDate),
	}
	if l.PickupTechnicianID.Valid {
		p.TechnicianID = l.PickupTechnicianID.String
	}
	return p
}

func (s *Service) publish(ctx context.Context, t events.Type, actorID string, l *Loan, serial string) {
	if err := events.Publish(ctx, s.emit, t, s.clock.Now(), actorID, l.ID, Payload(l, serial)); err != nil {
		s.log.Warn("emit failed", slog.String("event", string(t)), slog.Uint64("loan_id", l.ID), sl.Err(err))
	}
}

func (s *Service) logFailure(log *slog.Logger, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		log.Error("transition failed", sl.Err(err))
		return
	}
	log.Debug("transition rejected", sl.Err(err))
}
