package reservations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/events"
	"equipahub-backend/internal/loans"
	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/internal/platform/ids"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/logger/sl"
	"equipahub-backend/internal/platform/metrics"
)

const DefaultGraceDays = 1

type Service struct {
	db      *sql.DB
	store   *Store
	reg     *equipment.Register
	loans   *loans.Service
	clock   clock.Clock
	id      ids.IDGen
	emit    events.Emitter
	log     *slog.Logger
	metrics *metrics.Metrics
	loc     *time.Location
	grace   int
}

type Option func(*Service)

func WithClock(c clock.Clock) Option         { return func(s *Service) { s.clock = c } }
func WithIDGen(g ids.IDGen) Option           { return func(s *Service) { s.id = g } }
func WithEmitter(e events.Emitter) Option    { return func(s *Service) { s.emit = e } }
func WithLogger(l *slog.Logger) Option       { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option  { return func(s *Service) { s.metrics = m } }
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }
func WithGraceDays(n int) Option             { return func(s *Service) { s.grace = n } }

func NewService(conn *sql.DB, reg *equipment.Register, ls *loans.Service, opts ...Option) *Service {
	s := &Service{
		db:    conn,
		store: NewStore(),
		reg:   reg,
		loans: ls,
		clock: clock.Real(),
		id:    ids.ULID(),
		emit:  events.Nop(),
		log:   logger.Discard(),
		loc:   time.UTC,
		grace: DefaultGraceDays,
	}
	for _, o := range opts {
		o(s)
	}
	if s.grace < 0 {
		s.grace = 0
	}
	return s
}

// Create places a hold on a borrowable unit for a future pickup date and marks the unit reserved.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateReservationRequest) (ReservationResponse, error) {
	const op = "reservations.Service.Create"
	log := s.log.With(slog.String("op", op), slog.Uint64("equipment_id", in.EquipmentID))

	now := s.clock.Now()
	if in.EquipmentID == 0 {
		return ReservationResponse{}, apperr.Invalid("equipment_id required")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return ReservationResponse{}, apperr.Invalid("purpose required")
	}
	requester := actor.ID
	if in.RequesterID != nil && strings.TrimSpace(*in.RequesterID) != "" {
		requester = strings.TrimSpace(*in.RequesterID)
	}

	reserved := clock.DateOf(now, s.loc)
	if in.ReservationDate != nil && *in.ReservationDate != "" {
		d, err := clock.ParseDate(*in.ReservationDate)
		if err != nil {
			return ReservationResponse{}, apperr.Invalid("reservation_date must be YYYY-MM-DD")
		}
		reserved = d
	}
	pickup, err := clock.ParseDate(in.ExpectedPickupDate)
	if err != nil {
		return ReservationResponse{}, apperr.Invalid("expected_pickup_date must be YYYY-MM-DD")
	}
	// 受取日は予約日より後
	if !pickup.After(reserved) {
		return ReservationResponse{}, apperr.InvalidPickupDate("pickup date %s must be after reservation date %s",
			clock.FormatDate(pickup), clock.FormatDate(reserved))
	}

	r := &Reservation{
		ULID:               s.id.NewULID(now),
		EquipmentID:        in.EquipmentID,
		RequesterID:        requester,
		CreatedBy:          actor.ID,
		Status:             Active,
		ReservationDate:    reserved,
		ExpectedPickupDate: pickup,
		Purpose:            strings.TrimSpace(in.Purpose),
		Notes:              db.NullString(in.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var serial string
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		unit, err := s.reg.Get(ctx, tx, in.EquipmentID)
		if err != nil {
			return err
		}
		if !unit.CanBeBorrowed() {
			return apperr.Conflict("equipment %s is %s and cannot be reserved", unit.SerialNumber, unit.Availability)
		}
		taken, err := s.store.PickupTaken(ctx, tx, in.EquipmentID, pickup)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("equipment %s is already reserved for %s", unit.SerialNumber, clock.FormatDate(pickup))
		}
		if err := s.store.Insert(ctx, tx, r); err != nil {
			return err
		}
		serial = unit.SerialNumber
		return s.reg.Transition(ctx, tx, in.EquipmentID, equipment.Reserved, equipment.Borrowable...)
	})
	s.metrics.Observe("reservation", "create", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return ReservationResponse{}, err
	}

	s.publish(ctx, events.ReservationCreated, actor.ID, r, serial)
	return toResponse(r, now, s.grace, s.loc), nil
}

// Confirm moves an active reservation to confirmed. Confirmed reservations no longer expire.
func (s *Service) Confirm(ctx context.Context, id uint64, actor auth.Actor) (ReservationResponse, error) {
	const op = "reservations.Service.Confirm"
	log := s.log.With(slog.String("op", op), slog.Uint64("reservation_id", id))

	now := s.clock.Now()
	var (
		r      *Reservation
		serial string
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		v := Recompute(*cur, now, s.grace, s.loc)
		switch {
		case v.Status == Confirmed && !v.Converted():
			return apperr.AlreadyConfirmed("reservation %d is already confirmed", id)
		case v.Status != Active || v.Converted():
			return apperr.InvalidState("reservation %d is %s and cannot be confirmed", id, v.Status)
		}
		ok, err := s.store.Confirm(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("reservation %d changed state concurrently", id)
		}
		if serial, err = s.serial(ctx, tx, cur.EquipmentID); err != nil {
			return err
		}
		r, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("reservation", "confirm", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return ReservationResponse{}, err
	}

	s.publish(ctx, events.ReservationConfirmed, actor.ID, r, serial)
	return toResponse(r, now, s.grace, s.loc), nil
}

// Cancel ends an outstanding reservation and releases its hold on the unit.
// Cancelling a converted reservation is rejected; the loan owns the unit by then.
func (s *Service) Cancel(ctx context.Context, id uint64, actor auth.Actor) (ReservationResponse, error) {
	const op = "reservations.Service.Cancel"
	log := s.log.With(slog.String("op", op), slog.Uint64("reservation_id", id))

	now := s.clock.Now()
	var (
		r      *Reservation
		serial string
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		v := Recompute(*cur, now, s.grace, s.loc)
		if !v.Outstanding() {
			return apperr.InvalidState("reservation %d is %s and cannot be cancelled", id, describe(&v))
		}
		ok, err := s.store.Cancel(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("reservation %d changed state concurrently", id)
		}
		if err := s.release(ctx, tx, cur.EquipmentID); err != nil {
			return err
		}
		if serial, err = s.serial(ctx, tx, cur.EquipmentID); err != nil {
			return err
		}
		r, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("reservation", "cancel", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return ReservationResponse{}, err
	}

	s.publish(ctx, events.ReservationCancelled, actor.ID, r, serial)
	return toResponse(r, now, s.grace, s.loc), nil
}

// ConvertResult carries both sides of a conversion.
type ConvertResult struct {
	Reservation ReservationResponse `json:"reservation"`
	Loan        loans.LoanResponse  `json:"loan"`
}

// ConvertToLoan hands the reserved unit over at pickup: a confirmed, active loan is created and the
// reservation records it. Both writes share one transaction.
func (s *Service) ConvertToLoan(ctx context.Context, id uint64, technician auth.Actor, in ConvertRequest) (ConvertResult, error) {
	const op = "reservations.Service.ConvertToLoan"
	log := s.log.With(slog.String("op", op), slog.Uint64("reservation_id", id))

	now := s.clock.Now()
	start := clock.DateOf(now, s.loc)
	if in.StartDate != nil && *in.StartDate != "" {
		d, err := clock.ParseDate(*in.StartDate)
		if err != nil {
			return ConvertResult{}, apperr.Invalid("start_date must be YYYY-MM-DD")
		}
		start = d
	}
	due, err := clock.ParseDate(in.ExpectedReturnDate)
	if err != nil {
		return ConvertResult{}, apperr.Invalid("expected_return_date must be YYYY-MM-DD")
	}
	var dueTime sql.NullString
	if in.ExpectedReturnTime != nil && *in.ExpectedReturnTime != "" {
		t, err := loans.NormalizeClock(*in.ExpectedReturnTime)
		if err != nil {
			return ConvertResult{}, apperr.Invalid("expected_return_time must be HH:MM or HH:MM:SS")
		}
		dueTime = sql.NullString{String: t, Valid: true}
	}

	var (
		r      *Reservation
		l      *loans.Loan
		serial string
	)
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		v := Recompute(*cur, now, s.grace, s.loc)
		if !v.Outstanding() {
			return apperr.InvalidState("reservation %d is %s and cannot be converted", id, describe(&v))
		}

		notes := fmt.Sprintf("Converted from reservation #%d.", cur.ID)
		if cur.Notes.Valid && strings.TrimSpace(cur.Notes.String) != "" {
			notes += " " + strings.TrimSpace(cur.Notes.String)
		}
		rid := cur.ID
		l, serial, err = s.loans.CreateConfirmedTx(ctx, tx, loans.HandOver{
			EquipmentID:        cur.EquipmentID,
			BorrowerID:         cur.RequesterID,
			TechnicianID:       technician.ID,
			StartDate:          start,
			ExpectedReturnDate: due,
			ExpectedReturnTime: dueTime,
			Purpose:            cur.Purpose,
			Notes:              notes,
			ReservationID:      &rid,
		})
		if err != nil {
			return err
		}
		ok, err := s.store.MarkConverted(ctx, tx, id, l.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("reservation %d changed state concurrently", id)
		}
		r, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("reservation", "convert", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return ConvertResult{}, err
	}

	s.publish(ctx, events.ReservationConverted, technician.ID, r, serial)
	if err := events.Publish(ctx, s.emit, events.LoanCreated, now, technician.ID, l.ID, loans.Payload(l, serial)); err != nil {
		log.Warn("emit failed", slog.String("event", string(events.LoanCreated)), sl.Err(err))
	}
	return ConvertResult{
		Reservation: toResponse(r, now, s.grace, s.loc),
		Loan:        loans.ToResponse(l, now, s.loc),
	}, nil
}

// ExpireDue persists expiry for every active reservation past its grace window and releases the
// units they held. Each reservation runs in its own transaction; one failure does not stop the rest.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	const op = "reservations.Service.ExpireDue"
	log := s.log.With(slog.String("op", op))

	now := s.clock.Now()
	rows, err := s.store.ListActive(ctx, s.db)
	if err != nil {
		return 0, err
	}

	var (
		expired int
		errs    []error
	)
	for _, cur := range rows {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if Recompute(*cur, now, s.grace, s.loc).Status != Expired {
			continue
		}
		var (
			r      *Reservation
			serial string
			done   bool
		)
		err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
			ok, err := s.store.Expire(ctx, tx, cur.ID, now)
			if err != nil || !ok {
				return err
			}
			done = true
			if err := s.release(ctx, tx, cur.EquipmentID); err != nil {
				return err
			}
			if serial, err = s.serial(ctx, tx, cur.EquipmentID); err != nil {
				return err
			}
			r, err = s.store.Get(ctx, tx, cur.ID)
			return err
		})
		s.metrics.Observe("reservation", "expire", string(apperr.CodeOf(err)))
		if err != nil {
			log.Error("expire failed", slog.Uint64("reservation_id", cur.ID), sl.Err(err))
			errs = append(errs, err)
			continue
		}
		if !done {
			continue
		}
		expired++
		s.publish(ctx, events.ReservationExpired, "", r, serial)
	}
	if expired > 0 {
		log.Info("reservations expired", slog.Int("count", expired))
	}
	return expired, errors.Join(errs...)
}

// ---------- reads ----------

func (s *Service) Get(ctx context.Context, id uint64) (ReservationResponse, error) {
	r, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		return ReservationResponse{}, err
	}
	return toResponse(r, s.clock.Now(), s.grace, s.loc), nil
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
	items := make([]ReservationResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, toResponse(r, now, s.grace, s.loc))
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	}
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}

// ---------- helpers ----------

// release drops the reservation's hold. A unit that is no longer reserved (loaned, in
// maintenance) keeps its availability.
func (s *Service) release(ctx context.Context, tx db.DBTX, equipmentID uint64) error {
	_, err := s.reg.Release(ctx, tx, equipmentID, equipment.Reserved)
	if apperr.IsCode(err, apperr.CodeConflict) {
		return nil
	}
	return err
}

func (s *Service) serial(ctx context.Context, tx db.DBTX, equipmentID uint64) (string, error) {
	u, err := s.reg.Get(ctx, tx, equipmentID)
	if err != nil {
		return "", err
	}
	return u.SerialNumber, nil
}

func describe(r *Reservation) string {
	if r.Converted() {
		return "converted"
	}
	return string(r.Status)
}

func (s *Service) publish(ctx context.Context, t events.Type, actorID string, r *Reservation, serial string) {
	p := events.ReservationPayload{
		ReservationID: r.ID,
		EquipmentID:   r.EquipmentID,
		SerialNumber:  serial,
		RequesterID:   r.RequesterID,
		Status:        string(r.Status),
		PickupDate:    clock.FormatDate(r.ExpectedPickupDate),
	}
	if r.ConvertedLoanID.Valid {
		p.LoanID = uint64(r.ConvertedLoanID.Int64)
	}
	if err := events.Publish(ctx, s.emit, t, s.clock.Now(), actorID, r.ID, p); err != nil {
		s.log.Warn("emit failed", slog.String("event", string(t)), slog.Uint64("reservation_id", r.ID), sl.Err(err))
	}
}

func (s *Service) logFailure(log *slog.Logger, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		log.Error("transition failed", sl.Err(err))
		return
	}
	log.Debug("transition rejected", sl.Err(err))
}
