package loanrequests

import (
	"context"
	"database/sql"
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

type Service struct {
	db        *sql.DB
	store     *Store
	reg       *equipment.Register
	loans     *loans.Service
	clock     clock.Clock
	id        ids.IDGen
	emit      events.Emitter
	log       *slog.Logger
	metrics   *metrics.Metrics
	loc       *time.Location
	threshold int
}

type Option func(*Service)

func WithClock(c clock.Clock) Option         { return func(s *Service) { s.clock = c } }
func WithIDGen(g ids.IDGen) Option           { return func(s *Service) { s.id = g } }
func WithEmitter(e events.Emitter) Option    { return func(s *Service) { s.emit = e } }
func WithLogger(l *slog.Logger) Option       { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option  { return func(s *Service) { s.metrics = m } }
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }
func WithThreshold(n int) Option             { return func(s *Service) { s.threshold = n } }

func NewService(conn *sql.DB, reg *equipment.Register, ls *loans.Service, opts ...Option) *Service {
	s := &Service{
		db:        conn,
		store:     NewStore(),
		reg:       reg,
		loans:     ls,
		clock:     clock.Real(),
		id:        ids.ULID(),
		emit:      events.Nop(),
		log:       logger.Discard(),
		loc:       time.UTC,
		threshold: DefaultThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Threshold() int { return s.threshold }

// Create records a pending bulk request. Quantities the direct loan path can serve are refused.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateRequest) (LoanRequestResponse, error) {
	const op = "loanrequests.Service.Create"
	log := s.log.With(slog.String("op", op), slog.Int("quantity", in.Quantity))

	if in.Quantity <= 0 {
		return LoanRequestResponse{}, apperr.Invalid("quantity must be positive")
	}
	if in.Quantity <= s.threshold {
		s.metrics.Observe("request", "create", string(apperr.CodeBelowBulkThreshold))
		return LoanRequestResponse{}, apperr.BelowBulkThreshold(
			"quantity %d does not exceed the bulk threshold of %d; create a direct loan instead", in.Quantity, s.threshold)
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return LoanRequestResponse{}, apperr.Invalid("purpose required")
	}
	due, err := clock.ParseDate(in.ExpectedReturnDate)
	if err != nil {
		return LoanRequestResponse{}, apperr.Invalid("expected_return_date must be YYYY-MM-DD")
	}
	now := s.clock.Now()
	if due.Before(clock.DateOf(now, s.loc)) {
		return LoanRequestResponse{}, apperr.InvalidReturnDate("expected return date %s is in the past", clock.FormatDate(due))
	}
	var dueTime sql.NullString
	if in.ExpectedReturnTime != nil && *in.ExpectedReturnTime != "" {
		t, err := loans.NormalizeClock(*in.ExpectedReturnTime)
		if err != nil {
			return LoanRequestResponse{}, apperr.Invalid("expected_return_time must be HH:MM or HH:MM:SS")
		}
		dueTime = sql.NullString{String: t, Valid: true}
	}
	requester := actor.ID
	if in.RequesterID != nil && strings.TrimSpace(*in.RequesterID) != "" {
		requester = strings.TrimSpace(*in.RequesterID)
	}

	r := &LoanRequest{
		ULID:               s.id.NewULID(now),
		RequesterID:        requester,
		Quantity:           in.Quantity,
		Purpose:            strings.TrimSpace(in.Purpose),
		Notes:              db.NullString(in.Notes),
		ExpectedReturnDate: due,
		ExpectedReturnTime: dueTime,
		Status:             Pending,
		TechnicianID:       db.NullString(in.TechnicianID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	units := dedupe(in.EquipmentIDs)

	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := s.checkUnits(ctx, tx, units); err != nil {
			return err
		}
		if err := s.store.Insert(ctx, tx, r); err != nil {
			return err
		}
		return s.store.ReplaceEquipment(ctx, tx, r.ID, units)
	})
	s.metrics.Observe("request", "create", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanRequestResponse{}, err
	}
	r.EquipmentIDs = units

	s.publish(ctx, events.RequestCreated, actor.ID, r, 0, 0)
	return toResponse(r), nil
}

// SetEquipment replaces the unit set (and optionally the responsible technician) until pickup is confirmed.
func (s *Service) SetEquipment(ctx context.Context, id uint64, in SetEquipmentRequest) (LoanRequestResponse, error) {
	const op = "loanrequests.Service.SetEquipment"
	log := s.log.With(slog.String("op", op), slog.Uint64("request_id", id))

	now := s.clock.Now()
	units := dedupe(in.EquipmentIDs)
	var r *LoanRequest
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status == Rejected || cur.PickupConfirmed {
			return apperr.InvalidState("loan request %d can no longer be edited", id)
		}
		if err := s.checkUnits(ctx, tx, units); err != nil {
			return err
		}
		if err := s.store.ReplaceEquipment(ctx, tx, id, units); err != nil {
			return err
		}
		if in.TechnicianID != nil && strings.TrimSpace(*in.TechnicianID) != "" {
			if err := s.store.SetTechnician(ctx, tx, id, strings.TrimSpace(*in.TechnicianID), now); err != nil {
				return err
			}
		} else if err := s.store.Touch(ctx, tx, id, now); err != nil {
			return err
		}
		r, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("request", "set_equipment", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanRequestResponse{}, err
	}
	return toResponse(r), nil
}

// Approve authorizes a pending request. An empty reason falls back to DefaultApprovalReason.
func (s *Service) Approve(ctx context.Context, id uint64, approver auth.Actor, reason string) (LoanRequestResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultApprovalReason
	}
	return s.decide(ctx, "approve", id, approver, Authorized, reason, events.RequestApproved)
}

// Reject closes a pending request; the reason is mandatory.
func (s *Service) Reject(ctx context.Context, id uint64, approver auth.Actor, reason string) (LoanRequestResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return LoanRequestResponse{}, apperr.Invalid("a reason is required to reject a request")
	}
	return s.decide(ctx, "reject", id, approver, Rejected, reason, events.RequestRejected)
}

func (s *Service) decide(ctx context.Context, verb string, id uint64, approver auth.Actor, to Status, reason string, t events.Type) (LoanRequestResponse, error) {
	op := "loanrequests.Service." + verb
	log := s.log.With(slog.String("op", op), slog.Uint64("request_id", id))

	now := s.clock.Now()
	var r *LoanRequest
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status != Pending {
			return apperr.InvalidState("loan request %d is %s and was already processed", id, cur.Status)
		}
		ok, err := s.store.Decide(ctx, tx, id, to, approver.ID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("loan request %d changed state concurrently", id)
		}
		r, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("request", verb, string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return LoanRequestResponse{}, err
	}

	s.publish(ctx, t, approver.ID, r, 0, 0)
	return toResponse(r), nil
}

// ConfirmPickup records the technician hand-over of an authorized request and fans out one loan per
// associated unit. Each unit is booked in its own transaction: a unit that cannot be booked lands in
// the skipped list and loans created for earlier units stay.
func (s *Service) ConfirmPickup(ctx context.Context, id uint64, technician auth.Actor) (PickupResult, error) {
	const op = "loanrequests.Service.ConfirmPickup"
	log := s.log.With(slog.String("op", op), slog.Uint64("request_id", id))

	now := s.clock.Now()
	var r *LoanRequest
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status != Authorized {
			return apperr.InvalidState("loan request %d is %s; it must be authorized before pickup", id, cur.Status)
		}
		if cur.PickupConfirmed {
			return apperr.AlreadyConfirmed("pickup for loan request %d was already confirmed", id)
		}
		if len(cur.EquipmentIDs) == 0 {
			return apperr.NoEquipmentSelected("loan request %d has no equipment selected", id)
		}
		ok, err := s.store.MarkPickup(ctx, tx, id, technician.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.AlreadyConfirmed("pickup for loan request %d was already confirmed", id)
		}
		r, err = s.store.Get(ctx, tx, id)
		return err
	})
	s.metrics.Observe("request", "confirm_pickup", string(apperr.CodeOf(err)))
	if err != nil {
		s.logFailure(log, err)
		return PickupResult{}, err
	}

	notes := fmt.Sprintf("Created from loan request #%d.", r.ID)
	if r.Notes.Valid && strings.TrimSpace(r.Notes.String) != "" {
		notes = strings.TrimSpace(r.Notes.String) + "\n\n" + notes
	}
	rid := r.ID
	start := clock.DateOf(now, s.loc)

	res := PickupResult{CreatedLoans: []loans.LoanResponse{}, Skipped: []Skipped{}}
	for _, unitID := range r.EquipmentIDs {
		var (
			l      *loans.Loan
			serial string
		)
		err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
			unit, err := s.reg.Get(ctx, tx, unitID)
			if err != nil {
				return err
			}
			serial = unit.SerialNumber
			if !unit.CanBeBorrowed() {
				return apperr.Conflict("equipment %s is %s", unit.SerialNumber, unit.Availability)
			}
			l, _, err = s.loans.CreateConfirmedTx(ctx, tx, loans.HandOver{
				EquipmentID:        unitID,
				BorrowerID:         r.RequesterID,
				TechnicianID:       technician.ID,
				StartDate:          start,
				ExpectedReturnDate: r.ExpectedReturnDate,
				ExpectedReturnTime: r.ExpectedReturnTime,
				Purpose:            r.Purpose,
				Notes:              notes,
				RequestID:          &rid,
			})
			return err
		})
		if err != nil {
			reason := SkipUnavailable
			if !apperr.IsCode(err, apperr.CodeConflict) {
				reason = err.Error()
			}
			log.Info("unit skipped", slog.Uint64("equipment_id", unitID), slog.String("reason", reason), sl.Err(err))
			res.Skipped = append(res.Skipped, Skipped{EquipmentID: unitID, SerialNumber: serial, Reason: reason})
			continue
		}
		res.CreatedLoans = append(res.CreatedLoans, loans.ToResponse(l, now, s.loc))
		if err := events.Publish(ctx, s.emit, events.LoanCreated, now, technician.ID, l.ID, loans.Payload(l, serial)); err != nil {
			log.Warn("emit failed", slog.String("event", string(events.LoanCreated)), sl.Err(err))
		}
	}
	s.metrics.Skipped(len(res.Skipped))

	res.Request = toResponse(r)
	s.publish(ctx, events.RequestPickupConfirmed, technician.ID, r, len(res.CreatedLoans), len(res.Skipped))
	log.Info("pickup confirmed", slog.Int("loans", len(res.CreatedLoans)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// ---------- reads ----------

func (s *Service) Get(ctx context.Context, id uint64) (LoanRequestResponse, error) {
	r, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		return LoanRequestResponse{}, err
	}
	return toResponse(r), nil
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
	items := make([]LoanRequestResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, toResponse(r))
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	}
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}

// ---------- helpers ----------

func (s *Service) checkUnits(ctx context.Context, tx db.DBTX, units []uint64) error {
	for _, id := range units {
		if _, err := s.reg.Get(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(in []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(in))
	out := make([]uint64, 0, len(in))
	for _, id := range in {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) publish(ctx context.Context, t events.Type, actorID string, r *LoanRequest, created, skipped int) {
	p := events.RequestPayload{
		RequestID:    r.ID,
		RequesterID:  r.RequesterID,
		Quantity:     r.Quantity,
		Status:       string(r.Status),
		LoansCreated: created,
		Skipped:      skipped,
	}
	if r.ApproverID.Valid {
		p.ApproverID = r.ApproverID.String
	}
	if r.TechnicianID.Valid {
		p.TechnicianID = r.TechnicianID.String
	}
	if r.PickupConfirmedBy.Valid {
		p.TechnicianID = r.PickupConfirmedBy.String
	}
	if r.DecisionReason.Valid {
		p.Reason = r.DecisionReason.String
	}
	if err := events.Publish(ctx, s.emit, t, s.clock.Now(), actorID, r.ID, p); err != nil {
		s.log.Warn("emit failed", slog.String("event", string(t)), slog.Uint64("request_id", r.ID), sl.Err(err))
	}
}

func (s *Service) logFailure(log *slog.Logger, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		log.Error("transition failed", sl.Err(err))
		return
	}
	log.Debug("transition rejected", sl.Err(err))
}
