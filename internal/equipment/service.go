package equipment

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/logger/sl"
)

type Service struct {
	db    *sql.DB
	store *Store
	reg   *Register
	clock clock.Clock
	log   *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }
func WithClock(c clock.Clock) Option   { return func(s *Service) { s.clock = c } }

func NewService(conn *sql.DB, reg *Register, opts ...Option) *Service {
	s := &Service{
		db:    conn,
		store: NewStore(conn),
		reg:   reg,
		clock: clock.Real(),
		log:   logger.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Register() *Register { return s.reg }

func (s *Service) Create(ctx context.Context, in CreateEquipmentRequest) (EquipmentResponse, error) {
	const op = "equipment.Service.Create"
	log := s.log.With(slog.String("op", op))

	serial := NormalizeSerial(in.SerialNumber)
	if serial == "" || strings.TrimSpace(in.Brand) == "" || strings.TrimSpace(in.Model) == "" || strings.TrimSpace(in.Type) == "" {
		return EquipmentResponse{}, apperr.Invalid("serial_number, brand, model, type are required")
	}

	now := s.clock.Now()
	e := &Equipment{
		SerialNumber: serial,
		Brand:        strings.TrimSpace(in.Brand),
		Model:        strings.TrimSpace(in.Model),
		Type:         strings.ToLower(strings.TrimSpace(in.Type)),
		Availability: Available,
		Location:     db.NullString(in.Location),
		Description:  db.NullString(in.Description),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.AcquiredOn != nil && *in.AcquiredOn != "" {
		d, err := clock.ParseDate(*in.AcquiredOn)
		if err != nil {
			return EquipmentResponse{}, apperr.Invalid("acquired_on must be YYYY-MM-DD")
		}
		e.AcquiredOn = sql.NullTime{Time: d, Valid: true}
	}

	id, err := s.store.Insert(ctx, e)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return EquipmentResponse{}, apperr.Conflict("serial_number %s already exists", serial)
		}
		log.Error("insert failed", sl.Err(err))
		return EquipmentResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (EquipmentResponse, error) {
	e, err := s.reg.Get(ctx, s.db, id)
	if err != nil {
		return EquipmentResponse{}, err
	}
	return toResponse(e), nil
}

func (s *Service) List(ctx context.Context, f Filter, p Page) (ListResult, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return ListResult{}, err
	}
	items := make([]EquipmentResponse, 0, len(rows))
	for _, e := range rows {
		items = append(items, toResponse(e))
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	} // 0=終端
	return ListResult{Items: items, Total: total, NextOffset: next}, nil
}

// ChangeAvailability is the administrative path. Only the idle states are reachable here;
// loaned and reserved belong to the booking workflows.
func (s *Service) ChangeAvailability(ctx context.Context, id uint64, to Availability) (EquipmentResponse, error) {
	const op = "equipment.Service.ChangeAvailability"

	idle := []Availability{Available, Maintenance, Inactive}
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		switch to {
		case Maintenance, Inactive:
			return s.reg.Transition(ctx, tx, id, to, idle...)
		case Available:
			_, err := s.reg.Release(ctx, tx, id, idle...)
			return err
		default:
			return apperr.Invalid("availability can only be set to available, maintenance or inactive")
		}
	})
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternal {
			s.log.Error("change availability failed", slog.String("op", op), slog.Uint64("equipment_id", id), sl.Err(err))
		}
		return EquipmentResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("equipment %d not found", id)
	}
	return nil
}
