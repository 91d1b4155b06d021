package equipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
)

// Register owns equipment.availability. Every write is a compare-and-set on the current value
// and bumps revision, so two transactions racing for one unit cannot both win.
// All methods run on the caller's transaction.
type Register struct {
	clock clock.Clock
}

func NewRegister(c clock.Clock) *Register {
	if c == nil {
		c = clock.Real()
	}
	return &Register{clock: c}
}

const selectEquipment = `
SELECT id, serial_number, brand, model, type, availability, location, description, acquired_on,
       revision, created_at, updated_at
FROM equipment`

func scanEquipment(row interface{ Scan(...any) error }) (*Equipment, error) {
	var e Equipment
	if err := row.Scan(
		&e.ID, &e.SerialNumber, &e.Brand, &e.Model, &e.Type, &e.Availability,
		&e.Location, &e.Description, &e.AcquiredOn, &e.Revision, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Register) Get(ctx context.Context, q db.DBTX, id uint64) (*Equipment, error) {
	e, err := scanEquipment(q.QueryRowContext(ctx, selectEquipment+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("equipment %d not found", id)
		}
		return nil, fmt.Errorf("equipment.Register.Get: %w", err)
	}
	return e, nil
}

// SetStatus writes availability unconditionally. Booking code uses Transition instead.
func (r *Register) SetStatus(ctx context.Context, q db.DBTX, id uint64, to Availability) (*Equipment, error) {
	if !to.Valid() {
		return nil, apperr.Invalid("unknown availability %q", to)
	}
	const stmt = `UPDATE equipment SET availability = ?, revision = revision + 1, updated_at = ? WHERE id = ?`
	res, err := q.ExecContext(ctx, stmt, string(to), r.clock.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("equipment.Register.SetStatus: %w", err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return nil, apperr.NotFound("equipment %d not found", id)
	}
	return r.Get(ctx, q, id)
}

// TryReserve claims the unit without changing availability: it succeeds only while the
// current value is in allowed, and the revision bump makes concurrent writers conflict.
func (r *Register) TryReserve(ctx context.Context, q db.DBTX, id uint64, allowed ...Availability) error {
	const op = "equipment.Register.TryReserve"
	if len(allowed) == 0 {
		return apperr.Internal("%s: empty allowed set", op)
	}
	stmt := `UPDATE equipment SET revision = revision + 1, updated_at = ? WHERE id = ? AND availability IN (` +
		db.Placeholders(len(allowed)) + `)`
	args := append([]any{r.clock.Now(), id}, availabilityArgs(allowed)...)
	return r.exec(ctx, q, op, id, allowed, stmt, args)
}

// Transition moves the unit to `to` only while its current value is in allowed.
func (r *Register) Transition(ctx context.Context, q db.DBTX, id uint64, to Availability, allowed ...Availability) error {
	const op = "equipment.Register.Transition"
	if !to.Valid() {
		return apperr.Invalid("unknown availability %q", to)
	}
	if len(allowed) == 0 {
		return apperr.Internal("%s: empty allowed set", op)
	}
	stmt := `UPDATE equipment SET availability = ?, revision = revision + 1, updated_at = ? WHERE id = ? AND availability IN (` +
		db.Placeholders(len(allowed)) + `)`
	args := append([]any{string(to), r.clock.Now(), id}, availabilityArgs(allowed)...)
	return r.exec(ctx, q, op, id, allowed, stmt, args)
}

// Release hands the unit back from one of `from`: reserved while any open, unconverted
// reservation still points at it, available otherwise. It returns the value written.
func (r *Register) Release(ctx context.Context, q db.DBTX, id uint64, from ...Availability) (Availability, error) {
	n, err := r.OutstandingReservations(ctx, q, id, 0)
	if err != nil {
		return "", err
	}
	to := Available
	if n > 0 {
		to = Reserved
	}
	if err := r.Transition(ctx, q, id, to, from...); err != nil {
		return "", err
	}
	return to, nil
}

// OutstandingReservations counts active or confirmed reservations on the unit that were not
// converted into a loan, ignoring exceptID.
func (r *Register) OutstandingReservations(ctx context.Context, q db.DBTX, id, exceptID uint64) (int, error) {
	const stmt = `
SELECT COUNT(*) FROM reservations
WHERE equipment_id = ? AND status IN ('active', 'confirmed') AND converted_loan_id IS NULL AND id <> ?`
	var n int
	if err := q.QueryRowContext(ctx, stmt, id, exceptID).Scan(&n); err != nil {
		return 0, fmt.Errorf("equipment.Register.OutstandingReservations: %w", err)
	}
	return n, nil
}

func (r *Register) exec(ctx context.Context, q db.DBTX, op string, id uint64, allowed []Availability, stmt string, args []any) error {
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if aff == 1 {
		return nil
	}

	// 0 rows: missing unit or lost CAS
	cur, err := r.Get(ctx, q, id)
	if err != nil {
		return err
	}
	return apperr.Conflict("equipment %s is %s, expected one of [%s]", cur.SerialNumber, cur.Availability, joinAvailability(allowed))
}

func availabilityArgs(in []Availability) []any {
	out := make([]any, len(in))
	for i, a := range in {
		out[i] = string(a)
	}
	return out
}

func joinAvailability(in []Availability) string {
	s := make([]string, len(in))
	for i, a := range in {
		s[i] = string(a)
	}
	return strings.Join(s, ", ")
}
