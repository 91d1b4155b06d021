package reservations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/db"
)

type Store struct{}

func NewStore() *Store { return &Store{} }

const selectReservation = `
SELECT id, ulid, equipment_id, requester_id, created_by, status, reservation_date, expected_pickup_date,
       purpose, notes, confirmed_at, converted_loan_id, created_at, updated_at
FROM reservations`

func scanReservation(row interface{ Scan(...any) error }) (*Reservation, error) {
	var r Reservation
	if err := row.Scan(
		&r.ID, &r.ULID, &r.EquipmentID, &r.RequesterID, &r.CreatedBy, &r.Status, &r.ReservationDate,
		&r.ExpectedPickupDate, &r.Purpose, &r.Notes, &r.ConfirmedAt, &r.ConvertedLoanID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, q db.DBTX, r *Reservation) error {
	const stmt = `
	INSERT INTO reservations
	(ulid, equipment_id, requester_id, created_by, status, reservation_date, expected_pickup_date, purpose, notes,
	 created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, stmt,
		r.ULID, r.EquipmentID, r.RequesterID, r.CreatedBy, string(r.Status), r.ReservationDate, r.ExpectedPickupDate,
		r.Purpose, r.Notes, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return apperr.Conflict("equipment %d is already reserved for %s", r.EquipmentID, r.ExpectedPickupDate.Format("2006-01-02"))
		}
		return fmt.Errorf("reservations.Store.Insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reservations.Store.Insert: %w", err)
	}
	r.ID = uint64(id)
	return nil
}

// PickupTaken is the pre-insert check for the (equipment, pickup date) rule; the unique index is the backstop.
func (s *Store) PickupTaken(ctx context.Context, q db.DBTX, equipmentID uint64, pickup time.Time) (bool, error) {
	const stmt = `
	SELECT COUNT(*) FROM reservations
	WHERE equipment_id = ? AND expected_pickup_date = ? AND status IN ('active', 'confirmed')`
	var n int
	if err := q.QueryRowContext(ctx, stmt, equipmentID, pickup).Scan(&n); err != nil {
		return false, fmt.Errorf("reservations.Store.PickupTaken: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Get(ctx context.Context, q db.DBTX, id uint64) (*Reservation, error) {
	r, err := scanReservation(q.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("reservation %d not found", id)
		}
		return nil, fmt.Errorf("reservations.Store.Get: %w", err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, q db.DBTX, f Filter, p Page) ([]*Reservation, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.Status != nil {
		where.WriteString(` AND status = ?`)
		args = append(args, string(*f.Status))
	}
	if f.RequesterID != nil {
		where.WriteString(` AND requester_id = ?`)
		args = append(args, *f.RequesterID)
	}
	if f.EquipmentID != nil {
		where.WriteString(` AND equipment_id = ?`)
		args = append(args, *f.EquipmentID)
	}

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("reservations.Store.List: count: %w", err)
	}
	order := "DESC"
	if strings.EqualFold(p.Order, "asc") {
		order = "ASC"
	}
	rows, err := q.QueryContext(ctx, selectReservation+where.String()+` ORDER BY id `+order+` LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("reservations.Store.List: %w", err)
	}
	out, err := collect(rows)
	return out, total, err
}

func (s *Store) ListActive(ctx context.Context, q db.DBTX) ([]*Reservation, error) {
	rows, err := q.QueryContext(ctx, selectReservation+` WHERE status = 'active' AND converted_loan_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reservations.Store.ListActive: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Reservation, error) {
	defer rows.Close()
	var out []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("reservations: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------- conditional writes ----------

func (s *Store) Confirm(ctx context.Context, q db.DBTX, id uint64, at time.Time) (bool, error) {
	const stmt = `
	UPDATE reservations SET status = 'confirmed', confirmed_at = ?, updated_at = ?
	WHERE id = ? AND status = 'active' AND converted_loan_id IS NULL`
	return affected(q.ExecContext(ctx, stmt, at, at, id))
}

func (s *Store) Cancel(ctx context.Context, q db.DBTX, id uint64, at time.Time) (bool, error) {
	const stmt = `
	UPDATE reservations SET status = 'cancelled', updated_at = ?
	WHERE id = ? AND status IN ('active', 'confirmed') AND converted_loan_id IS NULL`
	return affected(q.ExecContext(ctx, stmt, at, id))
}

func (s *Store) Expire(ctx context.Context, q db.DBTX, id uint64, at time.Time) (bool, error) {
	const stmt = `
	UPDATE reservations SET status = 'expired', updated_at = ?
	WHERE id = ? AND status = 'active' AND converted_loan_id IS NULL`
	return affected(q.ExecContext(ctx, stmt, at, id))
}

// MarkConverted leaves the reservation confirmed and points it at the loan; it is terminal afterwards.
func (s *Store) MarkConverted(ctx context.Context, q db.DBTX, id, loanID uint64, at time.Time) (bool, error) {
	const stmt = `
	UPDATE reservations
	SET status = 'confirmed', confirmed_at = COALESCE(confirmed_at, ?), converted_loan_id = ?, updated_at = ?
	WHERE id = ? AND status IN ('active', 'confirmed') AND converted_loan_id IS NULL`
	return affected(q.ExecContext(ctx, stmt, at, loanID, at, id))
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
