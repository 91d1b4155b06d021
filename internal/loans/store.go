package loans

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

// Store methods run on the caller's DBTX so lifecycle services can compose them in one transaction.
type Store struct{}

func NewStore() *Store { return &Store{} }

const selectLoan = `
SELECT id, ulid, equipment_id, borrower_id, created_by, status, start_date, expected_return_date,
       expected_return_time, actual_return_date, pickup_confirmed, pickup_technician_id, pickup_confirmed_at,
       purpose, notes, reservation_id, request_id, created_at, updated_at
FROM loans`

func scanLoan(row interface{ Scan(...any) error }) (*Loan, error) {
	var l Loan
	if err := row.Scan(
		&l.ID, &l.ULID, &l.EquipmentID, &l.BorrowerID, &l.CreatedBy, &l.Status, &l.StartDate, &l.ExpectedReturnDate,
		&l.ExpectedReturnTime, &l.ActualReturnDate, &l.PickupConfirmed, &l.PickupTechnicianID, &l.PickupConfirmedAt,
		&l.Purpose, &l.Notes, &l.ReservationID, &l.RequestID, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

// Insert fails with Conflict when the unit already carries an open loan.
func (s *Store) Insert(ctx context.Context, q db.DBTX, l *Loan) error {
	const stmt = `
	INSERT INTO loans
	(ulid, equipment_id, borrower_id, created_by, status, start_date, expected_return_date, expected_return_time,
	 pickup_confirmed, pickup_technician_id, pickup_confirmed_at, purpose, notes, reservation_id, request_id,
	 created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, stmt,
		l.ULID, l.EquipmentID, l.BorrowerID, l.CreatedBy, string(l.Status), l.StartDate, l.ExpectedReturnDate,
		l.ExpectedReturnTime, l.PickupConfirmed, l.PickupTechnicianID, l.PickupConfirmedAt, l.Purpose, l.Notes,
		l.ReservationID, l.RequestID, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return apperr.Conflict("equipment %d already has an open loan", l.EquipmentID)
		}
		return fmt.Errorf("loans.Store.Insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("loans.Store.Insert: %w", err)
	}
	l.ID = uint64(id)
	return nil
}

func (s *Store) Get(ctx context.Context, q db.DBTX, id uint64) (*Loan, error) {
	l, err := scanLoan(q.QueryRowContext(ctx, selectLoan+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("loan %d not found", id)
		}
		return nil, fmt.Errorf("loans.Store.Get: %w", err)
	}
	return l, nil
}

func (s *Store) GetByULID(ctx context.Context, q db.DBTX, ulid string) (*Loan, error) {
	l, err := scanLoan(q.QueryRowContext(ctx, selectLoan+` WHERE ulid = ?`, ulid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("loan %s not found", ulid)
		}
		return nil, fmt.Errorf("loans.Store.GetByULID: %w", err)
	}
	return l, nil
}

func (s *Store) List(ctx context.Context, q db.DBTX, f Filter, p Page) ([]*Loan, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.Status != nil {
		where.WriteString(` AND status = ?`)
		args = append(args, string(*f.Status))
	}
	if f.BorrowerID != nil {
		where.WriteString(` AND borrower_id = ?`)
		args = append(args, *f.BorrowerID)
	}
	if f.EquipmentID != nil {
		where.WriteString(` AND equipment_id = ?`)
		args = append(args, *f.EquipmentID)
	}

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("loans.Store.List: count: %w", err)
	}

	order := "DESC"
	if strings.EqualFold(p.Order, "asc") {
		order = "ASC"
	}
	rows, err := q.QueryContext(ctx, selectLoan+where.String()+` ORDER BY id `+order+` LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("loans.Store.List: %w", err)
	}
	out, err := collect(rows)
	return out, total, err
}

func (s *Store) ListByStatus(ctx context.Context, q db.DBTX, statuses ...Status) ([]*Loan, error) {
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	rows, err := q.QueryContext(ctx, selectLoan+` WHERE status IN (`+db.Placeholders(len(statuses))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("loans.Store.ListByStatus: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Loan, error) {
	defer rows.Close()
	var out []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("loans: scan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ---------- conditional writes (0 rows = the loan moved on under us) ----------

func (s *Store) ConfirmPickup(ctx context.Context, q db.DBTX, id uint64, to Status, technicianID string, at time.Time) (bool, error) {
	const stmt = `
	UPDATE loans
	SET status = ?, pickup_confirmed = 1, pickup_technician_id = ?, pickup_confirmed_at = ?, updated_at = ?
	WHERE id = ? AND pickup_confirmed = 0 AND status IN ('pending_pickup', 'active', 'overdue')`
	return affected(q.ExecContext(ctx, stmt, string(to), technicianID, at, at, id))
}

func (s *Store) Complete(ctx context.Context, q db.DBTX, id uint64, returnDate time.Time, notes sql.NullString, at time.Time) (bool, error) {
	const stmt = `
	UPDATE loans
	SET status = 'completed', actual_return_date = ?, notes = COALESCE(?, notes), updated_at = ?
	WHERE id = ? AND status IN ('active', 'overdue')`
	return affected(q.ExecContext(ctx, stmt, returnDate, notes, at, id))
}

func (s *Store) Cancel(ctx context.Context, q db.DBTX, id uint64, from []Status, at time.Time) (bool, error) {
	args := []any{at, id}
	for _, st := range from {
		args = append(args, string(st))
	}
	stmt := `UPDATE loans SET status = 'cancelled', updated_at = ? WHERE id = ? AND status IN (` + db.Placeholders(len(from)) + `)`
	return affected(q.ExecContext(ctx, stmt, args...))
}

// MarkOverdue persists the derived overdue status. It is idempotent.
func (s *Store) MarkOverdue(ctx context.Context, q db.DBTX, id uint64, at time.Time) (bool, error) {
	const stmt = `UPDATE loans SET status = 'overdue', updated_at = ? WHERE id = ? AND status = 'active'`
	return affected(q.ExecContext(ctx, stmt, at, id))
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
