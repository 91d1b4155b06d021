package loanrequests

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

const selectRequest = `
SELECT id, ulid, requester_id, quantity, purpose, notes, expected_return_date, expected_return_time, status,
       approver_id, decision_reason, decided_at, technician_id, pickup_confirmed, pickup_confirmed_at,
       pickup_confirmed_by, created_at, updated_at
FROM loan_requests`

func scanRequest(row interface{ Scan(...any) error }) (*LoanRequest, error) {
	var r LoanRequest
	if err := row.Scan(
		&r.ID, &r.ULID, &r.RequesterID, &r.Quantity, &r.Purpose, &r.Notes, &r.ExpectedReturnDate,
		&r.ExpectedReturnTime, &r.Status, &r.ApproverID, &r.DecisionReason, &r.DecidedAt, &r.TechnicianID,
		&r.PickupConfirmed, &r.PickupConfirmedAt, &r.PickupConfirmedBy, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, q db.DBTX, r *LoanRequest) error {
	const stmt = `
	INSERT INTO loan_requests
	(ulid, requester_id, quantity, purpose, notes, expected_return_date, expected_return_time, status,
	 technician_id, pickup_confirmed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, stmt,
		r.ULID, r.RequesterID, r.Quantity, r.Purpose, r.Notes, r.ExpectedReturnDate, r.ExpectedReturnTime,
		string(r.Status), r.TechnicianID, r.PickupConfirmed, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("loanrequests.Store.Insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("loanrequests.Store.Insert: %w", err)
	}
	r.ID = uint64(id)
	return nil
}

func (s *Store) Get(ctx context.Context, q db.DBTX, id uint64) (*LoanRequest, error) {
	r, err := scanRequest(q.QueryRowContext(ctx, selectRequest+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("loan request %d not found", id)
		}
		return nil, fmt.Errorf("loanrequests.Store.Get: %w", err)
	}
	if r.EquipmentIDs, err = s.EquipmentIDs(ctx, q, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, q db.DBTX, f Filter, p Page) ([]*LoanRequest, int64, error) {
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

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM loan_requests`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("loanrequests.Store.List: count: %w", err)
	}
	order := "DESC"
	if strings.EqualFold(p.Order, "asc") {
		order = "ASC"
	}
	rows, err := q.QueryContext(ctx, selectRequest+where.String()+` ORDER BY id `+order+` LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("loanrequests.Store.List: %w", err)
	}
	var out []*LoanRequest
	func() {
		defer rows.Close()
		for rows.Next() {
			r, e := scanRequest(rows)
			if e != nil {
				err = e
				return
			}
			out = append(out, r)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, 0, fmt.Errorf("loanrequests.Store.List: scan: %w", err)
	}
	// 行を閉じてからリンクを読む (sqlite は接続1本)
	for _, r := range out {
		if r.EquipmentIDs, err = s.EquipmentIDs(ctx, q, r.ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (s *Store) EquipmentIDs(ctx context.Context, q db.DBTX, requestID uint64) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT equipment_id FROM loan_request_equipment WHERE request_id = ? ORDER BY equipment_id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("loanrequests.Store.EquipmentIDs: %w", err)
	}
	defer rows.Close()
	out := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("loanrequests.Store.EquipmentIDs: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReplaceEquipment swaps the request's unit set for ids.
func (s *Store) ReplaceEquipment(ctx context.Context, q db.DBTX, requestID uint64, ids []uint64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM loan_request_equipment WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("loanrequests.Store.ReplaceEquipment: %w", err)
	}
	for _, id := range ids {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO loan_request_equipment (request_id, equipment_id) VALUES (?, ?)`, requestID, id); err != nil {
			if db.IsDuplicateKey(err) {
				continue
			}
			return fmt.Errorf("loanrequests.Store.ReplaceEquipment: %w", err)
		}
	}
	return nil
}

func (s *Store) SetTechnician(ctx context.Context, q db.DBTX, id uint64, technicianID string, at time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE loan_requests SET technician_id = ?, updated_at = ? WHERE id = ?`,
		technicianID, at, id)
	if err != nil {
		return fmt.Errorf("loanrequests.Store.SetTechnician: %w", err)
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, q db.DBTX, id uint64, at time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE loan_requests SET updated_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("loanrequests.Store.Touch: %w", err)
	}
	return nil
}

// ---------- conditional writes ----------

// Decide moves a pending request to `to` and records who decided and why.
func (s *Store) Decide(ctx context.Context, q db.DBTX, id uint64, to Status, approverID, reason string, at time.Time) (bool, error) {
	const stmt = `
	UPDATE loan_requests
	SET status = ?, approver_id = ?, decision_reason = ?, decided_at = ?, updated_at = ?
	WHERE id = ? AND status = 'pending'`
	return affected(q.ExecContext(ctx, stmt, string(to), approverID, reason, at, at, id))
}

func (s *Store) MarkPickup(ctx context.Context, q db.DBTX, id uint64, technicianID string, at time.Time) (bool, error) {
	const stmt = `
	UPDATE loan_requests
	SET pickup_confirmed = 1, pickup_confirmed_at = ?, pickup_confirmed_by = ?, updated_at = ?
	WHERE id = ? AND status = 'authorized' AND pickup_confirmed = 0`
	return affected(q.ExecContext(ctx, stmt, at, technicianID, at, id))
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
