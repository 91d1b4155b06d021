package equipment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Insert(ctx context.Context, e *Equipment) (uint64, error) {
	const q = `
	INSERT INTO equipment
	(serial_number, brand, model, type, availability, location, description, acquired_on, revision, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		e.SerialNumber, e.Brand, e.Model, e.Type, string(e.Availability),
		e.Location, e.Description, e.AcquiredOn, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) List(ctx context.Context, f Filter, p Page) ([]*Equipment, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}

	if f.Availability != nil {
		where.WriteString(` AND availability = ?`)
		args = append(args, string(*f.Availability))
	}
	if f.Type != nil {
		where.WriteString(` AND type = ?`)
		args = append(args, *f.Type)
	}
	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		like := "%" + strings.TrimSpace(*f.Search) + "%"
		where.WriteString(` AND (serial_number LIKE ? OR brand LIKE ? OR model LIKE ?)`)
		args = append(args, like, like, like)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("equipment.Store.List: count: %w", err)
	}

	order := "DESC"
	if strings.EqualFold(p.Order, "asc") {
		order = "ASC"
	}
	q := selectEquipment + where.String() + ` ORDER BY id ` + order + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("equipment.Store.List: %w", err)
	}
	defer rows.Close()

	var out []*Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("equipment.Store.List: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// ListByIDs keeps the order of ids and silently drops unknown ones.
func (s *Store) ListByIDs(ctx context.Context, ids []uint64) ([]*Equipment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	ph := make([]string, len(ids))
	for i, id := range ids {
		args[i], ph[i] = id, "?"
	}
	rows, err := s.db.QueryContext(ctx, selectEquipment+` WHERE id IN (`+strings.Join(ph, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("equipment.Store.ListByIDs: %w", err)
	}
	defer rows.Close()

	byID := make(map[uint64]*Equipment, len(ids))
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("equipment.Store.ListByIDs: scan: %w", err)
		}
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*Equipment, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Delete cascades to loans, reservations and request links through the foreign keys.
func (s *Store) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("equipment.Store.Delete: %w", err)
	}
	return res.RowsAffected()
}
