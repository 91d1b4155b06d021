package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Account is the identity row owned by the login service; this package only reads it.
type Account struct {
	ID          string
	DisplayName string
	Role        Role
	IsDisabled  bool
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	const q = `
SELECT id, display_name, role, is_disabled
FROM auth_accounts
WHERE id = ?
LIMIT 1
`
	var a Account
	err := s.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.DisplayName, &a.Role, &a.IsDisabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth.Store.GetByID: %w", err)
	}
	return &a, nil
}

// IDsByRole lists enabled accounts holding role, e.g. every coordinator for request notifications.
func (s *Store) IDsByRole(ctx context.Context, role Role) ([]string, error) {
	const q = `SELECT id FROM auth_accounts WHERE role = ? AND is_disabled = 0 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, string(role))
	if err != nil {
		return nil, fmt.Errorf("auth.Store.IDsByRole: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("auth.Store.IDsByRole: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Coordinators implements the recipient directory used by notifications.
func (s *Store) Coordinators(ctx context.Context) ([]string, error) {
	return s.IDsByRole(ctx, RoleCoordinator)
}
