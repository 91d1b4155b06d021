package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const selectNotification = `
SELECT id, ulid, recipient_id, category, topic, subject_id, title, message, action_required, is_read, created_at
FROM notifications`

func scanNotification(row interface{ Scan(...any) error }) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.ULID, &n.RecipientID, &n.Category, &n.Topic, &n.SubjectID, &n.Title,
		&n.Message, &n.ActionRequired, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) Insert(ctx context.Context, n *Notification) error {
	const q = `
	INSERT INTO notifications
	(ulid, recipient_id, category, topic, subject_id, title, message, action_required, is_read, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, n.ULID, n.RecipientID, string(n.Category), string(n.Topic), n.SubjectID,
		n.Title, n.Message, n.ActionRequired, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notifications.Store.Insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("notifications.Store.Insert: %w", err)
	}
	n.ID = uint64(id)
	return nil
}

func (s *Store) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]Notification, int64, error) {
	where := ` WHERE recipient_id = ?`
	args := []any{recipientID}
	if unreadOnly {
		where += ` AND is_read = 0`
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("notifications.Store.ListForRecipient: count: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, selectNotification+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("notifications.Store.ListForRecipient: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("notifications.Store.ListForRecipient: scan: %w", err)
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// MarkRead flips one notification; it reports false when the row does not belong to recipientID.
func (s *Store) MarkRead(ctx context.Context, id uint64, recipientID string) (bool, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return false, fmt.Errorf("notifications.Store.MarkRead: %w", err)
	}
	// MySQL は変更のない行を affected に数えない
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE id = ? AND recipient_id = ?`, id, recipientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("notifications.Store.MarkRead: %w", err)
	}
	return exists == 1, nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("notifications.Store.MarkAllRead: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, recipientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notifications.Store.UnreadCount: %w", err)
	}
	return n, nil
}

// LastAt returns the creation time of the newest notification for (recipient, topic, subject).
func (s *Store) LastAt(ctx context.Context, recipientID string, topic Topic, subjectID uint64) (time.Time, bool, error) {
	const q = `
	SELECT created_at FROM notifications
	WHERE recipient_id = ? AND topic = ? AND subject_id = ?
	ORDER BY id DESC LIMIT 1`
	var at time.Time
	err := s.db.QueryRowContext(ctx, q, recipientID, string(topic), subjectID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("notifications.Store.LastAt: %w", err)
	}
	return at, true, nil
}
