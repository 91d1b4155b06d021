package notifications

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/ids"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/metrics"
)

type Service struct {
	store   *Store
	clock   clock.Clock
	id      ids.IDGen
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithClock(c clock.Clock) Option        { return func(s *Service) { s.clock = c } }
func WithIDGen(g ids.IDGen) Option          { return func(s *Service) { s.id = g } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func NewService(conn *sql.DB, opts ...Option) *Service {
	s := &Service{
		store: NewStore(conn),
		clock: clock.Real(),
		id:    ids.ULID(),
		log:   logger.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Clock() clock.Clock { return s.clock }

// Notify stores one notification for later retrieval.
func (s *Service) Notify(ctx context.Context, in Input) (Notification, error) {
	if strings.TrimSpace(in.RecipientID) == "" {
		return Notification{}, apperr.Invalid("recipient required")
	}
	if in.Category == "" {
		in.Category = Info
	}
	now := s.clock.Now()
	n := Notification{
		ULID:           s.id.NewULID(now),
		RecipientID:    in.RecipientID,
		Category:       in.Category,
		Topic:          in.Topic,
		SubjectID:      in.SubjectID,
		Title:          in.Title,
		Message:        in.Message,
		ActionRequired: in.ActionRequired,
		CreatedAt:      now,
	}
	if err := s.store.Insert(ctx, &n); err != nil {
		return Notification{}, err
	}
	s.metrics.Notified(string(in.Topic))
	s.log.Debug("notification stored",
		slog.String("recipient", n.RecipientID), slog.String("topic", string(n.Topic)), slog.Uint64("subject_id", n.SubjectID))
	return n, nil
}

func (s *Service) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) (ListResult, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.ListForRecipient(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	unread, err := s.store.UnreadCount(ctx, recipientID)
	if err != nil {
		return ListResult{}, err
	}
	next := offset + limit
	if next >= int(total) {
		next = 0
	}
	return ListResult{Items: items, Total: total, Unread: unread, NextOffset: next}, nil
}

func (s *Service) MarkRead(ctx context.Context, id uint64, recipientID string) error {
	ok, err := s.store.MarkRead(ctx, id, recipientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification %d not found", id)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.store.MarkAllRead(ctx, recipientID)
}

func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return s.store.UnreadCount(ctx, recipientID)
}

// LastAt reports when (recipient, topic, subject) was last notified.
func (s *Service) LastAt(ctx context.Context, recipientID string, topic Topic, subjectID uint64) (time.Time, bool, error) {
	return s.store.LastAt(ctx, recipientID, topic, subjectID)
}

// HasRecent reports whether (recipient, topic, subject) was notified within window of now.
func (s *Service) HasRecent(ctx context.Context, recipientID string, topic Topic, subjectID uint64, window time.Duration) (bool, error) {
	at, ok, err := s.store.LastAt(ctx, recipientID, topic, subjectID)
	if err != nil || !ok {
		return false, err
	}
	return s.clock.Now().Sub(at) < window, nil
}
