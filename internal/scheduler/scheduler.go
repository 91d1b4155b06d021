package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/loans"
	"equipahub-backend/internal/notifications"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/logger/sl"
	"equipahub-backend/internal/platform/metrics"
	"equipahub-backend/internal/reservations"
)

const (
	DefaultHoursBefore    = 2
	DefaultReminderWindow = 6 * time.Hour
	DefaultOverdueWindow  = 24 * time.Hour
)

// Scheduler runs the time-driven scans. It holds no goroutine of its own: an external trigger
// (cmd/notifier, POST /scheduler/run) calls it, one run at a time.
type Scheduler struct {
	db           *sql.DB
	reg          *equipment.Register
	loans        *loans.Service
	reservations *reservations.Service
	notes        *notifications.Service
	cooldown     Cooldown
	clock        clock.Clock
	log          *slog.Logger
	metrics      *metrics.Metrics

	reminderWindow time.Duration
	overdueWindow  time.Duration
}

type Option func(*Scheduler)

func WithCooldown(c Cooldown) Option            { return func(s *Scheduler) { s.cooldown = c } }
func WithClock(c clock.Clock) Option            { return func(s *Scheduler) { s.clock = c } }
func WithLogger(l *slog.Logger) Option          { return func(s *Scheduler) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option     { return func(s *Scheduler) { s.metrics = m } }
func WithReminderWindow(d time.Duration) Option { return func(s *Scheduler) { s.reminderWindow = d } }
func WithOverdueWindow(d time.Duration) Option  { return func(s *Scheduler) { s.overdueWindow = d } }

func New(conn *sql.DB, reg *equipment.Register, ls *loans.Service, rs *reservations.Service, notes *notifications.Service, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:             conn,
		reg:            reg,
		loans:          ls,
		reservations:   rs,
		notes:          notes,
		clock:          ls.Clock(),
		log:            logger.Discard(),
		reminderWindow: DefaultReminderWindow,
		overdueWindow:  DefaultOverdueWindow,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cooldown == nil {
		s.cooldown = NewHistoryCooldown(notes)
	}
	return s
}

// Report summarises one run.
type Report struct {
	Reminders int `json:"reminders"`
	Overdue   int `json:"overdue"`
	Expired   int `json:"expired_reservations"`
	Failed    int `json:"failed"`
}

func (r Report) Total() int { return r.Reminders + r.Overdue }

// RunAll runs every scan in order. Scan-level failures are logged and reflected in Failed.
func (s *Scheduler) RunAll(ctx context.Context, hoursBefore int) Report {
	var rep Report
	var failed int

	rep.Reminders, failed = s.checkUpcoming(ctx, hoursBefore)
	rep.Failed += failed
	rep.Overdue, failed = s.checkOverdue(ctx)
	rep.Failed += failed

	if s.reservations != nil {
		n, err := s.reservations.ExpireDue(ctx)
		rep.Expired = n
		if err != nil {
			s.log.Error("reservation expiry failed", slog.String("op", "scheduler.RunAll"), sl.Err(err))
			s.metrics.Scan("expire_reservations", "error")
			rep.Failed++
		} else {
			s.metrics.Scan("expire_reservations", "ok")
		}
	}
	s.log.Info("scheduler run finished",
		slog.Int("reminders", rep.Reminders), slog.Int("overdue", rep.Overdue),
		slog.Int("expired", rep.Expired), slog.Int("failed", rep.Failed))
	return rep
}

// CheckUpcomingReturns reminds borrowers whose active loan is due within hoursBefore and returns the
// number of reminders written.
func (s *Scheduler) CheckUpcomingReturns(ctx context.Context, hoursBefore int) int {
	n, _ := s.checkUpcoming(ctx, hoursBefore)
	return n
}

// CheckOverdueLoans persists overdue status for loans past due and alerts their borrowers, at most
// once per overdue window. It returns the number of alerts written.
func (s *Scheduler) CheckOverdueLoans(ctx context.Context) int {
	n, _ := s.checkOverdue(ctx)
	return n
}

// ExpireReservations persists reservation expiry and returns how many expired.
func (s *Scheduler) ExpireReservations(ctx context.Context) (int, error) {
	if s.reservations == nil {
		return 0, nil
	}
	return s.reservations.ExpireDue(ctx)
}

func (s *Scheduler) checkUpcoming(ctx context.Context, hoursBefore int) (sent, failed int) {
	const op = "scheduler.CheckUpcomingReturns"
	log := s.log.With(slog.String("op", op))

	if hoursBefore <= 0 {
		hoursBefore = DefaultHoursBefore
	}
	now := s.clock.Now()
	horizon := now.Add(time.Duration(hoursBefore) * time.Hour)

	running, err := s.loans.Running(ctx)
	if err != nil {
		log.Error("list running loans", sl.Err(err))
		s.metrics.Scan("upcoming", "error")
		return 0, 1
	}
	for _, l := range running {
		if ctx.Err() != nil {
			break
		}
		if l.Status != loans.Active {
			continue
		}
		due := s.loans.DueAt(l)
		if due.Before(now) || due.After(horizon) {
			continue
		}
		title, msg := notifications.ReminderText(l.ID, s.serial(ctx, l.EquipmentID), due, now)
		ok, err := s.send(ctx, notifications.Input{
			RecipientID:    l.BorrowerID,
			Category:       notifications.Warning,
			Topic:          notifications.TopicLoanReminder,
			SubjectID:      l.ID,
			Title:          title,
			Message:        msg,
			ActionRequired: true,
		}, s.reminderWindow)
		if err != nil {
			log.Error("reminder failed", slog.Uint64("loan_id", l.ID), sl.Err(err))
			failed++
			continue
		}
		if ok {
			sent++
		}
	}
	s.metrics.Scan("upcoming", "ok")
	if sent > 0 {
		log.Info("reminders sent", slog.Int("count", sent))
	}
	return sent, failed
}

func (s *Scheduler) checkOverdue(ctx context.Context) (sent, failed int) {
	const op = "scheduler.CheckOverdueLoans"
	log := s.log.With(slog.String("op", op))

	now := s.clock.Now()
	running, err := s.loans.Running(ctx)
	if err != nil {
		log.Error("list running loans", sl.Err(err))
		s.metrics.Scan("overdue", "error")
		return 0, 1
	}
	for _, l := range running {
		if ctx.Err() != nil {
			break
		}
		if !loans.IsOverdue(l, now, s.loans.Location()) {
			continue
		}
		ok, err := s.overdueOne(ctx, l, now)
		if err != nil {
			log.Error("overdue check failed", slog.Uint64("loan_id", l.ID), sl.Err(err))
			failed++
			continue
		}
		if ok {
			sent++
		}
	}
	s.metrics.Scan("overdue", "ok")
	if sent > 0 {
		log.Info("overdue alerts sent", slog.Int("count", sent))
	}
	return sent, failed
}

func (s *Scheduler) overdueOne(ctx context.Context, l *loans.Loan, now time.Time) (bool, error) {
	if l.Status != loans.Overdue {
		if _, err := s.loans.MarkOverdue(ctx, l.ID); err != nil {
			return false, fmt.Errorf("mark overdue: %w", err)
		}
	}
	title, msg := notifications.OverdueText(l.ID, s.serial(ctx, l.EquipmentID), s.loans.DueAt(l), now)
	return s.send(ctx, notifications.Input{
		RecipientID:    l.BorrowerID,
		Category:       notifications.Alert,
		Topic:          notifications.TopicLoanOverdue,
		SubjectID:      l.ID,
		Title:          title,
		Message:        msg,
		ActionRequired: true,
	}, s.overdueWindow)
}

// send writes in unless the cooldown holds it back. It reports whether a notification was written.
func (s *Scheduler) send(ctx context.Context, in notifications.Input, window time.Duration) (bool, error) {
	ok, err := s.cooldown.Allow(ctx, in.RecipientID, in.Topic, in.SubjectID, window)
	if err != nil || !ok {
		return false, err
	}
	if _, err := s.notes.Notify(ctx, in); err != nil {
		if ferr := s.cooldown.Forget(ctx, in.RecipientID, in.Topic, in.SubjectID); ferr != nil {
			s.log.Warn("cooldown forget failed", sl.Err(ferr))
		}
		return false, err
	}
	return true, nil
}

func (s *Scheduler) serial(ctx context.Context, equipmentID uint64) string {
	u, err := s.reg.Get(ctx, s.db, equipmentID)
	if err != nil {
		return fmt.Sprintf("#%d", equipmentID)
	}
	return u.SerialNumber
}
