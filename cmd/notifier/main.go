// Command notifier runs one pass of the booking scheduler: return reminders, overdue alerts and
// reservation expiry. It is meant to be started by cron or a systemd timer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"equipahub-backend/internal/app"
	"equipahub-backend/internal/platform/config"
	"equipahub-backend/internal/platform/logger"
	"equipahub-backend/internal/platform/logger/sl"
)

func main() {
	var configPath string
	var hoursBefore int
	var verbose bool
	flag.StringVar(&configPath, "config", "", "path to config.yaml (default: $CONFIG_PATH or config/config.yaml)")
	flag.IntVar(&hoursBefore, "hours-before", 0, "reminder horizon in hours (default: scheduler.hours_before)")
	flag.BoolVar(&verbose, "verbose", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if hoursBefore <= 0 {
		hoursBefore = cfg.Scheduler.HoursBefore
	}

	mode := cfg.Mode
	if verbose {
		mode = "dev"
	}
	log := logger.Setup(mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", sl.Err(err))
		os.Exit(1)
	}

	rep := a.Scheduler.RunAll(ctx, hoursBefore)
	log.Info("notifier finished", slog.Int("hours_before", hoursBefore))
	fmt.Printf("reminders=%d overdue=%d expired_reservations=%d failed=%d\n",
		rep.Reminders, rep.Overdue, rep.Expired, rep.Failed)

	if err := a.Close(); err != nil {
		log.Warn("close failed", sl.Err(err))
	}
	if rep.Failed > 0 {
		os.Exit(2)
	}
}
