// Package sweep runs the daily account maintenance pass: it deactivates
// users who have not logged in for a while and drops revocation entries
// for tokens that have expired anyway.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kidandcat/teamboard/internal/config"
	"github.com/kidandcat/teamboard/internal/db"
	"github.com/kidandcat/teamboard/internal/telemetry"
)

// Result counts what one pass changed.
type Result struct {
	Deactivated int64
	Pruned      int64
}

type Sweeper struct {
	store         *db.Store
	log           *slog.Logger
	inactiveAfter time.Duration
	hour, minute  int
	Now           func() time.Time
}

func New(store *db.Store, logger *slog.Logger, cfg config.SweepConfig) (*Sweeper, error) {
	if cfg.InactiveAfter.Duration <= 0 {
		return nil, fmt.Errorf("inactive_after must be positive")
	}
	at, err := time.Parse("15:04", cfg.RunAt)
	if err != nil {
		return nil, fmt.Errorf("parse run_at %q: %w", cfg.RunAt, err)
	}
	return &Sweeper{
		store:         store,
		log:           logger,
		inactiveAfter: cfg.InactiveAfter.Duration,
		hour:          at.Hour(),
		minute:        at.Minute(),
		Now:           time.Now,
	}, nil
}

// RunOnce performs a single pass. Users with no recorded login are left
// alone. Running it twice in a row changes nothing the second time.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sweep.RunOnce")
	defer span.End()

	now := s.Now()
	var res Result
	var err error
	if res.Deactivated, err = s.store.DeactivateInactiveUsers(ctx, now.Add(-s.inactiveAfter)); err != nil {
		span.RecordError(err)
		return res, err
	}
	if res.Pruned, err = s.store.PruneRevokedTokens(ctx, now); err != nil {
		span.RecordError(err)
		return res, err
	}
	span.SetAttributes(
		attribute.Int64("teamboard.sweep.deactivated", res.Deactivated),
		attribute.Int64("teamboard.sweep.pruned", res.Pruned),
	)
	s.log.InfoContext(ctx, "sweep finished", "deactivated", res.Deactivated, "pruned", res.Pruned)
	return res, nil
}

// NextRun returns the first hour:minute in now's location strictly after now.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run sweeps once a day at the configured local time until ctx ends. A
// failed pass is logged and the loop waits for the next day.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		now := s.Now()
		next := NextRun(now, s.hour, s.minute)
		s.log.DebugContext(ctx, "next sweep scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.ErrorContext(ctx, "sweep failed", "error", err)
		}
	}
}
