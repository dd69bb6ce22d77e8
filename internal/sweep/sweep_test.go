package sweep

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kidandcat/teamboard/internal/config"
	"github.com/kidandcat/teamboard/internal/db"
	"github.com/kidandcat/teamboard/internal/logging"
)

func newSweeper(t *testing.T, now time.Time) (*Sweeper, *db.Store) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "sweep.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s, err := New(store, logging.Discard(), config.Default().Sweep)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	s.Now = func() time.Time { return now }
	return s, store
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default().Sweep
	cfg.RunAt = "25:99"
	if _, err := New(nil, logging.Discard(), cfg); err == nil {
		t.Fatal("expected run_at error")
	}
	cfg = config.Default().Sweep
	cfg.InactiveAfter = config.Duration{}
	if _, err := New(nil, logging.Discard(), cfg); err == nil {
		t.Fatal("expected inactive_after error")
	}
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	s, store := newSweeper(t, now)
	ctx := context.Background()

	add := func(name string, lastLogin *time.Time) *db.User {
		u := &db.User{Username: name, PasswordHash: "x", IsActive: true, LastLogin: lastLogin}
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		return u
	}
	old := now.AddDate(0, 0, -31)
	recent := now.AddDate(0, 0, -29)
	stale := add("stale", &old)
	fresh := add("fresh", &recent)
	never := add("never", nil)

	if err := store.RevokeToken(ctx, "expired", fresh.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := store.RevokeToken(ctx, "live", fresh.ID, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Deactivated != 1 || res.Pruned != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	for _, tc := range []struct {
		u      *db.User
		active bool
	}{{stale, false}, {fresh, true}, {never, true}} {
		got, err := store.GetUser(ctx, tc.u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.IsActive != tc.active {
			t.Fatalf("%s: expected active=%v", got.Username, tc.active)
		}
	}

	res, err = s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) {
		t.Fatalf("expected no changes on second pass, got %+v", res)
	}
}

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before run time", time.Date(2026, 5, 10, 8, 0, 0, 0, loc), time.Date(2026, 5, 10, 9, 30, 0, 0, loc)},
		{"exactly at run time", time.Date(2026, 5, 10, 9, 30, 0, 0, loc), time.Date(2026, 5, 11, 9, 30, 0, 0, loc)},
		{"after run time", time.Date(2026, 12, 31, 23, 0, 0, 0, loc), time.Date(2027, 1, 1, 9, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextRun(tt.now, 9, 30); !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newSweeper(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
