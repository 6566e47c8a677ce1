package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	cfg := config.DefaultConfig()
	store, err := capture.NewStore(filepath.Join(t.TempDir(), "captures.db"), 0)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	return NewScheduler(cfg, bus, inspect.NewWorkbench(store, bus, inspect.Options{}))
}

func TestNextCleanupTime(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name    string
		cleanup string
		now     time.Time
		want    time.Time
	}{
		{"later today", "04:00", time.Date(2024, 3, 1, 1, 0, 0, 0, loc), time.Date(2024, 3, 1, 4, 0, 0, 0, loc)},
		{"tomorrow", "04:00", time.Date(2024, 3, 1, 5, 0, 0, 0, loc), time.Date(2024, 3, 2, 4, 0, 0, 0, loc)},
		{"exactly now", "04:00", time.Date(2024, 3, 1, 4, 0, 0, 0, loc), time.Date(2024, 3, 2, 4, 0, 0, 0, loc)},
		{"minutes", "23:45", time.Date(2024, 12, 31, 23, 50, 0, 0, loc), time.Date(2025, 1, 1, 23, 45, 0, 0, loc)},
		{"malformed", "late", time.Date(2024, 3, 1, 1, 0, 0, 0, loc), time.Date(2024, 3, 1, 4, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextCleanupTime(tt.cleanup, tt.now); !got.Equal(tt.want) {
				t.Errorf("nextCleanupTime(%q, %v) = %v, want %v", tt.cleanup, tt.now, got, tt.want)
			}
		})
	}
}

func TestPruneCaptures(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	pruned := make(chan events.PrunedPayload, 1)
	s.eventBus.Subscribe(events.EventCapturesPruned, "test", func(_ context.Context, e events.Event) error {
		pruned <- e.Payload.(events.PrunedPayload)
		return nil
	})

	for _, age := range []int{30, 20, 1} {
		_, err := s.bench.CreateSession(ctx, capture.Session{
			Name:      "capture",
			Direction: config.DirectionServer,
			CreatedAt: now.AddDate(0, 0, -age),
		})
		if err != nil {
			t.Fatalf("CreateSession error: %v", err)
		}
	}

	removed, err := s.pruneCaptures(ctx, now)
	if err != nil {
		t.Fatalf("pruneCaptures error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	select {
	case p := <-pruned:
		if p.Sessions != 2 {
			t.Errorf("pruned event sessions = %d, want 2", p.Sessions)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no captures_pruned event")
	}

	left, err := s.bench.Store().ListSessions(ctx)
	if err != nil || len(left) != 1 {
		t.Errorf("sessions left = %d, %v", len(left), err)
	}
}

func TestPruneDisabled(t *testing.T) {
	s := newTestScheduler(t)
	app := s.cfg.GetApplicationData()
	app.Capture.RetentionDays = 0
	s.cfg.SetApplicationData(app)

	ctx := context.Background()
	if _, err := s.bench.CreateSession(ctx, capture.Session{
		Name: "old", Direction: config.DirectionServer, CreatedAt: time.Now().AddDate(-1, 0, 0),
	}); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if removed, err := s.pruneCaptures(ctx, time.Now()); err != nil || removed != 0 {
		t.Errorf("pruneCaptures() = %d, %v, want 0", removed, err)
	}
}

func TestCollectStats(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	sess, err := s.bench.CreateSession(ctx, capture.Session{Name: "x", Direction: config.DirectionClient})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if _, err := s.bench.Import(ctx, sess.ID, []byte{0x07}); err != nil {
		t.Fatalf("Import error: %v", err)
	}

	stats, err := s.collectStats(ctx)
	if err != nil {
		t.Fatalf("collectStats error: %v", err)
	}
	if stats.Sessions != 1 || stats.Packets != 1 || stats.Malformed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Goroutines < 1 {
		t.Errorf("goroutines = %d", stats.Goroutines)
	}
}

func TestHeartbeat(t *testing.T) {
	s := newTestScheduler(t)
	got := make(chan events.HeartbeatPayload, 1)
	s.eventBus.Subscribe(events.EventHeartbeat, "test", func(_ context.Context, e events.Event) error {
		got <- e.Payload.(events.HeartbeatPayload)
		return nil
	})

	s.heartbeat(context.Background())
	select {
	case p := <-got:
		if p.Goroutines < 1 || p.UptimeSecs < 0 {
			t.Errorf("heartbeat = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat event")
	}
}

func TestCheckDisk(t *testing.T) {
	s := newTestScheduler(t)
	if _, err := s.checkDisk(context.Background()); err != nil {
		t.Errorf("checkDisk error: %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
