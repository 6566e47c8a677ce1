// Package scheduler runs the workbench's background tasks: capture
// retention cleanup, periodic statistics, heartbeats and disk checks.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
)

const source = "scheduler"

// Disk thresholds below which a disk warning is emitted.
const (
	minFreeMB      = 1024
	maxUsedPercent = 90.0
)

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	bench    *inspect.Workbench
	started  time.Time
}

// NewScheduler creates a new task scheduler.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, bench *inspect.Workbench) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		bench:    bench,
		started:  time.Now(),
	}
}

// Start runs every task until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")
	app := s.cfg.GetApplicationData()

	if app.Capture.RetentionDays > 0 {
		go s.runCleanupLoop(ctx)
	} else {
		log.Info().Msg("capture retention disabled, cleanup not scheduled")
	}

	go s.every(ctx, app.Timers.StatsInterval, func(ctx context.Context) {
		if _, err := s.collectStats(ctx); err != nil {
			log.Warn().Err(err).Msg("stats collection failed")
		}
	})
	go s.every(ctx, app.Timers.HeartbeatInterval, s.heartbeat)
	go s.every(ctx, app.Timers.DiskCheckInterval, func(ctx context.Context) {
		if _, err := s.checkDisk(ctx); err != nil {
			log.Warn().Err(err).Msg("disk check failed")
		}
	})

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// every calls task each intervalSec seconds. A non-positive interval
// disables the task.
func (s *Scheduler) every(ctx context.Context, intervalSec int, task func(context.Context)) {
	if intervalSec <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

// runCleanupLoop prunes old captures daily at the configured time.
func (s *Scheduler) runCleanupLoop(ctx context.Context) {
	for {
		nextRun := nextCleanupTime(s.cfg.GetApplicationData().Capture.CleanupTime, time.Now())
		sleepDuration := time.Until(nextRun)
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		log.Info().
			Time("next_run", nextRun).
			Dur("sleep", sleepDuration).
			Msg("capture cleanup scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepDuration):
			if _, err := s.pruneCaptures(ctx, time.Now()); err != nil {
				log.Warn().Err(err).Msg("capture cleanup failed")
			}
		}
	}
}

// pruneCaptures deletes sessions older than the retention period as of
// now and compacts the database.
func (s *Scheduler) pruneCaptures(ctx context.Context, now time.Time) (int64, error) {
	retentionDays := s.cfg.GetApplicationData().Capture.RetentionDays
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	store := s.bench.Store()

	sizeBefore, _ := store.Database().SizeBytes(ctx)

	removed, err := store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.bench.Forget()
		if err := store.Vacuum(ctx); err != nil {
			log.Warn().Err(err).Msg("vacuum after cleanup failed")
		}
		s.eventBus.Emit(ctx, events.NewEvent(events.EventCapturesPruned, source,
			events.PrunedPayload{Sessions: removed, Before: cutoff}))
	}

	sizeAfter, _ := store.Database().SizeBytes(ctx)
	log.Info().
		Int64("deleted_sessions", removed).
		Int("retention_days", retentionDays).
		Str("freed_space", formatBytes(sizeBefore-sizeAfter)).
		Msg("capture cleanup completed")
	return removed, nil
}

// collectStats gathers store and process statistics and emits them.
func (s *Scheduler) collectStats(ctx context.Context) (events.StatsPayload, error) {
	store := s.bench.Store()
	st, err := store.Stats(ctx)
	if err != nil {
		return events.StatsPayload{}, err
	}

	payload := events.StatsPayload{
		Sessions:   st.Sessions,
		Packets:    st.Packets,
		Mismatches: st.Mismatches,
		Malformed:  st.Malformed,
		Goroutines: runtime.NumGoroutine(),
		UptimeSecs: int64(time.Since(s.started).Seconds()),
	}
	if size, err := store.Database().SizeBytes(ctx); err == nil {
		payload.DatabaseMB = float64(size) / (1024 * 1024)
	}
	if proc, err := util.GetProcessStats(); err == nil {
		payload.RSSMB = proc.RSSMB
	}
	if usage, err := util.GetDiskUsage(s.dataDir()); err == nil {
		payload.DiskFreeMB = usage.FreeMB
	}

	s.eventBus.Emit(ctx, events.NewEvent(events.EventStats, source, payload))
	log.Debug().
		Int64("sessions", payload.Sessions).
		Int64("packets", payload.Packets).
		Int64("mismatches", payload.Mismatches).
		Int64("malformed", payload.Malformed).
		Msg("stats collected")
	return payload, nil
}

func (s *Scheduler) heartbeat(ctx context.Context) {
	s.eventBus.Emit(ctx, events.NewEvent(events.EventHeartbeat, source, events.HeartbeatPayload{
		UptimeSecs: int64(time.Since(s.started).Seconds()),
		Goroutines: runtime.NumGoroutine(),
	}))
}

// checkDisk warns when the filesystem holding the capture database runs
// low. It reports whether a warning was emitted.
func (s *Scheduler) checkDisk(ctx context.Context) (bool, error) {
	dir := s.dataDir()
	usage, err := util.GetDiskUsage(dir)
	if err != nil {
		return false, fmt.Errorf("disk usage of %s: %w", dir, err)
	}
	if usage.FreeMB >= minFreeMB && usage.UsedPercent <= maxUsedPercent {
		return false, nil
	}

	log.Warn().
		Str("path", dir).
		Uint64("free_mb", usage.FreeMB).
		Float64("used_percent", usage.UsedPercent).
		Msg("low disk space for captures")
	s.eventBus.Emit(ctx, events.NewEvent(events.EventDiskWarning, source, events.DiskWarningPayload{
		Path:        dir,
		FreeMB:      usage.FreeMB,
		UsedPercent: usage.UsedPercent,
	}))
	return true, nil
}

func (s *Scheduler) dataDir() string {
	path := s.bench.Store().Database().Path()
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return "."
	}
	return filepath.Dir(path)
}

// nextCleanupTime returns the first HH:MM occurrence after now. A
// malformed time falls back to 04:00.
func nextCleanupTime(cleanupTime string, now time.Time) time.Time {
	hour, minute := 4, 0
	if t, err := time.Parse("15:04", cleanupTime); err == nil {
		hour, minute = t.Hour(), t.Minute()
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
