// Package backup writes periodic full copies of the state document to a
// rotating directory.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/clock"
	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/state"
	"github.com/jensholdgaard/trinity/internal/telemetry"
)

const ext = ".json"

// Scheduler snapshots the state document every backup_time seconds and keeps
// the newest `backups` files.
type Scheduler struct {
	state   *state.Store
	dir     string
	events  event.Store
	clock   clock.Clock
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	mu   sync.Mutex
	next time.Time
}

// NewScheduler returns a Scheduler writing into dir. metrics may be nil.
func NewScheduler(st *state.Store, dir string, events event.Store, clk clock.Clock, metrics *telemetry.Metrics, logger *slog.Logger, tp trace.TracerProvider) *Scheduler {
	return &Scheduler{
		state:   st,
		dir:     dir,
		events:  events,
		clock:   clk,
		metrics: metrics,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/trinity/internal/backup"),
	}
}

// Run writes a backup immediately and then once per interval until ctx is
// done. The interval is re-read from the settings after every backup.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if _, err := s.Once(ctx); err != nil {
			s.logger.ErrorContext(ctx, "backup failed", slog.Any("error", err))
		}

		fire := make(chan struct{})
		timer := s.clock.AfterFunc(s.schedule(), func() { close(fire) })
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-fire:
		}
	}
}

// schedule computes and stores the next backup time.
func (s *Scheduler) schedule() time.Duration {
	interval := s.interval()
	s.mu.Lock()
	s.next = s.clock.Now().Add(interval)
	s.mu.Unlock()
	return interval
}

func (s *Scheduler) interval() time.Duration {
	var d time.Duration
	_ = s.state.View(func(doc *game.Document) error {
		d = doc.BackupInterval()
		return nil
	})
	if d <= 0 {
		d = time.Duration(game.DefaultSettings().BackupTime) * time.Second
	}
	return d
}

// Next returns the time of the next scheduled backup. It is zero before Run
// has written its first backup.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Once writes a single backup, prunes old ones and returns the new file path.
func (s *Scheduler) Once(ctx context.Context) (path string, err error) {
	ctx, span := s.tracer.Start(ctx, "Scheduler.Once", trace.WithAttributes(attribute.String("dir", s.dir)))
	defer span.End()
	defer func() {
		s.metrics.Backup(ctx, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	b, err := s.state.Snapshot()
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	var keep int
	_ = s.state.View(func(doc *game.Document) error {
		keep = doc.Backups
		return nil
	})

	now := s.clock.Now()
	path = filepath.Join(s.dir, strconv.FormatInt(now.Unix(), 10)+ext)
	if err := state.WriteFile(path, b); err != nil {
		return "", err
	}
	removed, err := s.prune(max(keep, 1))
	if err != nil {
		return path, fmt.Errorf("pruning backups: %w", err)
	}

	if err := s.events.Append(ctx, event.New("backup", event.BackupWritten, event.ChangeData{Key: filepath.Base(path), Value: strconv.Itoa(len(b))}, now)); err != nil {
		s.logger.ErrorContext(ctx, "failed to append backup event", slog.Any("error", err))
	}
	s.logger.InfoContext(ctx, "backup written",
		slog.String("path", path),
		slog.Int("bytes", len(b)),
		slog.Int("pruned", removed),
	)
	return path, nil
}

// List returns the backup files in dir, oldest first.
func (s *Scheduler) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}
	type stamped struct {
		name string
		at   int64
	}
	var files []stamped
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		at, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), ext), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, stamped{name: e.Name(), at: at})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].at < files[j].at })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Join(s.dir, f.name)
	}
	return out, nil
}

func (s *Scheduler) prune(keep int) (int, error) {
	files, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(files)-removed > keep {
		if err := os.Remove(files[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
