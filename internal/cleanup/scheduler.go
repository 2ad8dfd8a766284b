package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaa/soundgrab/internal/fileops"
)

type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

type Observer interface {
	Removed(reason string)
	RemoveFailed(reason string)
}

const (
	ReasonRetention = "retention"
	ReasonSweep     = "sweep"
	ReasonShutdown  = "shutdown"
)

type Options struct {
	// Root is the download root the sweep empties.
	Root string
	// SharedDir is where authenticated downloads live. The sweep leaves it
	// alone unless SweepShared is set.
	SharedDir   string
	SweepShared bool
	Retention   time.Duration
	Interval    time.Duration
	Logger      *slog.Logger
	Observer    Observer
	AfterFunc   AfterFunc
}

// Scheduler owns every deferred directory deletion plus the periodic sweep
// of the download root, so both stop with the service.
type Scheduler struct {
	root        string
	sharedDir   string
	sweepShared bool
	retention   time.Duration
	interval    time.Duration
	logger      *slog.Logger
	observer    Observer
	afterFunc   AfterFunc

	mu        sync.Mutex
	pending   map[string]Timer
	protected map[string]int
	closed    bool
}

type SweepReport struct {
	Removed int
	Skipped int
	Failed  int
}

func New(opts Options) *Scheduler {
	s := &Scheduler{
		root:        filepath.Clean(opts.Root),
		sweepShared: opts.SweepShared,
		retention:   opts.Retention,
		interval:    opts.Interval,
		logger:      opts.Logger,
		observer:    opts.Observer,
		afterFunc:   opts.AfterFunc,
		pending:     map[string]Timer{},
		protected:   map[string]int{},
	}
	if opts.SharedDir != "" {
		s.sharedDir = filepath.Clean(opts.SharedDir)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.afterFunc == nil {
		s.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return s
}

// ScheduleDelete removes dir once the retention window has passed. Scheduling
// an already pending dir restarts its window. After Close, dir is removed
// right away.
func (s *Scheduler) ScheduleDelete(dir string) {
	dir = filepath.Clean(dir)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.remove(dir, ReasonShutdown)
		return
	}
	if existing, ok := s.pending[dir]; ok {
		existing.Stop()
	}
	var timer Timer
	timer = s.afterFunc(s.retention, func() {
		s.mu.Lock()
		if current, ok := s.pending[dir]; !ok || current != timer {
			s.mu.Unlock()
			return
		}
		delete(s.pending, dir)
		s.mu.Unlock()
		s.remove(dir, ReasonRetention)
	})
	s.pending[dir] = timer
	s.mu.Unlock()

	s.logger.Debug("cleanup.scheduled", "dir", dir, "retention", s.retention.String())
}

// Protect keeps dir out of the sweep until the returned func is called.
func (s *Scheduler) Protect(dir string) func() {
	dir = filepath.Clean(dir)
	s.mu.Lock()
	s.protected[dir]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.protected[dir] <= 1 {
				delete(s.protected, dir)
				return
			}
			s.protected[dir]--
		})
	}
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush runs every pending deletion now.
func (s *Scheduler) Flush() {
	s.flush(ReasonRetention)
}

func (s *Scheduler) flush(reason string) {
	s.mu.Lock()
	dirs := make([]string, 0, len(s.pending))
	for dir, timer := range s.pending {
		timer.Stop()
		dirs = append(dirs, dir)
	}
	s.pending = map[string]Timer{}
	s.mu.Unlock()

	for _, dir := range dirs {
		s.remove(dir, reason)
	}
}

// Sweep removes the entries directly under the download root. In-flight
// job directories are always skipped; authenticated storage is skipped
// unless sweeping it was enabled, in which case everything goes.
func (s *Scheduler) Sweep() SweepReport {
	report := SweepReport{}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("cleanup.sweep.read_fail", "root", s.root, "error", err)
		return report
	}

	for _, entry := range entries {
		path := filepath.Join(s.root, entry.Name())
		if s.skip(path, entry) {
			report.Skipped++
			continue
		}
		if err := fileops.RemoveTree(path); err != nil {
			report.Failed++
			s.observer.RemoveFailed(ReasonSweep)
			s.logger.Warn("cleanup.sweep.fail", "path", path, "error", err)
			continue
		}
		report.Removed++
		s.observer.Removed(ReasonSweep)
		s.logger.Info("cleanup.sweep.removed", "path", path)
	}
	s.logger.Info("cleanup.sweep.done", "root", s.root, "removed", report.Removed, "skipped", report.Skipped, "failed", report.Failed)
	return report
}

func (s *Scheduler) skip(path string, entry os.DirEntry) bool {
	s.mu.Lock()
	protected := s.protected[path] > 0
	s.mu.Unlock()
	if protected {
		return true
	}
	if s.sweepShared {
		return false
	}
	if s.sharedDir != "" && path == s.sharedDir {
		return true
	}
	// Anonymous job directories are named by their UUID token. Anything
	// else under the root belongs to authenticated storage.
	if !entry.IsDir() {
		return true
	}
	_, err := uuid.Parse(entry.Name())
	return err != nil
}

// Run sweeps every interval until ctx is done, then closes the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.Close()
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops all timers and runs their deletions immediately. Later
// ScheduleDelete calls delete synchronously.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.flush(ReasonShutdown)
}

func (s *Scheduler) remove(dir string, reason string) {
	if err := fileops.RemoveTree(dir); err != nil {
		s.observer.RemoveFailed(reason)
		s.logger.Debug("cleanup.remove.fail", "dir", dir, "reason", reason, "error", err)
		return
	}
	s.observer.Removed(reason)
	s.logger.Debug("cleanup.removed", "dir", dir, "reason", reason)
}

type nopObserver struct{}

func (nopObserver) Removed(string)      {}
func (nopObserver) RemoveFailed(string) {}
