package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaa/soundgrab/internal/output"
)

const eventBuffer = 64

const (
	MessageCompleted = "Download completed. Files saved to server directory."
	MessageNoAudio   = "Error: No valid audio files found. Please check the link."
)

type JobRequest struct {
	Link          string
	Authenticated bool
}

// Job is one download. Its events are produced by a background goroutine and
// the channel is closed once the job reaches a terminal state.
type Job struct {
	ID            string
	Link          string
	Dir           string
	Authenticated bool

	events chan output.Event
	done   chan struct{}

	mu         sync.Mutex
	state      JobState
	adapter    string
	collection string
	outcome    Outcome
	err        error
}

func (j *Job) Events() <-chan output.Event { return j.events }
func (j *Job) Done() <-chan struct{}       { return j.done }

func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) Collection() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.collection
}

func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Err returns the failure cause for failed and errored jobs.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) setState(state JobState) {
	j.mu.Lock()
	j.state = state
	j.mu.Unlock()
}

type ServiceOptions struct {
	Runner   ExecRunner
	Selector Selector
	// DownloadRoot holds one directory per anonymous job.
	DownloadRoot string
	// SharedDir receives downloads from authenticated sessions.
	SharedDir string
	Timeout   time.Duration
	Cleanup   CleanupScheduler
	Observer  Observer
	Logger    *slog.Logger
	NewID     func() string
}

type Service struct {
	runner       ExecRunner
	selector     Selector
	downloadRoot string
	sharedDir    string
	timeout      time.Duration
	cleanup      CleanupScheduler
	observer     Observer
	logger       *slog.Logger
	newID        func() string
}

func NewService(opts ServiceOptions) *Service {
	s := &Service{
		runner:       opts.Runner,
		selector:     opts.Selector,
		downloadRoot: opts.DownloadRoot,
		sharedDir:    opts.SharedDir,
		timeout:      opts.Timeout,
		cleanup:      opts.Cleanup,
		observer:     opts.Observer,
		logger:       opts.Logger,
		newID:        opts.NewID,
	}
	if s.runner == nil {
		s.runner = NewSubprocessRunner()
	}
	if s.sharedDir == "" {
		s.sharedDir = s.downloadRoot
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

// Start launches a job in the background. The job stops when ctx is done;
// callers must drain Events until it is closed.
func (s *Service) Start(ctx context.Context, req JobRequest) *Job {
	id := s.newID()
	dir := filepath.Join(s.downloadRoot, id)
	if req.Authenticated {
		dir = s.sharedDir
	}

	job := &Job{
		ID:            id,
		Link:          req.Link,
		Dir:           dir,
		Authenticated: req.Authenticated,
		events:        make(chan output.Event, eventBuffer),
		done:          make(chan struct{}),
		state:         JobStarting,
	}
	go s.run(ctx, job)
	return job
}

func (s *Service) run(ctx context.Context, job *Job) {
	started := time.Now()
	adapter := s.selector.Select(job.Link)
	job.mu.Lock()
	job.adapter = adapter.Kind()
	job.mu.Unlock()

	logger := s.logger.With("job_id", job.ID, "adapter", adapter.Kind())
	s.observer.JobStarted(adapter.Kind())

	defer func() {
		state := job.State()
		s.observer.JobFinished(adapter.Kind(), state, job.Outcome(), time.Since(started))
		logger.Info("download.finish", "state", state, "outcome", job.Outcome(), "duration_ms", time.Since(started).Milliseconds())
		close(job.events)
		close(job.done)
	}()

	if s.cleanup != nil {
		release := s.cleanup.Protect(job.Dir)
		defer release()
		if !job.Authenticated {
			defer s.cleanup.ScheduleDelete(job.Dir)
		}
	}

	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		s.fail(ctx, job, JobErrored, fmt.Errorf("create download directory: %w", err))
		return
	}

	spec, err := adapter.BuildExecSpec(ExecRequest{Link: job.Link, OutputDir: job.Dir, Timeout: s.timeout})
	if err != nil {
		s.fail(ctx, job, JobErrored, err)
		return
	}
	logger.Info("download.start", "command", spec.DisplayCommand, "dir", job.Dir, "authenticated", job.Authenticated)

	job.setState(JobStreaming)
	result := s.runner.Run(ctx, spec, func(line string) {
		line = strings.TrimSpace(line)
		if name, _, ok := ParseCollection(line); ok {
			job.mu.Lock()
			job.collection = name
			job.mu.Unlock()
		}
		s.publish(ctx, job, output.Event{Level: output.LevelInfo, Event: output.EventDownloadLine, Message: line})
	})

	switch {
	case result.Err != nil:
		if !errors.Is(result.Err, ErrInterrupted) {
			logger.Warn("download.error", "error", result.Err, "output_tail", result.OutputTail)
		}
		s.fail(ctx, job, JobErrored, result.Err)
		return
	case result.ExitCode != 0:
		logger.Warn("download.exit", "exit_code", result.ExitCode, "output_tail", result.OutputTail)
		s.fail(ctx, job, JobFailed, &ExitError{Code: result.ExitCode})
		return
	}

	pkg, err := Package(PackageOptions{
		Dir:           job.Dir,
		Token:         job.ID,
		Collection:    job.Collection(),
		Authenticated: job.Authenticated,
	})
	if err != nil {
		s.fail(ctx, job, JobErrored, err)
		return
	}

	job.mu.Lock()
	job.state = JobSucceeded
	job.outcome = pkg.Outcome
	job.mu.Unlock()

	details := map[string]any{"files": len(pkg.Files)}
	switch pkg.Outcome {
	case OutcomeEmpty:
		s.publish(ctx, job, output.Event{Level: output.LevelError, Event: output.EventDownloadEmpty, Message: MessageNoAudio, Details: details})
	case OutcomeShared:
		s.publish(ctx, job, output.Event{Level: output.LevelInfo, Event: output.EventDownloadComplete, Message: MessageCompleted, Details: details})
	default:
		s.publish(ctx, job, output.Event{Level: output.LevelInfo, Event: output.EventDownloadReady, Message: "DOWNLOAD: " + pkg.Reference, Details: details})
	}
}

// ExitError reports a downloader that ran but exited non-zero.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Download exited with code %d.", e.Code)
}

func (s *Service) fail(ctx context.Context, job *Job, state JobState, err error) {
	job.mu.Lock()
	job.state = state
	job.err = err
	job.mu.Unlock()

	name := output.EventDownloadErrored
	if state == JobFailed {
		name = output.EventDownloadFailed
	}
	s.publish(ctx, job, output.Event{Level: output.LevelError, Event: name, Message: "Error: " + err.Error()})
}

func (s *Service) publish(ctx context.Context, job *Job, event output.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.JobID = job.ID
	select {
	case job.events <- event:
	case <-ctx.Done():
	}
}
