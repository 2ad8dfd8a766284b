package engine

import (
	"errors"
	"time"
)

var (
	ErrInterrupted = errors.New("download interrupted")
	ErrTimedOut    = errors.New("download timed out")
)

type ExecSpec struct {
	Bin            string
	Args           []string
	Dir            string
	Timeout        time.Duration
	DisplayCommand string
}

// ExecResult describes a finished subprocess. Err is set only when the
// process could not be started, read, or reaped; a plain non-zero exit is
// reported through ExitCode alone.
type ExecResult struct {
	ExitCode    int
	Duration    time.Duration
	Interrupted bool
	TimedOut    bool
	OutputTail  string
	Err         error
}

// ExecRequest carries what an adapter needs to build one download command.
type ExecRequest struct {
	Link      string
	OutputDir string
	Timeout   time.Duration
}

type Adapter interface {
	Kind() string
	Binary() string
	MinVersion() string
	BuildExecSpec(req ExecRequest) (ExecSpec, error)
}

type JobState string

const (
	JobStarting  JobState = "starting"
	JobStreaming JobState = "streaming"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobErrored   JobState = "errored"
)

func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobErrored
}

// Observer receives job lifecycle notifications, typically for metrics.
type Observer interface {
	JobStarted(adapter string)
	JobFinished(adapter string, state JobState, outcome Outcome, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) JobStarted(string)                                    {}
func (nopObserver) JobFinished(string, JobState, Outcome, time.Duration) {}

// CleanupScheduler is the part of the cleanup registry a job needs.
type CleanupScheduler interface {
	ScheduleDelete(dir string)
	Protect(dir string) (release func())
}
