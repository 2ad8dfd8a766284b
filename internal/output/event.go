package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventDownloadStarted  EventName = "download_started"
	EventDownloadLine     EventName = "download_line"
	EventDownloadReady    EventName = "download_ready"
	EventDownloadComplete EventName = "download_complete"
	EventDownloadEmpty    EventName = "download_empty"
	EventDownloadFailed   EventName = "download_failed"
	EventDownloadErrored  EventName = "download_errored"
)

// Event is one message of a download job. Message is the exact text the
// browser receives as an SSE data payload.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	JobID     string         `json:"job_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Terminal reports whether the event ends a job's stream.
func (e Event) Terminal() bool {
	switch e.Event {
	case EventDownloadReady, EventDownloadComplete, EventDownloadEmpty, EventDownloadFailed, EventDownloadErrored:
		return true
	default:
		return false
	}
}
