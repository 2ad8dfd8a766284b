package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

type EventEmitter interface {
	Emit(event Event) error
}

type JSONEmitter struct {
	enc *json.Encoder
	mu  sync.Mutex
}

func NewJSONEmitter(w io.Writer) *JSONEmitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONEmitter{enc: enc}
}

func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(event)
}

type HumanEmitter struct {
	stdout io.Writer
	stderr io.Writer
	quiet  bool
}

func NewHumanEmitter(stdout, stderr io.Writer, quiet bool) *HumanEmitter {
	return &HumanEmitter{stdout: stdout, stderr: stderr, quiet: quiet}
}

func (e *HumanEmitter) Emit(event Event) error {
	line := event.Message
	if line == "" {
		line = string(event.Event)
	}

	switch event.Level {
	case LevelError:
		_, err := fmt.Fprintln(e.stderr, "ERROR:", strings.TrimPrefix(line, "Error: "))
		return err
	case LevelWarn:
		if e.quiet {
			return nil
		}
		_, err := fmt.Fprintln(e.stderr, "WARN:", line)
		return err
	default:
		if e.quiet && !event.Terminal() {
			return nil
		}
		_, err := fmt.Fprintln(e.stdout, line)
		return err
	}
}

// SSEEmitter writes events as server-sent event frames, flushing after each
// one when the writer supports it.
type SSEEmitter struct {
	w  io.Writer
	mu sync.Mutex
}

type flusher interface {
	Flush()
}

func NewSSEEmitter(w io.Writer) *SSEEmitter {
	return &SSEEmitter{w: w}
}

func (e *SSEEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := io.WriteString(e.w, FormatSSE(event.Message)); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// FormatSSE frames a message as one SSE event. Embedded newlines become
// additional data lines so the frame boundary stays intact.
func FormatSSE(message string) string {
	message = strings.ReplaceAll(message, "\r\n", "\n")
	message = strings.ReplaceAll(message, "\r", "\n")

	var b strings.Builder
	for _, line := range strings.Split(message, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// LogEmitter mirrors events into a structured logger. Subprocess lines are
// logged at debug level.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(event Event) error {
	if e.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	switch {
	case event.Event == EventDownloadLine:
		level = slog.LevelDebug
	case event.Level == LevelWarn:
		level = slog.LevelWarn
	case event.Level == LevelError:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("job_id", event.JobID),
		slog.String("message", event.Message),
	}
	for key, value := range event.Details {
		attrs = append(attrs, slog.Any(key, value))
	}
	e.logger.LogAttrs(context.Background(), level, "download."+strings.TrimPrefix(string(event.Event), "download_"), attrs...)
	return nil
}

type MultiEmitter struct {
	emitters []EventEmitter
}

func NewMultiEmitter(emitters ...EventEmitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (e *MultiEmitter) Emit(event Event) error {
	for _, emitter := range e.emitters {
		if err := emitter.Emit(event); err != nil {
			return err
		}
	}
	return nil
}
