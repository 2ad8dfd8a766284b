package output

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestJSONEmitterSerializesEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	emitter := NewJSONEmitter(buf)

	event := Event{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     LevelInfo,
		Event:     EventDownloadReady,
		JobID:     "job-1",
		Message:   "DOWNLOAD: job-1/playlist.zip",
		Details: map[string]any{
			"files": 3,
		},
	}

	if err := emitter.Emit(event); err != nil {
		t.Fatalf("emit: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}

	if decoded["event"] != string(EventDownloadReady) {
		t.Fatalf("unexpected event name: %v", decoded["event"])
	}
	if decoded["message"] != "DOWNLOAD: job-1/playlist.zip" {
		t.Fatalf("unexpected message: %v", decoded["message"])
	}
	if decoded["job_id"] != "job-1" {
		t.Fatalf("unexpected job id: %v", decoded["job_id"])
	}
}

func TestSSEEmitterWritesFramesAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	emitter := NewSSEEmitter(rec)

	for _, msg := range []string{"Found 2 songs in Blue (Album)", "DOWNLOAD: abc/Blue.zip"} {
		if err := emitter.Emit(Event{Event: EventDownloadLine, Message: msg}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	want := "data: Found 2 songs in Blue (Album)\n\ndata: DOWNLOAD: abc/Blue.zip\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected body. got=%q want=%q", rec.Body.String(), want)
	}
	if !rec.Flushed {
		t.Fatalf("expected recorder to be flushed")
	}
}

func TestFormatSSESplitsEmbeddedNewlines(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "data: \n\n"},
		{"one", "data: one\n\n"},
		{"one\ntwo", "data: one\ndata: two\n\n"},
		{"one\r\ntwo", "data: one\ndata: two\n\n"},
	}
	for _, tc := range cases {
		if got := FormatSSE(tc.in); got != tc.want {
			t.Fatalf("FormatSSE(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHumanEmitterRoutesByLevel(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	emitter := NewHumanEmitter(stdout, stderr, true)

	_ = emitter.Emit(Event{Level: LevelInfo, Event: EventDownloadLine, Message: "noise"})
	_ = emitter.Emit(Event{Level: LevelInfo, Event: EventDownloadComplete, Message: "done"})
	_ = emitter.Emit(Event{Level: LevelError, Event: EventDownloadFailed, Message: "Error: Download exited with code 1."})

	if stdout.String() != "done\n" {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
	if stderr.String() != "ERROR: Download exited with code 1.\n" {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	a := &bytes.Buffer{}
	b := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := NewMultiEmitter(NewSSEEmitter(a), NewSSEEmitter(b), NewLogEmitter(logger))

	if err := emitter.Emit(Event{Event: EventDownloadLine, Message: "hi"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if a.String() != "data: hi\n\n" || b.String() != a.String() {
		t.Fatalf("expected both emitters to receive the frame, got %q and %q", a.String(), b.String())
	}
}

func TestTerminalEvents(t *testing.T) {
	if (Event{Event: EventDownloadLine}).Terminal() {
		t.Fatalf("line events must not be terminal")
	}
	for _, name := range []EventName{EventDownloadReady, EventDownloadComplete, EventDownloadEmpty, EventDownloadFailed, EventDownloadErrored} {
		if !(Event{Event: name}).Terminal() {
			t.Fatalf("expected %s to be terminal", name)
		}
	}
}
