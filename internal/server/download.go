package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jaa/soundgrab/internal/engine"
	"github.com/jaa/soundgrab/internal/output"
)

type downloadError struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

// handleDownload streams a download job as server-sent events. The job is
// bound to the request: a client that goes away stops the downloader.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	link := strings.TrimSpace(r.URL.Query().Get("spotify_link"))
	if link == "" {
		writeJSON(w, http.StatusBadRequest, downloadError{Status: "error", Output: "No link provided"})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	job := s.jobs.Start(ctx, engine.JobRequest{Link: link, Authenticated: s.loggedIn(r)})
	log := s.log.With("request_id", RequestID(r.Context()), "job_id", job.ID)
	emitter := output.NewMultiEmitter(output.NewLogEmitter(log), output.NewSSEEmitter(w))

	for event := range job.Events() {
		if err := emitter.Emit(event); err != nil {
			log.Info("download.client_gone", "error", err)
			cancel()
			for range job.Events() {
			}
			return
		}
	}
}
