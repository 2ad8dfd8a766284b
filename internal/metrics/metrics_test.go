package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jaa/soundgrab/internal/engine"
)

func TestJobLifecycleMetrics(t *testing.T) {
	m := New()

	m.JobStarted("spotdl")
	m.JobStarted("yt-dlp")
	if got := testutil.ToFloat64(m.activeDownloads); got != 2 {
		t.Fatalf("expected 2 active downloads, got %v", got)
	}

	m.JobFinished("spotdl", engine.JobSucceeded, engine.OutcomeArchive, 3*time.Second)
	m.JobFinished("yt-dlp", engine.JobFailed, engine.OutcomeNone, time.Second)

	if got := testutil.ToFloat64(m.activeDownloads); got != 0 {
		t.Fatalf("expected 0 active downloads, got %v", got)
	}
	if got := testutil.ToFloat64(m.downloadsFinished.WithLabelValues("spotdl", "succeeded", "archive")); got != 1 {
		t.Fatalf("expected one archived spotdl job, got %v", got)
	}
	if got := testutil.ToFloat64(m.downloadsFinished.WithLabelValues("yt-dlp", "failed", "none")); got != 1 {
		t.Fatalf("expected one failed yt-dlp job, got %v", got)
	}
}

func TestLoginAndCleanupCounters(t *testing.T) {
	m := New()
	m.LoginAttempt(true)
	m.LoginAttempt(false)
	m.LoginAttempt(false)
	m.Removed("retention")
	m.RemoveFailed("sweep")
	m.FileServed(http.StatusNotFound)

	if got := testutil.ToFloat64(m.logins.WithLabelValues("failure")); got != 2 {
		t.Fatalf("expected 2 failed logins, got %v", got)
	}
	if got := testutil.ToFloat64(m.cleanupRemoved.WithLabelValues("retention")); got != 1 {
		t.Fatalf("expected 1 retention removal, got %v", got)
	}
	if got := testutil.ToFloat64(m.cleanupFailed.WithLabelValues("sweep")); got != 1 {
		t.Fatalf("expected 1 sweep failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.filesServed.WithLabelValues("404")); got != 1 {
		t.Fatalf("expected 1 not-found file request, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.JobStarted("spotdl")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(string(body), `soundgrab_downloads_started_total{adapter="spotdl"} 1`) {
		t.Fatalf("expected download counter in exposition, got:\n%s", body)
	}
}
