package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jaa/soundgrab/internal/engine"
	"github.com/jaa/soundgrab/internal/fileops"
	"github.com/jaa/soundgrab/internal/metrics"
	"github.com/jaa/soundgrab/internal/session"
)

const downloadsPrefix = "/downloads/"

type Options struct {
	Logger       *slog.Logger
	Sessions     *session.Manager
	Jobs         *engine.Service
	Metrics      *metrics.Metrics
	DownloadRoot string
	StaticDir    string
	CookieName   string
	CookieSecure bool
}

// Server holds the HTTP handlers. It owns no goroutines; App runs it.
type Server struct {
	log          *slog.Logger
	sessions     *session.Manager
	jobs         *engine.Service
	metrics      *metrics.Metrics
	downloadRoot string
	staticDir    string
	cookieName   string
	cookieSecure bool
}

func NewServer(opts Options) *Server {
	s := &Server{
		log:          opts.Logger,
		sessions:     opts.Sessions,
		jobs:         opts.Jobs,
		metrics:      opts.Metrics,
		downloadRoot: opts.DownloadRoot,
		staticDir:    opts.StaticDir,
		cookieName:   opts.CookieName,
		cookieSecure: opts.CookieSecure,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.cookieName == "" {
		s.cookieName = "session"
	}
	return s
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /check-login", s.handleCheckLogin)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /downloads/{token}/{path...}", s.handleFile)

	mux.Handle("GET /", s.staticHandler())
}

// Handler returns the routed mux wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return WithRequestLogging(s.rejectParentSegments(mux), s.log)
}

// rejectParentSegments answers file requests containing ".." with 400
// before ServeMux cleans the path and redirects to the collapsed one.
func (s *Server) rejectParentSegments(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, downloadsPrefix) || strings.HasPrefix(r.URL.EscapedPath(), downloadsPrefix) {
			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.EscapedPath(), "..") {
				s.fileStatus(w, http.StatusBadRequest, "Invalid filename")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := fileops.CheckWritable(s.downloadRoot); err != nil {
		s.log.Info("readyz.not_ready", "error", err)
		http.Error(w, "download root not writable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
