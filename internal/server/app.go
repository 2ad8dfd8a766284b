package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jaa/soundgrab/internal/adapters/spotdl"
	"github.com/jaa/soundgrab/internal/adapters/ytdlp"
	"github.com/jaa/soundgrab/internal/cleanup"
	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
	"github.com/jaa/soundgrab/internal/metrics"
	"github.com/jaa/soundgrab/internal/session"
)

// App wires config into the HTTP server, the download service and the
// cleanup scheduler, and runs them together.
type App struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	cleanup *cleanup.Scheduler
	server  *Server
}

type AppOptions struct {
	// Runner overrides the subprocess runner, mainly for tests.
	Runner engine.ExecRunner
}

func New(cfg config.Config, log *slog.Logger, opts AppOptions) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.Server.LogLevel, nil)
	}

	for _, dir := range []string{cfg.Storage.DownloadRoot, cfg.Storage.SharedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create download directory %s: %w", dir, err)
		}
	}

	m := metrics.New()
	sched := cleanup.New(cleanup.Options{
		Root:        cfg.Storage.DownloadRoot,
		SharedDir:   cfg.Storage.SharedDir(),
		SweepShared: cfg.Storage.SweepShared,
		Retention:   cfg.Storage.Retention(),
		Interval:    cfg.Storage.SweepInterval(),
		Logger:      log,
		Observer:    m,
	})

	jobs := engine.NewService(engine.ServiceOptions{
		Runner: opts.Runner,
		Selector: engine.Selector{
			Spotify: spotdl.New(cfg.Tools),
			Generic: ytdlp.New(cfg.Tools),
		},
		DownloadRoot: cfg.Storage.DownloadRoot,
		SharedDir:    cfg.Storage.SharedDir(),
		Timeout:      cfg.Tools.CommandTimeout(),
		Cleanup:      sched,
		Observer:     m,
		Logger:       log,
	})

	creds := session.AdminCredentials{
		Username:     cfg.Auth.AdminUsername,
		Password:     cfg.Auth.AdminPassword,
		PasswordHash: cfg.Auth.AdminPasswordHash,
		Logger:       log,
	}
	if !creds.Configured() {
		log.Warn("auth.disabled", "reason", "admin credentials not configured")
	}

	srv := NewServer(Options{
		Logger:       log,
		Sessions:     session.NewManager(session.NewMemoryStore(), creds),
		Jobs:         jobs,
		Metrics:      m,
		DownloadRoot: cfg.Storage.DownloadRoot,
		StaticDir:    cfg.Server.StaticDir,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	return &App{cfg: cfg, log: log, metrics: m, cleanup: sched, server: srv}, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run listens on the configured address and blocks until ctx is done or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln alongside the cleanup loop. Cancelling
// ctx cancels in-flight downloads, drains the server and runs pending
// deletions.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.Server.ReadHeaderTimeout(), 5*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.Server.IdleTimeout(), 60*time.Second),
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	a.log.Info("server.start", "addr", ln.Addr().String(), "download_root", a.cfg.Storage.DownloadRoot, "shared_dir", a.cfg.Storage.SharedDir())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.cleanup.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.Server.ShutdownTimeout(), 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
