package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
	"github.com/jaa/soundgrab/internal/exitcode"
	"github.com/jaa/soundgrab/internal/output"
	"github.com/jaa/soundgrab/internal/server"
	"github.com/spf13/cobra"
)

func newFetchCommand(app *AppContext) *cobra.Command {
	var dir string
	var timeout time.Duration
	var packageFiles bool

	cmd := &cobra.Command{
		Use:   "fetch <link>",
		Short: "Download one link locally without the web server",
		Long:  "fetch runs the same downloader selection as the web endpoint. Files land in the shared directory unless --package is set, in which case they are collected in a per-job directory and zipped when there is more than one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := strings.TrimSpace(args[0])
			if link == "" {
				return withExitCode(exitcode.InvalidUsage, errors.New("link must not be empty"))
			}

			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if strings.TrimSpace(dir) != "" {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
				if expanded, err = filepath.Abs(expanded); err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
				cfg.Storage.DownloadRoot = expanded
				cfg.Storage.AudioDownloadPath = ""
			}
			if timeout > 0 {
				cfg.Tools.CommandTimeoutSeconds = int(timeout.Round(time.Second) / time.Second)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			for _, d := range []string{cfg.Storage.DownloadRoot, cfg.Storage.SharedDir()} {
				if err := os.MkdirAll(d, 0o755); err != nil {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create download directory %s: %w", d, err))
				}
			}

			var emitter output.EventEmitter
			if app.Opts.JSON {
				emitter = output.NewJSONEmitter(app.IO.Out)
			} else {
				emitter = output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet)
			}

			service := engine.NewService(engine.ServiceOptions{
				Selector:     selectorFor(cfg),
				DownloadRoot: cfg.Storage.DownloadRoot,
				SharedDir:    cfg.Storage.SharedDir(),
				Timeout:      cfg.Tools.CommandTimeout(),
				Logger:       server.NewLogger("error", app.IO.ErrOut),
			})

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			job := service.Start(ctx, engine.JobRequest{Link: link, Authenticated: !packageFiles})
			for event := range job.Events() {
				if err := emitter.Emit(event); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			}
			<-job.Done()

			if job.State() == engine.JobSucceeded && job.Outcome() != engine.OutcomeEmpty && !app.Opts.JSON && !app.Opts.Quiet {
				fmt.Fprintf(app.IO.Out, "Saved to: %s\n", job.Dir)
			}
			return fetchExitError(job)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Download into this directory instead of the configured one")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the downloader timeout (e.g. 10m)")
	cmd.Flags().BoolVar(&packageFiles, "package", false, "Collect files in a per-job directory and zip multi-file results")
	return cmd
}

func fetchExitError(job *engine.Job) error {
	switch job.State() {
	case engine.JobSucceeded:
		if job.Outcome() == engine.OutcomeEmpty {
			return withExitCode(exitcode.PartialSuccess, errors.New("fetch finished without audio files"))
		}
		return nil
	case engine.JobFailed:
		var exitErr *engine.ExitError
		if errors.As(job.Err(), &exitErr) && exitErr.Code == 127 {
			return withExitCode(exitcode.MissingDependency, job.Err())
		}
		return withExitCode(exitcode.RuntimeFailure, job.Err())
	default:
		err := job.Err()
		switch {
		case errors.Is(err, engine.ErrInterrupted):
			return withExitCode(exitcode.Interrupted, err)
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return withExitCode(exitcode.MissingDependency, err)
		}
		return withExitCode(exitcode.RuntimeFailure, err)
	}
}
