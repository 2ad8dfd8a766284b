package cli

import (
	"context"
	"os/signal"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/exitcode"
	"github.com/jaa/soundgrab/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(app *AppContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end and download endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			log := server.NewLogger(cfg.Server.LogLevel, app.IO.Out)
			srv, err := server.New(cfg, log, server.AppOptions{})
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Override server.addr (host:port)")
	return cmd
}
