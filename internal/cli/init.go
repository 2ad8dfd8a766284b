package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/exitcode"
	"github.com/spf13/cobra"
)

func newInitCommand(app *AppContext) *cobra.Command {
	force := false
	mkdir := false

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(app.Opts.ConfigPath)
			if path == "" {
				userPath, err := config.UserConfigPath()
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				path = userPath
			}

			if err := config.EnsureConfigDir(path); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if _, err := os.Stat(path); err == nil && !force {
				if app.Opts.NoInput || !isTTY(os.Stdin) {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("config already exists at %s (rerun with --force)", path))
				}
				confirmed, confirmErr := promptYesNo(app, fmt.Sprintf("Config already exists at %s. Overwrite?", path))
				if confirmErr != nil {
					return withExitCode(exitcode.RuntimeFailure, confirmErr)
				}
				if !confirmed {
					fmt.Fprintln(app.IO.Out, "Initialization canceled.")
					return nil
				}
			}

			if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o600); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("write config file: %w", err))
			}

			fmt.Fprintf(app.IO.Out, "Wrote config: %s\n", path)

			if mkdir {
				cfg, err := config.Load(config.LoadOptions{ExplicitPath: path})
				if err != nil {
					return withExitCode(exitcode.InvalidConfig, err)
				}
				for _, dir := range []string{cfg.Storage.DownloadRoot, cfg.Storage.SharedDir()} {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create download directory %s: %w", dir, err))
					}
					fmt.Fprintf(app.IO.Out, "Ensured download dir: %s\n", dir)
				}
			}
			fmt.Fprintln(app.IO.Out, "Set ADMIN_USERNAME and ADMIN_PASSWORD_HASH (soundgrab hash-password) to enable login.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().BoolVar(&mkdir, "mkdir", false, "Also create the configured download directories")
	return cmd
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
