package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/exitcode"
	"github.com/spf13/cobra"
)

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the merged config (files plus environment)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"valid":         true,
					"download_root": cfg.Storage.DownloadRoot,
					"shared_dir":    cfg.Storage.SharedDir(),
					"auth_enabled":  cfg.Auth.CredentialsConfigured(),
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				fmt.Fprintln(app.IO.Out, "Config is valid.")
			}
			return nil
		},
	}
}
