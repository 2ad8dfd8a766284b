package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version/build metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(app.Build)
			}
			printVersion(app)
			return nil
		},
	}
}
