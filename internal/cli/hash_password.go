package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jaa/soundgrab/internal/exitcode"
	"github.com/jaa/soundgrab/internal/session"
	"github.com/spf13/cobra"
)

func newHashPasswordCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print an ADMIN_PASSWORD_HASH value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Opts.Quiet && !app.Opts.NoInput {
				fmt.Fprint(app.IO.ErrOut, "Password: ")
			}
			line, err := bufio.NewReader(app.IO.In).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("read password: %w", err))
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return withExitCode(exitcode.InvalidUsage, errors.New("password must not be empty"))
			}

			hash, err := session.HashPassword(password, session.DefaultArgon2idParams())
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			fmt.Fprintln(app.IO.Out, hash)
			return nil
		},
	}
}
