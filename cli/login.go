package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the "login" subcommand.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate and store the session credential",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}

	cmd.Flags().String("password", "", "Password (prompted when omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := strings.TrimSpace(args[0])
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		var err error
		password, err = promptPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
	}

	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.Session().Login(cmd.Context(), email, password); err != nil {
		return exitError(exitAuth, "%v", err)
	}

	identity := app.Session().Identity()
	if identity != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", identity.Name, identity.Email)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
	}
	return nil
}

// promptPassword reads a password from the terminal without echo. It falls
// back to a plain line read when stdin is not a terminal (piped input).
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return line, nil
}
