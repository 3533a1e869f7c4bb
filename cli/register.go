package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelf-labs/shelfsync/session"
)

// NewRegisterCmd creates the "register" subcommand.
func NewRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and start a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegister,
	}

	cmd.Flags().String("name", "", "Display name (required)")
	cmd.Flags().String("password", "", "Password (prompted when omitted)")

	return cmd
}

func runRegister(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	if strings.TrimSpace(name) == "" {
		return exitError(exitUsage, "--name is required")
	}
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

	input := session.RegisterInput{
		Name:     name,
		Email:    strings.TrimSpace(args[0]),
		Password: password,
	}
	if err := app.Session().Register(cmd.Context(), input); err != nil {
		return exitError(exitAuth, "%v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", input.Email)
	return nil
}
