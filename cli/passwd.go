package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewPasswdCmd creates the "passwd" subcommand group.
func NewPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change or recover the account password",
	}

	cmd.AddCommand(newPasswdChangeCmd())
	cmd.AddCommand(newPasswdForgotCmd())
	cmd.AddCommand(newPasswdResetCmd())

	return cmd
}

func newPasswdChangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change",
		Short: "Change the password of the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := promptPassword(cmd, "Current password: ")
			if err != nil {
				return err
			}
			next, err := promptPassword(cmd, "New password: ")
			if err != nil {
				return err
			}

			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Session().ChangePassword(cmd.Context(), current, next); err != nil {
				return exitError(exitAuth, "%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
}

func newPasswdForgotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot <email>",
		Short: "Request a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			email := strings.TrimSpace(args[0])
			if err := app.Session().ForgotPassword(cmd.Context(), email); err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset link sent to %s\n", email)
			return nil
		},
	}
}

func newPasswdResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <token>",
		Short: "Set a new password using a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd, "New password: ")
			if err != nil {
				return err
			}

			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Session().ResetPassword(cmd.Context(), strings.TrimSpace(args[0]), password); err != nil {
				return exitError(exitAuth, "%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password reset")
			return nil
		},
	}
}
