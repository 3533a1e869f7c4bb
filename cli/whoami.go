package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the "whoami" subcommand.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved session identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			identity := app.Session().Identity()
			if identity == nil {
				return exitError(exitAuth, "not logged in")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:   %s\n", identity.Name)
			fmt.Fprintf(out, "Email:  %s\n", identity.Email)
			fmt.Fprintf(out, "Role:   %s\n", identity.Role)
			if identity.MembershipStartDate != "" {
				fmt.Fprintf(out, "Member: %s to %s\n", identity.MembershipStartDate, identity.MembershipEndDate)
			}
			return nil
		},
	}
}
