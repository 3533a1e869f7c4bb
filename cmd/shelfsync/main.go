package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelf-labs/shelfsync/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shelfsync",
	Short: "Online library client CLI",
	Long:  "shelfsync — a client for browsing, mutating, and watching an online library service.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to shelfsync.yaml config")
	rootCmd.PersistentFlags().String("base-url", "", "HTTP API base URL (overrides config)")
	rootCmd.PersistentFlags().String("socket-url", "", "Notification socket URL (overrides config)")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP trace endpoint (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("shelfsync version %s\n", version))

	rootCmd.AddCommand(cli.NewLoginCmd())
	rootCmd.AddCommand(cli.NewLogoutCmd())
	rootCmd.AddCommand(cli.NewRegisterCmd())
	rootCmd.AddCommand(cli.NewWhoamiCmd())
	rootCmd.AddCommand(cli.NewPasswdCmd())
	rootCmd.AddCommand(cli.NewBooksCmd())
	rootCmd.AddCommand(cli.NewWatchCmd())
}
