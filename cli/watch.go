package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shelf-labs/shelfsync/notify"
)

// NewWatchCmd creates the "watch" subcommand.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream library notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}

	cmd.Flags().Int("recent", 0, "Print up to N buffered notifications before streaming")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	channel := app.Notifications()
	if channel == nil {
		return exitError(exitUsage, "no socket URL configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := channel.Connect(ctx); err != nil {
		if errors.Is(err, notify.ErrNoCredential) {
			return exitError(exitAuth, "not logged in")
		}
		return exitError(exitRuntime, "connecting notification channel: %v", err)
	}

	recent, _ := cmd.Flags().GetInt("recent")
	if recent > 0 {
		buffered := channel.Recent()
		if len(buffered) > recent {
			buffered = buffered[:recent]
		}
		// Buffered events are newest first; print oldest first.
		for i := len(buffered) - 1; i >= 0; i-- {
			fmt.Fprintln(cmd.OutOrStdout(), buffered[i].Display())
		}
	}

	sub := channel.Subscribe()
	defer sub.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "Watching for notifications...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), event.Display())
		}
	}
}
