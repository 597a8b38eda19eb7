package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"bento/internal/app"
	"bento/pkg/logging"
)

func newStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running cluster",
		Long: `Sends SIGTERM to the bento process recorded in the state directory's lock
file and waits until that process has shut the cluster down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelFromEnv(logging.LevelInfo)
			if debug {
				level = logging.LevelDebug
			}
			logging.InitForCLI(level, cmd.ErrOrStderr())

			dir := stateDir()
			if dir == "" {
				return app.ErrNoStateDir
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return app.StopRunning(ctx, dir)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long to wait for the cluster to stop")
	return cmd
}
