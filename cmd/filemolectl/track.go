package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filemole/filemole"
)

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Enable, disable, or report content tracking for a path",
	}

	cmd.AddCommand(newTrackEnableCmd())
	cmd.AddCommand(newTrackDisableCmd())
	cmd.AddCommand(newTrackStatusCmd())

	return cmd
}

func newTrackEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <path>",
		Short: "Enable content tracking for path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return withFileMole(cmd.Context(), cc, func(ctx context.Context, fm *filemole.FileMole) error {
				return fm.EnableTracking(ctx, args[0])
			})
		},
	}
}

func newTrackDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <path>",
		Short: "Disable content tracking for path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return withFileMole(cmd.Context(), cc, func(ctx context.Context, fm *filemole.FileMole) error {
				return fm.DisableTracking(ctx, args[0])
			})
		},
	}
}

func newTrackStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <path>",
		Short: "Report whether path currently has content tracking enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return withFileMole(cmd.Context(), cc, func(ctx context.Context, fm *filemole.FileMole) error {
				fmt.Printf("%s: tracked=%t\n", args[0], fm.IsTracked(args[0]))
				return nil
			})
		},
	}
}

// withFileMole opens a FileMole instance for the duration of fn. Each
// subcommand invocation is its own process, so there is no long-lived
// instance to share across track enable/disable/status calls.
func withFileMole(ctx context.Context, cc *CLIContext, fn func(context.Context, *filemole.FileMole) error) error {
	fm, err := filemole.Open(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return fmt.Errorf("opening filemole: %w", err)
	}
	defer fm.Close()

	return fn(ctx, fm)
}
