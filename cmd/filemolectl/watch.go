package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filemole/filemole/internal/events"

	"github.com/filemole/filemole"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the startup scan and watch every configured mole until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runWatch(cmd.Context(), cc)
		},
	}
}

func runWatch(ctx context.Context, cc *CLIContext) error {
	pidPath := filepath.Join(cc.Cfg.Storage.DataDir, "filemolectl.pid")

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx := shutdownContext(ctx, cc.Logger)

	fm, err := filemole.Open(runCtx, cc.Cfg, cc.Logger)
	if err != nil {
		return fmt.Errorf("opening filemole: %w", err)
	}
	defer fm.Close()

	if !flagQuiet {
		fm.Subscribe(events.SinkFunc(func(ev events.Event) {
			reportEvent(ev)
		}))
	}

	if err := fm.Run(runCtx); err != nil {
		return fmt.Errorf("starting filemole: %w", err)
	}

	cc.Logger.Info("watching", "moles", len(cc.Cfg.Moles))

	<-runCtx.Done()

	return nil
}

func reportEvent(ev events.Event) {
	fmt.Printf("%s\t%s\t%s\n", ev.Timestamp.Format("15:04:05"), ev.Kind, ev.Path)
}
