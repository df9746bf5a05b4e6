package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filemole/filemole"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search the index for entries whose path contains term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return runSearch(cmd.Context(), cc, args[0])
		},
	}
}

func runSearch(ctx context.Context, cc *CLIContext, term string) error {
	fm, err := filemole.Open(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return fmt.Errorf("opening filemole: %w", err)
	}
	defer fm.Close()

	entries, err := fm.Search(ctx, term)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	for _, e := range entries {
		fmt.Println(e.FullPath())
	}

	return nil
}
