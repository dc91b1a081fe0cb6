package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale files from the scratch directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.buildServices(true)
			if err != nil {
				return err
			}
			maxAge := svc.cfg.StaleAfter()
			if olderThan > 0 {
				maxAge = olderThan
			}

			result, err := svc.scratch.Sweep(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintln(out, "Another process is sweeping the scratch directory; nothing done.")
				return nil
			}

			rows := [][]string{
				{"Directory", svc.scratch.Dir()},
				{"Removed", fmt.Sprintf("%d", len(result.Removed))},
				{"Kept", fmt.Sprintf("%d", result.Kept)},
				{"Errors", fmt.Sprintf("%d", len(result.Errors))},
			}
			fmt.Fprintln(out, renderTable([]string{"Sweep", "Result"}, rows, []columnAlignment{alignLeft, alignRight}))
			if len(result.Errors) > 0 {
				return fmt.Errorf("failed to remove %d stale file(s), first: %s: %v", len(result.Errors), result.Errors[0].Path, result.Errors[0].Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override scratch.stale_after_minutes")
	return cmd
}
