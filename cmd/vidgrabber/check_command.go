package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidgrabber/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether ffmpeg and yt-dlp are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.buildServices(true)
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(svc.cfg.Combiner.FFmpegPath, svc.resolver.BinaryPath()), nil)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				location := s.Resolved
				if !s.Available {
					location = s.Detail
				}
				rows = append(rows, []string{s.Name, yesNo(s.Available), s.Command, location, s.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Available", "Command", "Location", "Purpose"}, rows, nil))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("missing dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
