package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidgrabber/internal/deps"
	"vidgrabber/internal/httpapi"
	"vidgrabber/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP download service",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.buildServices(false)
			if err != nil {
				return err
			}
			bind := svc.cfg.Server.Bind
			if bindFlag != "" {
				bind = bindFlag
			}

			for _, status := range deps.CheckBinaries(deps.Requirements(svc.cfg.Combiner.FFmpegPath, svc.resolver.BinaryPath()), nil) {
				if !status.Available {
					svc.logger.Warn("dependency unavailable",
						logging.String("dependency", status.Name),
						logging.String("detail", status.Detail),
						logging.String(logging.FieldErrorHint, "install it or set its path in the config file"),
						logging.Event("dependency_missing"),
					)
				}
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			server := httpapi.NewServer(httpapi.Options{
				Bind:          bind,
				StaleAfter:    svc.cfg.StaleAfter(),
				SweepInterval: svc.cfg.SweepInterval(),
			}, svc.pipeline, svc.scratch, svc.logger)
			if err := server.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			svc.logger.Info("shutting down", logging.Event("server_stopping"))
			server.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}
