package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidgrabber/internal/httpapi"
)

func newGrabCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "grab <url>",
		Short: "Download and combine one item into a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, err := httpapi.ValidateReference(args[0])
			if err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}
			svc, err := ctx.buildServices(true)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome, cleanup := svc.pipeline.Run(signalCtx, reference)
			defer cleanup.Run()
			if !outcome.Succeeded() {
				if signalCtx.Err() != nil {
					return signalCtx.Err()
				}
				return fmt.Errorf("%s: %s", outcome.Failure.Kind, outcome.Failure.Message)
			}

			dir, err := filepath.Abs(outputDir)
			if err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			target := filepath.Join(dir, outcome.Success.SuggestedFilename)
			size, err := copyArtifact(outcome.Success.OutputPath, target, overwrite)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Title", outcome.Success.Title},
				{"File", target},
				{"Size", humanize.Bytes(uint64(size))},
				{"Elapsed", outcome.Elapsed.Round(time.Millisecond).String()},
				{"Request", outcome.RequestID},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to write the combined file to")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file with the same name")
	return cmd
}

// copyArtifact copies src to dst and returns the number of bytes written.
// A partially written dst is removed on failure.
func copyArtifact(src, dst string, overwrite bool) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%s already exists (use --overwrite to replace it)", dst)
		}
		return 0, fmt.Errorf("create output file: %w", err)
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("write output file: %w", err)
	}
	return n, nil
}
