package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/logging"
)

// diagnosticsLimit caps how much of ffmpeg's output is kept for logging.
const diagnosticsLimit = 8 * 1024

type commandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

// Combiner implements ports.Combiner by running ffmpeg with stream copy.
type Combiner struct {
	logger   *slog.Logger
	lookPath func(string) (string, error)
	command  commandFactory
}

// NewCombiner constructs an ffmpeg-backed combiner.
func NewCombiner(logger *slog.Logger) *Combiner {
	return &Combiner{
		logger:   logging.NewComponentLogger(logger, "combiner"),
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
}

// Combine muxes job.Video and job.Audio into job.Output without re-encoding,
// overwriting any existing output.
func (c *Combiner) Combine(ctx context.Context, job domain.CombineJob, timeout time.Duration) error {
	exe, err := Locate(job.Executable, c.lookPath)
	if err != nil {
		return &domain.MuxError{Reason: domain.MuxExecutableUnavailable, Err: err}
	}

	for _, in := range []domain.ScratchHandle{job.Video, job.Audio} {
		if _, err := os.Stat(in.Path); err != nil {
			return &domain.MuxError{
				Reason: domain.MuxMissingInput,
				Err:    fmt.Errorf("%s input %s: %w", in.Purpose, in.Path, err),
			}
		}
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := buildArgs(job)
	cmd := c.command(runCtx, exe, args...)
	var output tailBuffer
	output.limit = diagnosticsLimit
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = 2 * time.Second

	c.logger.Debug("executing ffmpeg",
		logging.String("executable", exe),
		logging.String("args", strings.Join(args, " ")),
		logging.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	if runErr != nil {
		muxErr := classifyRunError(ctx, runCtx, runErr, output.String())
		c.logger.Warn("ffmpeg combine failed",
			logging.String("reason", string(muxErr.Reason)),
			logging.String("output_path", job.Output.Path),
			logging.Duration("elapsed", elapsed),
			logging.String("diagnostics", strings.TrimSpace(muxErr.Diagnostics)),
			logging.Error(runErr),
			logging.Event("combine_failed"),
		)
		return muxErr
	}

	if info, err := os.Stat(job.Output.Path); err != nil || info.Size() == 0 {
		if err == nil {
			err = errors.New("output file is empty")
		}
		return &domain.MuxError{
			Reason:      domain.MuxFailed,
			Diagnostics: output.String(),
			Err:         fmt.Errorf("ffmpeg produced no output: %w", err),
		}
	}

	c.logger.Info("streams combined",
		logging.String("output_path", job.Output.Path),
		logging.Duration("elapsed", elapsed),
		logging.Event("combine_complete"),
	)
	return nil
}

func classifyRunError(parent, runCtx context.Context, err error, diagnostics string) *domain.MuxError {
	switch {
	case parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return &domain.MuxError{Reason: domain.MuxTimedOut, Diagnostics: diagnostics, Err: runCtx.Err()}
	case parent.Err() != nil:
		return &domain.MuxError{Reason: domain.MuxInvocationFailed, Diagnostics: diagnostics, Err: parent.Err()}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.MuxError{
			Reason:      domain.MuxFailed,
			Diagnostics: diagnostics,
			Err:         fmt.Errorf("ffmpeg exited with code %d", exitErr.ExitCode()),
		}
	}
	return &domain.MuxError{Reason: domain.MuxInvocationFailed, Diagnostics: diagnostics, Err: err}
}

// buildArgs requests stream copy of the first video stream of input 0 and
// the first audio stream of input 1.
func buildArgs(job domain.CombineJob) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", job.Video.Path,
		"-i", job.Audio.Path,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
	}
	if strings.EqualFold(filepath.Ext(job.Output.Path), ".mp4") {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, job.Output.Path)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; b.limit > 0 && over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
