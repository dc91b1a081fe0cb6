package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/core/ports"
	"vidgrabber/internal/logging"
)

// Options tunes the combine step.
type Options struct {
	FFmpegPath     string
	CombineTimeout time.Duration
}

// Orchestrator coordinates the resolve, fetch, combine and cleanup workflow.
type Orchestrator struct {
	resolver ports.Resolver
	fetcher  ports.Fetcher
	combiner ports.Combiner
	scratch  ports.ScratchSpace
	opts     Options
	logger   *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	resolver ports.Resolver,
	fetcher ports.Fetcher,
	combiner ports.Combiner,
	scratch ports.ScratchSpace,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.CombineTimeout <= 0 {
		opts.CombineTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		resolver: resolver,
		fetcher:  fetcher,
		combiner: combiner,
		scratch:  scratch,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Describe resolves reference without fetching anything.
func (o *Orchestrator) Describe(ctx context.Context, reference string) (*domain.Resolution, error) {
	res, err := o.resolver.Resolve(ctx, reference)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("resolver returned no result")
	}
	return res, nil
}

// Run executes one pipeline for reference. The returned Cleanup must be run
// by the caller once the output has been consumed; on failure it has already
// run and calling it again is a no-op.
func (o *Orchestrator) Run(ctx context.Context, reference string) (domain.Outcome, *Cleanup) {
	requestID := uuid.NewString()
	logger := o.logger.With(logging.String(logging.FieldRequestID, requestID))
	cleanup := newCleanup(o.scratch, logger)
	start := time.Now()

	outcome := domain.Outcome{RequestID: requestID}
	fail := func(stage string, err error) (domain.Outcome, *Cleanup) {
		cleanup.Run()
		failure := Classify(err)
		outcome.Failure = &failure
		outcome.Elapsed = time.Since(start)
		logger.Warn("pipeline failed",
			logging.String("stage", stage),
			logging.String("kind", string(failure.Kind)),
			logging.String("reference", reference),
			logging.Duration("elapsed", outcome.Elapsed.Round(time.Millisecond)),
			logging.Error(err),
			logging.Event("pipeline_failed"),
		)
		return outcome, cleanup
	}

	logger.Info("pipeline started",
		logging.String("reference", reference),
		logging.Event("pipeline_started"),
	)

	// Resolving
	res, err := o.Describe(ctx, reference)
	if err != nil {
		return fail("resolve", err)
	}

	// Validating
	if res.Video == nil || res.Audio == nil {
		return fail("validate", fmt.Errorf("%w: video=%t audio=%t", domain.ErrStreamsUnavailable, res.Video != nil, res.Audio != nil))
	}
	video, audio := *res.Video, *res.Audio
	outExt, contentType := domain.ContainerFor(res.Video, res.Audio)

	// Fetching
	handles, err := o.allocate(video, audio, outExt)
	cleanup.Schedule(handles...)
	if err != nil {
		return fail("allocate", err)
	}
	videoHandle, audioHandle, outputHandle := handles[0], handles[1], handles[2]

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return o.fetcher.Fetch(groupCtx, video, videoHandle) })
	group.Go(func() error { return o.fetcher.Fetch(groupCtx, audio, audioHandle) })
	if err := group.Wait(); err != nil {
		return fail("fetch", err)
	}

	// Combining
	job := domain.CombineJob{
		Video:      videoHandle,
		Audio:      audioHandle,
		Output:     outputHandle,
		Executable: o.opts.FFmpegPath,
	}
	if err := o.combiner.Combine(ctx, job, o.opts.CombineTimeout); err != nil {
		return fail("combine", err)
	}

	// Delivering: inputs are no longer needed; the deferred cleanup still
	// covers all three handles.
	o.scratch.Release(videoHandle, audioHandle)

	outcome.Success = &domain.Success{
		OutputPath:        outputHandle.Path,
		SuggestedFilename: res.DownloadFilename(outExt),
		ContentType:       contentType,
		Title:             res.Title,
	}
	outcome.Elapsed = time.Since(start)
	logger.Info("pipeline succeeded",
		logging.String("output_path", outputHandle.Path),
		logging.String("filename", outcome.Success.SuggestedFilename),
		logging.Duration("elapsed", outcome.Elapsed.Round(time.Millisecond)),
		logging.Event("pipeline_succeeded"),
	)
	return outcome, cleanup
}

// allocate returns the handles it managed to create even on error so they
// can be scheduled for release.
func (o *Orchestrator) allocate(video, audio domain.StreamDescriptor, outExt string) ([]domain.ScratchHandle, error) {
	plan := []struct {
		purpose domain.Purpose
		ext     string
	}{
		{domain.PurposeVideo, extOr(video.Ext, "mp4")},
		{domain.PurposeAudio, extOr(audio.Ext, "m4a")},
		{domain.PurposeOutput, outExt},
	}
	handles := make([]domain.ScratchHandle, 0, len(plan))
	for _, p := range plan {
		h, err := o.scratch.Allocate(p.purpose, p.ext)
		if err != nil {
			return handles, fmt.Errorf("allocate %s scratch file: %w", p.purpose, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func extOr(ext, fallback string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return fallback
	}
	return ext
}
