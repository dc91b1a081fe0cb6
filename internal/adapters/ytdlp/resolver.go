package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
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

// DefaultCommand is the yt-dlp executable searched on PATH.
const DefaultCommand = "yt-dlp"

// DefaultFormat prefers split mp4/m4a streams. The trailing "best" selects a
// pre-muxed format when no split pair exists; such results carry no descriptors.
const DefaultFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best"

type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Options configures the resolver.
type Options struct {
	BinaryPath string
	Format     string
	Timeout    time.Duration
}

// Resolver uses the local yt-dlp binary to resolve stream descriptors.
type Resolver struct {
	binaryPath string
	format     string
	timeout    time.Duration
	logger     *slog.Logger
	run        commandRunner
}

// NewResolver creates a new resolver. Without a configured path a yt-dlp
// binary in the working directory is preferred, then PATH.
func NewResolver(opts Options, logger *slog.Logger) *Resolver {
	binary := strings.TrimSpace(opts.BinaryPath)
	if binary == "" {
		binary = DefaultCommand
		for _, local := range []string{"yt-dlp", "yt-dlp.exe"} {
			if info, err := os.Stat(local); err == nil && !info.IsDir() {
				binary = "./" + local
				break
			}
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if strings.TrimSpace(opts.Format) == "" {
		opts.Format = DefaultFormat
	}
	return &Resolver{
		binaryPath: binary,
		format:     opts.Format,
		timeout:    opts.Timeout,
		logger:     logging.NewComponentLogger(logger, "resolver"),
		run:        runCommand,
	}
}

// BinaryPath returns the yt-dlp executable the resolver invokes.
func (r *Resolver) BinaryPath() string {
	return r.binaryPath
}

// Resolve dumps the item's metadata with yt-dlp -J and extracts the selected
// video-only and audio-only formats.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*domain.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// -J: dump the info JSON for the item without downloading
	// -f: the format selector decides which streams land in requested_formats
	args := []string{"-J", "--no-warnings", "--no-playlist", "-f", r.format, "--", reference}
	stdout, stderr, err := r.run(ctx, r.binaryPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("yt-dlp did not finish: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := errorMessage(string(stderr))
			r.logger.Info("resolver rejected reference",
				logging.String("reference", reference),
				logging.String("message", msg),
				logging.Event("resolve_rejected"),
			)
			return nil, &domain.ResolveError{Message: msg, Err: err}
		}
		return nil, fmt.Errorf("yt-dlp failed to start: %w", err)
	}

	res, err := parseInfo(stdout)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("reference resolved",
		logging.String("reference", reference),
		logging.String("title", res.Title),
		logging.Bool("has_video", res.Video != nil),
		logging.Bool("has_audio", res.Audio != nil),
	)
	return res, nil
}

type ytFormat struct {
	FormatID    string            `json:"format_id"`
	URL         string            `json:"url"`
	Ext         string            `json:"ext"`
	VCodec      string            `json:"vcodec"`
	ACodec      string            `json:"acodec"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

type ytInfo struct {
	ytFormat
	Title            string     `json:"title"`
	Thumbnail        string     `json:"thumbnail"`
	Uploader         string     `json:"uploader"`
	DurationString   string     `json:"duration_string"`
	Filename         string     `json:"filename"`
	RequestedFormats []ytFormat `json:"requested_formats"`
}

func parseInfo(data []byte) (*domain.Resolution, error) {
	var info ytInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}

	res := &domain.Resolution{
		Title:     strings.TrimSpace(info.Title),
		Thumbnail: info.Thumbnail,
		Uploader:  info.Uploader,
		Duration:  info.DurationString,
	}
	// Output-template name; its extension is replaced by the container's.
	if name := strings.TrimSpace(info.Filename); name != "" {
		res.SuggestedFilename = filepath.Base(name)
	}

	formats := info.RequestedFormats
	if len(formats) == 0 && info.URL != "" {
		formats = []ytFormat{info.ytFormat}
	}
	for _, f := range formats {
		if f.URL == "" {
			continue
		}
		hasVideo, hasAudio := present(f.VCodec), present(f.ACodec)
		switch {
		case hasVideo && !hasAudio && res.Video == nil:
			res.Video = descriptor(domain.StreamVideo, f)
		case hasAudio && !hasVideo && res.Audio == nil:
			res.Audio = descriptor(domain.StreamAudio, f)
		}
		// Pre-muxed formats yield no descriptor.
	}
	return res, nil
}

func present(codec string) bool {
	codec = strings.TrimSpace(codec)
	return codec != "" && codec != "none"
}

func descriptor(kind domain.StreamKind, f ytFormat) *domain.StreamDescriptor {
	return &domain.StreamDescriptor{
		Kind:    kind,
		URL:     f.URL,
		Ext:     f.Ext,
		Headers: f.HTTPHeaders,
	}
}

// errorMessage extracts yt-dlp's "ERROR:" lines from stderr.
func errorMessage(stderr string) string {
	var msgs []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			msgs = append(msgs, strings.TrimSpace(rest))
		}
	}
	if len(msgs) == 0 {
		if s := strings.TrimSpace(stderr); s != "" {
			return s
		}
		return "yt-dlp failed without diagnostics"
	}
	return strings.Join(msgs, "; ")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	err := cmd.Run()
	return out.Bytes(), stderr.Bytes(), err
}
