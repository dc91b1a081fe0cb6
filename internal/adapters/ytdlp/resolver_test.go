package ytdlp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"vidgrabber/internal/core/domain"
)

const splitInfo = `{
  "title": "A/B: Test?",
  "thumbnail": "https://i.example/t.jpg",
  "uploader": "someone",
  "duration_string": "3:32",
  "requested_formats": [
    {"format_id": "137", "url": "https://cdn.example/v", "ext": "mp4", "vcodec": "avc1.640028", "acodec": "none",
     "http_headers": {"User-Agent": "UA"}},
    {"format_id": "140", "url": "https://cdn.example/a", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2"}
  ]
}`

func TestParseInfoSplitFormats(t *testing.T) {
	res, err := parseInfo([]byte(splitInfo))
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if res.Title != "A/B: Test?" || res.Uploader != "someone" || res.Duration != "3:32" {
		t.Fatalf("metadata = %+v", res)
	}
	if res.Video == nil || res.Video.URL != "https://cdn.example/v" || res.Video.Kind != domain.StreamVideo {
		t.Fatalf("video = %+v", res.Video)
	}
	if res.Video.Headers["User-Agent"] != "UA" {
		t.Fatalf("headers not carried: %+v", res.Video.Headers)
	}
	if res.Audio == nil || res.Audio.Ext != "m4a" || res.Audio.Kind != domain.StreamAudio {
		t.Fatalf("audio = %+v", res.Audio)
	}
}

func TestParseInfoCombinedFormatYieldsNoDescriptors(t *testing.T) {
	data := `{"title": "x", "format_id": "18", "url": "https://cdn.example/muxed", "ext": "mp4",
	          "vcodec": "avc1", "acodec": "mp4a"}`
	res, err := parseInfo([]byte(data))
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if res.Video != nil || res.Audio != nil {
		t.Fatalf("combined stream must not produce descriptors: %+v %+v", res.Video, res.Audio)
	}
}

func TestParseInfoCarriesTemplateFilename(t *testing.T) {
	data := `{"title": "x", "filename": "/tmp/Clip Name [abc].webm"}`
	res, err := parseInfo([]byte(data))
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if res.SuggestedFilename != "Clip Name [abc].webm" {
		t.Fatalf("SuggestedFilename = %q", res.SuggestedFilename)
	}

	res, err = parseInfo([]byte(splitInfo))
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if res.SuggestedFilename != "" {
		t.Fatalf("missing filename should stay empty, got %q", res.SuggestedFilename)
	}
}

func TestParseInfoVideoOnly(t *testing.T) {
	data := `{"title": "x", "requested_formats": [
	  {"url": "https://cdn.example/v", "ext": "webm", "vcodec": "vp9", "acodec": "none"}]}`
	res, err := parseInfo([]byte(data))
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if res.Video == nil || res.Audio != nil {
		t.Fatalf("expected video only, got %+v %+v", res.Video, res.Audio)
	}
}

func TestParseInfoRejectsGarbage(t *testing.T) {
	if _, err := parseInfo([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		stderr string
		want   string
	}{
		{"WARNING: x\nERROR: [generic] Unsupported URL: https://a\n", "[generic] Unsupported URL: https://a"},
		{"ERROR: a\nERROR: b", "a; b"},
		{"plain failure", "plain failure"},
		{"", "yt-dlp failed without diagnostics"},
	}
	for _, tt := range tests {
		if got := errorMessage(tt.stderr); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.stderr, got, tt.want)
		}
	}
}

func TestResolvePassesFormatAndReference(t *testing.T) {
	r := NewResolver(Options{BinaryPath: "yt-dlp-test", Format: "bv+ba", Timeout: time.Second}, nil)
	var gotName string
	var gotArgs []string
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotName, gotArgs = name, args
		return []byte(splitInfo), nil, nil
	}

	res, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Video == nil || res.Audio == nil {
		t.Fatalf("expected both descriptors: %+v", res)
	}
	joined := strings.Join(gotArgs, " ")
	if gotName != "yt-dlp-test" || !strings.Contains(joined, "-f bv+ba") || !strings.HasSuffix(joined, "-- https://www.youtube.com/watch?v=abc") {
		t.Fatalf("unexpected invocation %s %s", gotName, joined)
	}
}

func TestResolveDefaultFormatFallsBackToMuxed(t *testing.T) {
	r := NewResolver(Options{BinaryPath: "yt-dlp-test"}, nil)
	var gotArgs []string
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotArgs = args
		return []byte(splitInfo), nil, nil
	}

	if _, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasSuffix(DefaultFormat, "/best") {
		t.Fatalf("DefaultFormat %q has no muxed fallback", DefaultFormat)
	}
	if !strings.Contains(strings.Join(gotArgs, " "), "-f "+DefaultFormat) {
		t.Fatalf("default format not passed: %v", gotArgs)
	}
}

func TestResolveNonZeroExitIsResolveError(t *testing.T) {
	r := NewResolver(Options{BinaryPath: "yt-dlp-test"}, nil)
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("ERROR: [youtube] abc: Private video. Sign in if you've been granted access"), &exec.ExitError{}
	}

	_, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=abc")
	var resolveErr *domain.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("expected ResolveError, got %v", err)
	}
	if !strings.HasPrefix(resolveErr.Message, "[youtube] abc: Private video") {
		t.Fatalf("message = %q", resolveErr.Message)
	}
}

func TestResolveStartFailureIsNotResolveError(t *testing.T) {
	r := NewResolver(Options{BinaryPath: filepath.Join(t.TempDir(), "missing-yt-dlp")}, nil)
	_, err := r.Resolve(context.Background(), "https://example.com/v")
	if err == nil {
		t.Fatal("expected error")
	}
	var resolveErr *domain.ResolveError
	if errors.As(err, &resolveErr) {
		t.Fatalf("launch failure must not look like a domain rejection: %v", err)
	}
}

func TestResolveWithStubBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require a POSIX shell")
	}
	stub := filepath.Join(t.TempDir(), "yt-dlp")
	script := "#!/bin/sh\necho 'ERROR: [generic] Unsupported URL: https://example.com/x' >&2\nexit 1\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	r := NewResolver(Options{BinaryPath: stub, Timeout: 5 * time.Second}, nil)
	_, err := r.Resolve(context.Background(), "https://example.com/x")
	var resolveErr *domain.ResolveError
	if !errors.As(err, &resolveErr) || !strings.Contains(resolveErr.Message, "Unsupported URL") {
		t.Fatalf("expected unsupported URL ResolveError, got %v", err)
	}
}
