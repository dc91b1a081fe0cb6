package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"vidgrabber/internal/core/domain"
)

func TestClassify(t *testing.T) {
	resolveErr := func(msg string) error { return &domain.ResolveError{Message: msg} }

	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"unsupported url", resolveErr("[generic] Unsupported URL: https://example.com"), domain.KindBadInput},
		{"invalid url", resolveErr("'foo' is not a valid URL"), domain.KindBadInput},
		{"private video", resolveErr("[youtube] abc: Private video. Sign in if you've been granted access"), domain.KindForbidden},
		{"members only", resolveErr("Join this channel to get access to members-only content"), domain.KindForbidden},
		{"http 403", resolveErr("unable to download webpage: HTTP Error 403: Forbidden"), domain.KindForbidden},
		{"video unavailable", resolveErr("[youtube] abc: Video unavailable"), domain.KindNotFound},
		{"http 404", resolveErr("HTTP Error 404: Not Found"), domain.KindNotFound},
		{"requested format missing", resolveErr("[youtube] abc123: Requested format is not available. Use --list-formats for a list of available formats"), domain.KindStreamsUnavailable},
		{"no formats", resolveErr("[generic] abc: No video formats found!"), domain.KindStreamsUnavailable},
		{"unknown resolver text", resolveErr("something odd happened"), domain.KindInternal},
		{"streams unavailable", fmt.Errorf("%w: video=true audio=false", domain.ErrStreamsUnavailable), domain.KindStreamsUnavailable},
		{"fetch", &domain.FetchError{Kind: domain.StreamVideo, Err: errors.New("unexpected status code: 403")}, domain.KindUpstreamFetchFailure},
		{"wrapped fetch", fmt.Errorf("pipeline: %w", &domain.FetchError{Kind: domain.StreamAudio, Err: errors.New("eof")}), domain.KindUpstreamFetchFailure},
		{"mux", &domain.MuxError{Reason: domain.MuxTimedOut}, domain.KindCombineFailure},
		{"cancelled", context.Canceled, domain.KindInternal},
		{"other", errors.New("disk on fire"), domain.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got.Kind, tt.want)
			}
			if got.Message == "" {
				t.Fatal("expected a message")
			}
		})
	}
}

func TestClassifyHidesUnclassifiedDetail(t *testing.T) {
	got := Classify(errors.New("open /secret/path: permission denied"))
	if got.Message != genericInternalMessage {
		t.Fatalf("internal detail leaked: %q", got.Message)
	}
	if got.Err == nil {
		t.Fatal("underlying error should be kept for logging")
	}

	got = Classify(&domain.ResolveError{Message: "python traceback at /usr/lib/yt_dlp"})
	if got.Message != genericInternalMessage {
		t.Fatalf("resolver detail leaked: %q", got.Message)
	}
}

func TestClassifyKeepsResolverMessageForKnownKinds(t *testing.T) {
	msg := "[youtube] abc: Video unavailable"
	got := Classify(&domain.ResolveError{Message: msg})
	if got.Message != msg {
		t.Fatalf("message = %q, want %q", got.Message, msg)
	}
}

func TestClassifyFetchFailureOmitsStreamURL(t *testing.T) {
	signed := "https://cdn.example/videoplayback?expire=1&sig=secret"
	err := &domain.FetchError{
		Kind: domain.StreamAudio,
		URL:  signed,
		Err:  &url.Error{Op: "Get", URL: signed, Err: errors.New("connection reset by peer")},
	}

	got := Classify(err)
	if got.Kind != domain.KindUpstreamFetchFailure {
		t.Fatalf("kind = %s", got.Kind)
	}
	if got.Message != "fetching the audio stream failed" {
		t.Fatalf("message = %q", got.Message)
	}
	if strings.Contains(got.Message, "sig=") || strings.Contains(got.Message, "cdn.example") {
		t.Fatalf("stream URL leaked: %q", got.Message)
	}
	if !errors.Is(got.Err, err) {
		t.Fatal("underlying error should be kept for logging")
	}
}
