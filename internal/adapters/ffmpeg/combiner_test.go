package ffmpeg

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

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require a POSIX shell")
	}
}

func writeStub(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func newJob(t *testing.T, exe string) domain.CombineJob {
	t.Helper()
	dir := t.TempDir()
	job := domain.CombineJob{
		Video:      domain.ScratchHandle{Path: filepath.Join(dir, "video.mp4"), Purpose: domain.PurposeVideo},
		Audio:      domain.ScratchHandle{Path: filepath.Join(dir, "audio.m4a"), Purpose: domain.PurposeAudio},
		Output:     domain.ScratchHandle{Path: filepath.Join(dir, "output.mp4"), Purpose: domain.PurposeOutput},
		Executable: exe,
	}
	for _, p := range []string{job.Video.Path, job.Audio.Path} {
		if err := os.WriteFile(p, []byte("stream"), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}
	return job
}

func failingLookPath(string) (string, error) {
	return "", exec.ErrNotFound
}

func TestCombineSuccess(t *testing.T) {
	requireShell(t)
	exe := writeStub(t, t.TempDir(), `for last; do :; done
printf combined > "$last"`)
	job := newJob(t, exe)

	c := NewCombiner(nil)
	if err := c.Combine(context.Background(), job, 5*time.Second); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	data, err := os.ReadFile(job.Output.Path)
	if err != nil || string(data) != "combined" {
		t.Fatalf("output = %q, err=%v", data, err)
	}
}

func TestCombineExecutableUnavailableStartsNoProcess(t *testing.T) {
	job := newJob(t, filepath.Join(t.TempDir(), "no-such-ffmpeg"))

	started := 0
	c := NewCombiner(nil)
	c.lookPath = failingLookPath
	c.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		started++
		return exec.CommandContext(ctx, name, args...)
	}

	err := c.Combine(context.Background(), job, time.Second)
	if !domain.IsMuxReason(err, domain.MuxExecutableUnavailable) {
		t.Fatalf("expected executable unavailable, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound in chain, got %v", err)
	}
	if started != 0 {
		t.Fatalf("expected no process, got %d", started)
	}
}

func TestCombineMissingInput(t *testing.T) {
	requireShell(t)
	exe := writeStub(t, t.TempDir(), "exit 0")
	job := newJob(t, exe)
	if err := os.Remove(job.Audio.Path); err != nil {
		t.Fatal(err)
	}

	err := NewCombiner(nil).Combine(context.Background(), job, time.Second)
	if !domain.IsMuxReason(err, domain.MuxMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
	if !strings.Contains(err.Error(), "audio") {
		t.Fatalf("expected purpose in error, got %v", err)
	}
}

func TestCombineNonZeroExitCapturesDiagnostics(t *testing.T) {
	requireShell(t)
	exe := writeStub(t, t.TempDir(), `echo "Invalid data found when processing input" >&2
exit 1`)
	job := newJob(t, exe)

	err := NewCombiner(nil).Combine(context.Background(), job, 5*time.Second)
	var muxErr *domain.MuxError
	if !errors.As(err, &muxErr) || muxErr.Reason != domain.MuxFailed {
		t.Fatalf("expected combiner failed, got %v", err)
	}
	if !strings.Contains(muxErr.Diagnostics, "Invalid data found") {
		t.Fatalf("diagnostics not captured: %q", muxErr.Diagnostics)
	}
}

func TestCombineTimeout(t *testing.T) {
	requireShell(t)
	exe := writeStub(t, t.TempDir(), "exec sleep 5")
	job := newJob(t, exe)

	start := time.Now()
	err := NewCombiner(nil).Combine(context.Background(), job, 200*time.Millisecond)
	if !domain.IsMuxReason(err, domain.MuxTimedOut) {
		t.Fatalf("expected timed out, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout not enforced promptly")
	}
}

func TestCombineInvocationFailed(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	exe := filepath.Join(dir, "ffmpeg")
	// Executable bit but no interpreter line: exec fails with ENOEXEC.
	if err := os.WriteFile(exe, []byte{0x00, 0x01, 0x02, 0x03}, 0o755); err != nil {
		t.Fatal(err)
	}
	job := newJob(t, exe)

	err := NewCombiner(nil).Combine(context.Background(), job, time.Second)
	if !domain.IsMuxReason(err, domain.MuxInvocationFailed) {
		t.Fatalf("expected invocation failed, got %v", err)
	}
}

func TestCombineEmptyOutputIsFailure(t *testing.T) {
	requireShell(t)
	exe := writeStub(t, t.TempDir(), "exit 0")
	job := newJob(t, exe)

	err := NewCombiner(nil).Combine(context.Background(), job, time.Second)
	if !domain.IsMuxReason(err, domain.MuxFailed) {
		t.Fatalf("expected combiner failed for missing output, got %v", err)
	}
}

func TestBuildArgsStreamCopy(t *testing.T) {
	job := domain.CombineJob{
		Video:  domain.ScratchHandle{Path: "/s/v.mp4"},
		Audio:  domain.ScratchHandle{Path: "/s/a.m4a"},
		Output: domain.ScratchHandle{Path: "/s/out.mp4"},
	}
	args := strings.Join(buildArgs(job), " ")
	for _, fragment := range []string{"-y", "-i /s/v.mp4 -i /s/a.m4a", "-c copy", "-movflags +faststart"} {
		if !strings.Contains(args, fragment) {
			t.Fatalf("expected %q in %q", fragment, args)
		}
	}
	if !strings.HasSuffix(args, "/s/out.mp4") {
		t.Fatalf("output must be last: %q", args)
	}

	job.Output.Path = "/s/out.mkv"
	if strings.Contains(strings.Join(buildArgs(job), " "), "movflags") {
		t.Fatal("movflags only applies to mp4 output")
	}
}

func TestLocate(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	exe := writeStub(t, dir, "exit 0")
	pathHit := func(name string) (string, error) {
		if name == DefaultCommand {
			return "/usr/bin/ffmpeg", nil
		}
		return "", exec.ErrNotFound
	}

	tests := []struct {
		name       string
		configured string
		lookPath   func(string) (string, error)
		want       string
		wantErr    bool
	}{
		{"configured executable", exe, failingLookPath, exe, false},
		{"configured missing falls back to PATH", filepath.Join(dir, "nope"), pathHit, "/usr/bin/ffmpeg", false},
		{"unconfigured uses PATH", "", pathHit, "/usr/bin/ffmpeg", false},
		{"nothing resolves", "", failingLookPath, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.configured, tt.lookPath)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("Locate = (%q, %v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestTailBufferKeepsTail(t *testing.T) {
	b := tailBuffer{limit: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	if b.String() != "defg" {
		t.Fatalf("tail = %q", b.String())
	}
}
