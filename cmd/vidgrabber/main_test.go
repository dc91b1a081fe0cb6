package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VIDGRABBER_FFMPEG_PATH",
		"VIDGRABBER_YTDLP_PATH",
		"VIDGRABBER_SCRATCH_DIR",
		"VIDGRABBER_BIND",
		"VIDGRABBER_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeTestConfig(t *testing.T, base string) (configPath, scratchDir string) {
	t.Helper()
	scratchDir = filepath.Join(base, "scratch")
	configPath = filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[scratch]
dir = %q

[combiner]
ffmpeg_path = %q

[resolver]
ytdlp_path = %q

[logging]
level = "error"
format = "json"
`, scratchDir, filepath.Join(base, "missing", "ffmpeg"), filepath.Join(base, "missing", "yt-dlp"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, scratchDir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	clearEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "vidgrabber.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output %q does not mention %s", out, target)
	}
	data, err := os.ReadFile(target)
	if err != nil || !strings.Contains(string(data), "[combiner]") {
		t.Fatalf("sample not written: err=%v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	out, err = runCLI(t, "--config", target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Fatalf("validate output = %q", out)
	}
}

func TestSweepRemovesStaleFiles(t *testing.T) {
	clearEnv(t)
	configPath, scratchDir := writeTestConfig(t, t.TempDir())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(scratchDir, "video_stale.mp4")
	fresh := filepath.Join(scratchDir, "audio_fresh.m4a")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", configPath, "sweep", "--older-than", "1h")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "Removed") {
		t.Fatalf("sweep output = %q", out)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale file survived, err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}

func TestCheckReportsMissingDependencies(t *testing.T) {
	clearEnv(t)
	t.Setenv("PATH", t.TempDir())
	configPath, _ := writeTestConfig(t, t.TempDir())

	out, err := runCLI(t, "--config", configPath, "check")
	if err == nil || !strings.Contains(err.Error(), "missing dependencies") {
		t.Fatalf("expected missing dependencies error, got %v", err)
	}
	for _, name := range []string{"FFmpeg", "yt-dlp"} {
		if !strings.Contains(out, name) {
			t.Fatalf("check output missing %s: %q", name, out)
		}
	}
}

func TestGrabRejectsInvalidURL(t *testing.T) {
	clearEnv(t)
	configPath, _ := writeTestConfig(t, t.TempDir())

	_, err := runCLI(t, "--config", configPath, "grab", "not-a-url")
	if err == nil || !strings.Contains(err.Error(), "invalid url") {
		t.Fatalf("expected invalid url error, got %v", err)
	}
}

func TestCopyArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "output.mp4")
	if err := os.WriteFile(src, []byte("muxed"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "clip.mp4")

	n, err := copyArtifact(src, dst, false)
	if err != nil || n != 5 {
		t.Fatalf("copyArtifact = (%d, %v)", n, err)
	}
	if _, err := copyArtifact(src, dst, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected exists error, got %v", err)
	}
	if _, err := copyArtifact(src, dst, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") || strings.Contains(out, "nil") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
