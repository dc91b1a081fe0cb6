package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// DefaultCommand is searched on PATH when no usable location is configured.
const DefaultCommand = "ffmpeg"

// ErrNotFound reports that no ffmpeg executable could be located.
var ErrNotFound = errors.New("ffmpeg executable not found")

// Locate resolves the ffmpeg executable. A configured value is used when it
// names an executable file (or a command on PATH); otherwise PATH is searched
// for DefaultCommand.
func Locate(configured string, lookPath func(string) (string, error)) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	configured = strings.TrimSpace(configured)
	if configured != "" {
		if info, err := os.Stat(configured); err == nil && isExecutable(info) {
			return configured, nil
		}
		if resolved, err := lookPath(configured); err == nil {
			return resolved, nil
		}
	}

	resolved, err := lookPath(DefaultCommand)
	if err != nil {
		if configured != "" {
			return "", fmt.Errorf("%w: configured %q unusable and %q not on PATH", ErrNotFound, configured, DefaultCommand)
		}
		return "", fmt.Errorf("%w: %q not on PATH", ErrNotFound, DefaultCommand)
	}
	return resolved, nil
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
