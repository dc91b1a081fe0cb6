package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external executable vidgrabber relies on.
type Requirement struct {
	Name        string
	Command     string
	Fallback    string // searched on PATH when Command is not usable
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Resolved    string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the executables the pipeline invokes.
func Requirements(ffmpegPath, ytdlpPath string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegPath,
			Fallback:    "ffmpeg",
			Description: "Combines video and audio streams",
		},
		{
			Name:        "yt-dlp",
			Command:     ytdlpPath,
			Fallback:    "yt-dlp",
			Description: "Resolves item references to stream URLs",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
// A nil lookPath uses exec.LookPath.
func CheckBinaries(requirements []Requirement, lookPath func(string) (string, error)) []Status {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		fallback := strings.TrimSpace(req.Fallback)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" && fallback == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}

		var tried []string
		for _, candidate := range []string{cmd, fallback} {
			if candidate == "" {
				continue
			}
			if resolved, err := lookPath(candidate); err == nil {
				status.Available = true
				status.Resolved = resolved
				break
			}
			tried = append(tried, candidate)
		}
		if !status.Available {
			status.Detail = fmt.Sprintf("binary %q not found", strings.Join(tried, `" or "`))
		}
		if status.Command == "" {
			status.Command = fallback
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the names of required dependencies that are unavailable.
func Missing(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}
