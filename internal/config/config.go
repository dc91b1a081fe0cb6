package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP request layer settings.
type Server struct {
	Bind string `toml:"bind"`
}

// Scratch contains the working directory for per-request temporary files.
type Scratch struct {
	Dir                  string `toml:"dir"`
	StaleAfterMinutes    int    `toml:"stale_after_minutes"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
}

// Fetch contains timeouts for remote stream retrieval.
type Fetch struct {
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds"`
	HeaderTimeoutSeconds  int `toml:"header_timeout_seconds"`
	IdleTimeoutSeconds    int `toml:"idle_timeout_seconds"`
	ChunkSizeKiB          int `toml:"chunk_size_kib"`
}

// Combiner contains settings for the external ffmpeg invocation.
type Combiner struct {
	FFmpegPath     string `toml:"ffmpeg_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Resolver contains settings for the yt-dlp metadata resolver.
type Resolver struct {
	YtDlpPath      string `toml:"ytdlp_path"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for vidgrabber.
type Config struct {
	Server   Server   `toml:"server"`
	Scratch  Scratch  `toml:"scratch"`
	Fetch    Fetch    `toml:"fetch"`
	Combiner Combiner `toml:"combiner"`
	Resolver Resolver `toml:"resolver"`
	Logging  Logging  `toml:"logging"`
}

// Environment variables that override file values.
const (
	EnvFFmpegPath = "VIDGRABBER_FFMPEG_PATH"
	EnvYtDlpPath  = "VIDGRABBER_YTDLP_PATH"
	EnvScratchDir = "VIDGRABBER_SCRATCH_DIR"
	EnvBind       = "VIDGRABBER_BIND"
	EnvLogLevel   = "VIDGRABBER_LOG_LEVEL"
)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded. The second return value is the path that was considered and the
// third reports whether it existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := ExpandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvFFmpegPath, &c.Combiner.FFmpegPath)
	set(EnvYtDlpPath, &c.Resolver.YtDlpPath)
	set(EnvScratchDir, &c.Scratch.Dir)
	set(EnvBind, &c.Server.Bind)
	set(EnvLogLevel, &c.Logging.Level)
}

func (c *Config) normalize() error {
	var err error
	if c.Scratch.Dir, err = ExpandPath(strings.TrimSpace(c.Scratch.Dir)); err != nil {
		return fmt.Errorf("scratch.dir: %w", err)
	}
	if p := strings.TrimSpace(c.Combiner.FFmpegPath); p != "" && strings.ContainsRune(p, filepath.Separator) {
		if c.Combiner.FFmpegPath, err = ExpandPath(p); err != nil {
			return fmt.Errorf("combiner.ffmpeg_path: %w", err)
		}
	}
	if p := strings.TrimSpace(c.Resolver.YtDlpPath); p != "" && strings.ContainsRune(p, filepath.Separator) {
		if c.Resolver.YtDlpPath, err = ExpandPath(p); err != nil {
			return fmt.Errorf("resolver.ytdlp_path: %w", err)
		}
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	c.Resolver.Format = strings.TrimSpace(c.Resolver.Format)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Scratch.Dir == "" {
		return errors.New("scratch.dir must be set")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"scratch.stale_after_minutes", c.Scratch.StaleAfterMinutes},
		{"fetch.connect_timeout_seconds", c.Fetch.ConnectTimeoutSeconds},
		{"fetch.header_timeout_seconds", c.Fetch.HeaderTimeoutSeconds},
		{"fetch.idle_timeout_seconds", c.Fetch.IdleTimeoutSeconds},
		{"fetch.chunk_size_kib", c.Fetch.ChunkSizeKiB},
		{"combiner.timeout_seconds", c.Combiner.TimeoutSeconds},
		{"resolver.timeout_seconds", c.Resolver.TimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.Scratch.SweepIntervalMinutes < 0 {
		return fmt.Errorf("scratch.sweep_interval_minutes must not be negative, got %d", c.Scratch.SweepIntervalMinutes)
	}
	switch c.Logging.Format {
	case "", "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// CombineTimeout returns the bound on one combiner run.
func (c *Config) CombineTimeout() time.Duration {
	return time.Duration(c.Combiner.TimeoutSeconds) * time.Second
}

// ResolveTimeout returns the bound on one resolver run.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}

// StaleAfter returns the age past which scratch files are swept.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Scratch.StaleAfterMinutes) * time.Minute
}

// SweepInterval returns how often the server sweeps scratch space; zero disables it.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Scratch.SweepIntervalMinutes) * time.Minute
}

// ExpandPath resolves "~" and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
