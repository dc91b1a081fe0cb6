package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidgrabber/internal/adapters/downloader"
	"vidgrabber/internal/adapters/ffmpeg"
	"vidgrabber/internal/adapters/localstorage"
	"vidgrabber/internal/adapters/ytdlp"
	"vidgrabber/internal/config"
	"vidgrabber/internal/logging"
	"vidgrabber/internal/service"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the process logger. CLI commands that print results to
// stdout log to stderr instead.
func (c *commandContext) newLogger(stderr bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !stderr {
		return logging.NewFromConfig(cfg)
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// services holds the wired adapters for one command invocation.
type services struct {
	cfg      *config.Config
	logger   *slog.Logger
	scratch  *localstorage.Space
	resolver *ytdlp.Resolver
	pipeline *service.Orchestrator
}

func (c *commandContext) buildServices(logToStderr bool) (*services, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger(logToStderr)
	if err != nil {
		return nil, err
	}

	scratch := localstorage.NewSpace(cfg.Scratch.Dir, logger)
	resolver := ytdlp.NewResolver(ytdlp.Options{
		BinaryPath: cfg.Resolver.YtDlpPath,
		Format:     cfg.Resolver.Format,
		Timeout:    cfg.ResolveTimeout(),
	}, logger)
	fetcher := downloader.NewHTTPDownloader(downloader.Options{
		ConnectTimeout: secondsOf(cfg.Fetch.ConnectTimeoutSeconds),
		HeaderTimeout:  secondsOf(cfg.Fetch.HeaderTimeoutSeconds),
		IdleTimeout:    secondsOf(cfg.Fetch.IdleTimeoutSeconds),
		ChunkSize:      cfg.Fetch.ChunkSizeKiB * 1024,
	}, logger)
	combiner := ffmpeg.NewCombiner(logger)

	pipeline := service.NewOrchestrator(resolver, fetcher, combiner, scratch, service.Options{
		FFmpegPath:     cfg.Combiner.FFmpegPath,
		CombineTimeout: cfg.CombineTimeout(),
	}, logger)

	return &services{
		cfg:      cfg,
		logger:   logger,
		scratch:  scratch,
		resolver: resolver,
		pipeline: pipeline,
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
