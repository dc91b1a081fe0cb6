package config

const (
	defaultConfigPath           = "~/.config/vidgrabber/config.toml"
	projectConfigName           = "vidgrabber.toml"
	defaultBind                 = "127.0.0.1:8080"
	defaultScratchDir           = "~/.cache/vidgrabber/scratch"
	defaultStaleAfterMinutes    = 60
	defaultSweepIntervalMinutes = 15
	defaultConnectTimeout       = 30
	defaultHeaderTimeout        = 30
	defaultIdleTimeout          = 30
	defaultChunkSizeKiB         = 64
	defaultCombineTimeout       = 300
	defaultResolveTimeout       = 120
	defaultResolverFormat       = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best"
	defaultLogLevel             = "info"
	defaultLogFormat            = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind: defaultBind,
		},
		Scratch: Scratch{
			Dir:                  defaultScratchDir,
			StaleAfterMinutes:    defaultStaleAfterMinutes,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
		},
		Fetch: Fetch{
			ConnectTimeoutSeconds: defaultConnectTimeout,
			HeaderTimeoutSeconds:  defaultHeaderTimeout,
			IdleTimeoutSeconds:    defaultIdleTimeout,
			ChunkSizeKiB:          defaultChunkSizeKiB,
		},
		Combiner: Combiner{
			TimeoutSeconds: defaultCombineTimeout,
		},
		Resolver: Resolver{
			Format:         defaultResolverFormat,
			TimeoutSeconds: defaultResolveTimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
