package config

const (
	defaultStemsDir             = "~/.local/share/stemgen/stems"
	defaultCacheDir             = "~/.local/share/stemgen/cache"
	defaultDataDir              = "~/.local/share/stemgen/data"
	defaultLogDir               = "~/.local/share/stemgen/logs"
	defaultLocalSizeThresholdMB = 50
	defaultDemucsBinary         = "demucs"
	defaultDemucsModel          = "htdemucs"
	defaultDemucsRunTimeout     = 1800
	defaultLalalBaseURL         = "https://www.lalal.ai"
	defaultLalalPollInterval    = 5
	defaultLalalPollTimeout     = 600
	defaultLalalUploadTimeout   = 120
	defaultLedgerLockWait       = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StemsDir: defaultStemsDir,
			CacheDir: defaultCacheDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
		},
		Pipeline: Pipeline{
			LocalSizeThresholdMB: defaultLocalSizeThresholdMB,
			QualityFallback:      true,
		},
		Demucs: Demucs{
			Binary:            defaultDemucsBinary,
			Model:             defaultDemucsModel,
			RunTimeoutSeconds: defaultDemucsRunTimeout,
		},
		Lalal: Lalal{
			BaseURL:              defaultLalalBaseURL,
			PollIntervalSeconds:  defaultLalalPollInterval,
			PollTimeoutSeconds:   defaultLalalPollTimeout,
			UploadTimeoutSeconds: defaultLalalUploadTimeout,
		},
		StemCache: StemCache{
			Enabled: true,
			Dir:     defaultCacheDir,
		},
		Scanner: Scanner{
			Recursive: true,
		},
		Ledger: Ledger{
			LockWaitSeconds: defaultLedgerLockWait,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
