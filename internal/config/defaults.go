package config

const (
	defaultConfigPath  = "~/.config/buildvault/config.toml"
	projectConfigName  = "buildvault.toml"
	defaultAudioDir    = "~/.local/share/buildvault/audio"
	defaultLogDir      = "~/.local/share/buildvault/logs"
	defaultLockDir     = "~/.local/share/buildvault/locks"
	defaultSQLitePath  = "~/.local/share/buildvault/buildvault.db"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultLLMModel    = "gpt-4"
	defaultLLMBaseURL  = "https://api.openai.com/v1/chat/completions"
	defaultLLMTimeout  = 60
	defaultAAIBaseURL  = "https://api.assemblyai.com"
	defaultAAIPoll     = 3
	defaultAAITimeout  = 1800
	defaultYTDLPBinary = "yt-dlp"
	defaultYTDLPFormat = "mp3"
	defaultYTDLPQual   = "192"
	defaultYTDLPTimout = 1800
)

// Supported datastore backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AudioDir: defaultAudioDir,
			LogDir:   defaultLogDir,
			LockDir:  defaultLockDir,
		},
		Store: Store{
			Backend:       BackendSQLite,
			SQLitePath:    defaultSQLitePath,
			SchemaVersion: 2,
		},
		Download: Download{
			Binary:         defaultYTDLPBinary,
			AudioFormat:    defaultYTDLPFormat,
			AudioQuality:   defaultYTDLPQual,
			TimeoutSeconds: defaultYTDLPTimout,
		},
		Transcription: Transcription{
			BaseURL:             defaultAAIBaseURL,
			SpeakersExpected:    2,
			PollIntervalSeconds: defaultAAIPoll,
			TimeoutSeconds:      defaultAAITimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Pipeline: Pipeline{
			SkipExisting:        true,
			DemoMode:            true,
			DemoMaxSegments:     5,
			DemoMaxInsights:     10,
			GroupSize:           5,
			InsightBatchSize:    5,
			InsightSegmentLimit: 30,
			SummaryMinLength:    100,
			SummaryCharBudget:   4000,
			SummarySegmentLimit: 20,
			EnrichLimit:         3,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
