package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.AudioDir, err = expandPath(orDefault(c.Paths.AudioDir, defaultAudioDir)); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LockDir, err = expandPath(orDefault(c.Paths.LockDir, defaultLockDir)); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	var err error
	if c.Store.SQLitePath, err = expandPath(orDefault(c.Store.SQLitePath, defaultSQLitePath)); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	c.Store.PostgresDSN = envFallback(c.Store.PostgresDSN, "DATABASE_URL")
	c.Store.SupabaseURL = envFallback(c.Store.SupabaseURL, "SUPABASE_URL")
	c.Store.SupabaseKey = envFallback(c.Store.SupabaseKey, "SUPABASE_ANON_KEY")
	if c.Store.SchemaVersion == 0 {
		c.Store.SchemaVersion = 2
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = orDefault(c.Download.Binary, defaultYTDLPBinary)
	c.Download.AudioFormat = orDefault(c.Download.AudioFormat, defaultYTDLPFormat)
	c.Download.AudioQuality = strings.TrimSuffix(orDefault(c.Download.AudioQuality, defaultYTDLPQual), "K")
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultYTDLPTimout
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = envFallback(c.Transcription.APIKey, "ASSEMBLYAI_API_KEY")
	c.Transcription.BaseURL = orDefault(c.Transcription.BaseURL, defaultAAIBaseURL)
	if c.Transcription.PollIntervalSeconds <= 0 {
		c.Transcription.PollIntervalSeconds = defaultAAIPoll
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultAAITimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = envFallback(c.LLM.APIKey, "OPENAI_API_KEY")
	c.LLM.BaseURL = orDefault(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = orDefault(c.LLM.Model, defaultLLMModel)
	c.LLM.SummaryModel = envFallback(c.LLM.SummaryModel, "SUMMARY_MODEL")
	c.LLM.InsightsModel = envFallback(c.LLM.InsightsModel, "INSIGHTS_MODEL")
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

// envFallback keeps an explicit file value and otherwise reads the named variable.
func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}
