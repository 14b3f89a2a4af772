package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"buildvault/internal/services/assemblyai"
	"buildvault/internal/services/llm"
	"buildvault/internal/services/ytdlp"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directories.
type Paths struct {
	AudioDir string `toml:"audio_dir"`
	LogDir   string `toml:"log_dir"`
	LockDir  string `toml:"lock_dir"`
}

// Store selects and configures the datastore backend.
type Store struct {
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	PostgresDSN   string `toml:"postgres_dsn"`
	SupabaseURL   string `toml:"supabase_url"`
	SupabaseKey   string `toml:"supabase_key"`
	SchemaVersion int    `toml:"schema_version"`
}

// Download configures the yt-dlp collaborator.
type Download struct {
	Binary         string `toml:"binary"`
	AudioFormat    string `toml:"audio_format"`
	AudioQuality   string `toml:"audio_quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription configures the speech-to-text collaborator.
type Transcription struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	SpeakersExpected    int    `toml:"speakers_expected"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// LLM configures the chat completion collaborator. SummaryModel and
// InsightsModel fall back to Model when empty.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	SummaryModel   string `toml:"summary_model"`
	InsightsModel  string `toml:"insights_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline holds the per-stage knobs.
type Pipeline struct {
	SkipExisting        bool `toml:"skip_existing"`
	DemoMode            bool `toml:"demo_mode"`
	DemoMaxSegments     int  `toml:"demo_max_segments"`
	DemoMaxInsights     int  `toml:"demo_max_insights"`
	GroupSize           int  `toml:"group_size"`
	InsightBatchSize    int  `toml:"insight_batch_size"`
	InsightSegmentLimit int  `toml:"insight_segment_limit"`
	SummaryMinLength    int  `toml:"summary_min_length"`
	SummaryCharBudget   int  `toml:"summary_char_budget"`
	SummarySegmentLimit int  `toml:"summary_segment_limit"`
	EnrichLimit         int  `toml:"enrich_limit"`
}

// Logging contains logging configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all buildvault configuration values.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
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

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

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
		expanded, err := expandPath(path)
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the audio, log, and lock directories, plus the
// parent of the SQLite database when that backend is selected.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.AudioDir, c.Paths.LogDir, c.Paths.LockDir}
	if c.Store.Backend == BackendSQLite && c.Store.SQLitePath != "" {
		dirs = append(dirs, filepath.Dir(c.Store.SQLitePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DownloadConfig returns the settings for the yt-dlp collaborator.
func (c *Config) DownloadConfig() ytdlp.Config {
	return ytdlp.Config{
		Binary:         c.Download.Binary,
		AudioDir:       c.Paths.AudioDir,
		AudioFormat:    c.Download.AudioFormat,
		AudioQuality:   c.Download.AudioQuality,
		TimeoutSeconds: c.Download.TimeoutSeconds,
	}
}

// TranscriptionConfig returns the settings for the transcription collaborator.
func (c *Config) TranscriptionConfig() assemblyai.Config {
	return assemblyai.Config{
		APIKey:              c.Transcription.APIKey,
		BaseURL:             c.Transcription.BaseURL,
		PollIntervalSeconds: c.Transcription.PollIntervalSeconds,
		TimeoutSeconds:      c.Transcription.TimeoutSeconds,
	}
}

// LLMConfig returns the shared completion settings.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		APIKey:         c.LLM.APIKey,
		BaseURL:        c.LLM.BaseURL,
		Model:          c.LLM.Model,
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// SummaryLLM returns completion settings for the summary stage.
func (c *Config) SummaryLLM() llm.Config {
	return c.LLMConfig().WithModel(c.LLM.SummaryModel)
}

// InsightsLLM returns completion settings for the insight stage.
func (c *Config) InsightsLLM() llm.Config {
	return c.LLMConfig().WithModel(c.LLM.InsightsModel)
}

// LLMEnabled reports whether an API key is available for completions.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
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
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
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
