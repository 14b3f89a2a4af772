package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"buildvault/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "ASSEMBLYAI_API_KEY", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"DATABASE_URL", "INSIGHTS_MODEL", "SUMMARY_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ASSEMBLYAI_API_KEY", "aai-test")
	t.Setenv("INSIGHTS_MODEL", "gpt-4o-mini")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantAudio := filepath.Join(tempHome, ".local", "share", "buildvault", "audio")
	if cfg.Paths.AudioDir != wantAudio {
		t.Fatalf("unexpected audio dir: got %q want %q", cfg.Paths.AudioDir, wantAudio)
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Store.Backend)
	}
	if cfg.Store.SchemaVersion != 2 {
		t.Fatalf("expected schema version 2, got %d", cfg.Store.SchemaVersion)
	}
	if cfg.LLM.APIKey != "sk-test" || !cfg.LLMEnabled() {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Transcription.APIKey != "aai-test" {
		t.Fatalf("expected transcription key from env, got %q", cfg.Transcription.APIKey)
	}
	if got := cfg.InsightsLLM().Model; got != "gpt-4o-mini" {
		t.Fatalf("expected insights model override, got %q", got)
	}
	if got := cfg.SummaryLLM().Model; got != "gpt-4" {
		t.Fatalf("expected summary model to fall back to gpt-4, got %q", got)
	}
	if !cfg.Pipeline.DemoMode || !cfg.Pipeline.SkipExisting {
		t.Fatal("expected demo mode and skip-existing on by default")
	}
	if cfg.Pipeline.GroupSize != 5 || cfg.Pipeline.InsightBatchSize != 5 || cfg.Pipeline.EnrichLimit != 3 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.AudioDir, cfg.Paths.LogDir, cfg.Paths.LockDir, filepath.Dir(cfg.Store.SQLitePath)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "buildvault.toml")

	type payload struct {
		Paths struct {
			AudioDir string `toml:"audio_dir"`
		} `toml:"paths"`
		Store struct {
			Backend       string `toml:"backend"`
			PostgresDSN   string `toml:"postgres_dsn"`
			SchemaVersion int    `toml:"schema_version"`
		} `toml:"store"`
		Pipeline struct {
			DemoMode  bool `toml:"demo_mode"`
			GroupSize int  `toml:"group_size"`
		} `toml:"pipeline"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.AudioDir = filepath.Join(tempDir, "audio")
	custom.Store.Backend = "Postgres"
	custom.Store.PostgresDSN = "postgres://localhost/buildvault"
	custom.Store.SchemaVersion = 1
	custom.Pipeline.DemoMode = false
	custom.Pipeline.GroupSize = 8
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Store.Backend != config.BackendPostgres {
		t.Fatalf("expected normalized backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", cfg.Store.SchemaVersion)
	}
	if cfg.Pipeline.DemoMode {
		t.Fatal("expected demo mode disabled by file")
	}
	if cfg.Pipeline.GroupSize != 8 {
		t.Fatalf("expected group size 8, got %d", cfg.Pipeline.GroupSize)
	}
	if cfg.Pipeline.InsightBatchSize != 5 {
		t.Fatalf("expected untouched insight batch default, got %d", cfg.Pipeline.InsightBatchSize)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
	if cfg.DownloadConfig().AudioDir != custom.Paths.AudioDir {
		t.Fatalf("download config did not pick up audio dir: %q", cfg.DownloadConfig().AudioDir)
	}
}

func TestFileValueWinsOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[llm]\napi_key = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-file" {
		t.Fatalf("expected file key to win, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "mongo" }, "store.backend"},
		{"postgres without dsn", func(c *config.Config) { c.Store.Backend = config.BackendPostgres }, "store.postgres_dsn"},
		{"supabase without key", func(c *config.Config) {
			c.Store.Backend = config.BackendSupabase
			c.Store.SupabaseURL = "https://x.supabase.co"
		}, "store.supabase_url"},
		{"schema version", func(c *config.Config) { c.Store.SchemaVersion = 3 }, "store.schema_version"},
		{"group size", func(c *config.Config) { c.Pipeline.GroupSize = 0 }, "pipeline.group_size"},
		{"negative limit", func(c *config.Config) { c.Pipeline.InsightSegmentLimit = -1 }, "pipeline.insight_segment_limit"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("unexpected sample backend %q", cfg.Store.Backend)
	}
}
