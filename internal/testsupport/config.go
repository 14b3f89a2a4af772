package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"buildvault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory with a
// SQLite store, demo mode off, and no credentials.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.AudioDir = filepath.Join(base, "audio")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Store.SQLitePath = filepath.Join(base, "db", "buildvault.db")
	cfgVal.Pipeline.DemoMode = false

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSchemaVersion sets the declared store schema version.
func WithSchemaVersion(version int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.SchemaVersion = version
	}
}

// WithDemoMode toggles demo limits.
func WithDemoMode(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.DemoMode = enabled
	}
}

// WithLLM points the completion collaborator at baseURL with a test key.
func WithLLM(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = "test-key"
		b.cfg.LLM.BaseURL = baseURL
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. With no names, yt-dlp and ffmpeg are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.AudioDir)
}
