package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"buildvault/internal/config"
	"buildvault/internal/links"
	"buildvault/internal/logging"
	"buildvault/internal/pipeline"
	"buildvault/internal/services"
	"buildvault/internal/services/assemblyai"
	"buildvault/internal/services/llm"
	"buildvault/internal/services/ytdlp"
	"buildvault/internal/store"
	"buildvault/internal/store/backend"
)

type commandContext struct {
	configFlag *string
	envFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger *slog.Logger
	store  store.Store
}

func newCommandContext(configFlag, envFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
	}
}

// ensureConfig loads the env file and configuration once per invocation.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := loadEnvFile(flagValue(c.envFlag)); err != nil {
			c.configErr = err
			return
		}
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "cli", "load config", "invalid configuration", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "cli", "ensure directories", "", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the logger from configuration. Logs go to stderr so
// --json output on stdout stays clean.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "logger", "", err)
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) ensureStore(ctx context.Context) (store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		if !errors.Is(err, services.ErrStore) && !errors.Is(err, services.ErrConfiguration) {
			err = services.Wrap(services.ErrStore, "cli", "open store", cfg.Store.Backend, err)
		}
		return nil, err
	}
	c.store = st
	return st, nil
}

// runner opens everything a pipeline run needs and applies overrides.
func (c *commandContext) runner(cmd *cobra.Command, override func(*pipeline.Options)) (*pipeline.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	st, err := c.ensureStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	opts := pipeline.OptionsFromConfig(cfg)
	if override != nil {
		override(&opts)
	}
	return pipeline.New(buildDeps(cfg, st, logger), opts, logger), nil
}

// buildDeps wires the collaborators the configuration enables. Interfaces
// are only assigned real clients so nil checks in the stages hold.
func buildDeps(cfg *config.Config, st store.Store, logger *slog.Logger) pipeline.Deps {
	deps := pipeline.Deps{
		Store:      st,
		Downloader: ytdlp.NewService(cfg.DownloadConfig()),
	}
	if strings.TrimSpace(cfg.Transcription.APIKey) != "" {
		deps.Transcriber = assemblyai.NewClient(cfg.TranscriptionConfig())
	}
	var enrichOpts []links.EnricherOption
	if cfg.LLMEnabled() {
		summarizer := llm.NewClient(cfg.SummaryLLM())
		deps.Summarizer = summarizer
		deps.Analyst = llm.NewClient(cfg.InsightsLLM())
		enrichOpts = append(enrichOpts, links.WithCompleter(summarizer))
	}
	deps.Enricher = links.NewEnricher(st, logger, enrichOpts...)
	return deps
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// loadEnvFile exports variables from path without overriding the existing
// environment. A missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrConfiguration, "cli", "load env", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
