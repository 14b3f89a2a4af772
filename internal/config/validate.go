package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if c.Transcription.SpeakersExpected < 0 {
		return errors.New("transcription.speakers_expected must be >= 0")
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("store.sqlite_path must be set when store.backend is sqlite")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn must be set when store.backend is postgres (or set DATABASE_URL)")
		}
	case BackendSupabase:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			return errors.New("store.supabase_url and store.supabase_key must be set when store.backend is supabase (or set SUPABASE_URL and SUPABASE_ANON_KEY)")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of sqlite, postgres, supabase", c.Store.Backend)
	}
	if c.Store.SchemaVersion < 1 || c.Store.SchemaVersion > 2 {
		return fmt.Errorf("store.schema_version must be 1 or 2, got %d", c.Store.SchemaVersion)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.group_size":          c.Pipeline.GroupSize,
		"pipeline.insight_batch_size":  c.Pipeline.InsightBatchSize,
		"pipeline.summary_char_budget": c.Pipeline.SummaryCharBudget,
		"pipeline.enrich_limit":        c.Pipeline.EnrichLimit,
	}); err != nil {
		return err
	}
	return ensureNonNegativeMap(map[string]int{
		"pipeline.demo_max_segments":     c.Pipeline.DemoMaxSegments,
		"pipeline.demo_max_insights":     c.Pipeline.DemoMaxInsights,
		"pipeline.insight_segment_limit": c.Pipeline.InsightSegmentLimit,
		"pipeline.summary_min_length":    c.Pipeline.SummaryMinLength,
		"pipeline.summary_segment_limit": c.Pipeline.SummarySegmentLimit,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}
