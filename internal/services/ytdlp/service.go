// Package ytdlp implements the download collaborator by shelling out to
// yt-dlp: the best audio stream is extracted to the configured format and
// the video metadata is read from yt-dlp's JSON output.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"buildvault/internal/services"
)

const (
	// DefaultBinary is the yt-dlp executable name resolved on PATH.
	DefaultBinary       = "yt-dlp"
	defaultAudioFormat  = "mp3"
	defaultAudioQuality = "192"
	defaultTimeout      = 30 * time.Minute
)

// Config captures downloader settings.
type Config struct {
	Binary         string
	AudioDir       string
	AudioFormat    string
	AudioQuality   string
	TimeoutSeconds int
}

// Media is the downloaded asset plus the metadata the pipeline records.
type Media struct {
	SourceID        string
	Title           string
	Description     string
	DurationSeconds float64
	UploadDate      time.Time
	AudioPath       string
}

// CommandRunner executes name with args and returns stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service downloads audio with yt-dlp.
type Service struct {
	cfg    Config
	runner CommandRunner
}

// NewService creates a downloader with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = defaultAudioFormat
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = defaultAudioQuality
	}
	return &Service{cfg: cfg, runner: runCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		s.runner = runner
	}
}

// Binary returns the configured executable for preflight checks.
func (s *Service) Binary() string {
	return s.cfg.Binary
}

// Fetch downloads the audio for url into the audio directory. Failures are
// marked services.ErrDownload.
func (s *Service) Fetch(ctx context.Context, url string) (Media, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Media{}, services.Wrap(services.ErrDownload, "ytdlp", "fetch", "url required", nil)
	}
	if s.cfg.AudioDir == "" {
		return Media{}, services.Wrap(services.ErrConfiguration, "ytdlp", "fetch", "audio dir required", nil)
	}
	if err := os.MkdirAll(s.cfg.AudioDir, 0o755); err != nil {
		return Media{}, services.Wrap(services.ErrDownload, "ytdlp", "fetch", "ensure audio dir", err)
	}

	timeout := defaultTimeout
	if s.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(s.cfg.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, err := s.runner(runCtx, s.cfg.Binary, s.buildArgs(url)...)
	if err != nil {
		return Media{}, services.Wrap(services.ErrDownload, "ytdlp", "fetch", url, err)
	}
	media, err := parseInfo(stdout)
	if err != nil {
		return Media{}, services.Wrap(services.ErrDownload, "ytdlp", "parse info", url, err)
	}
	media.AudioPath = filepath.Join(s.cfg.AudioDir, media.SourceID+"."+s.cfg.AudioFormat)
	if _, err := os.Stat(media.AudioPath); err != nil {
		return Media{}, services.Wrap(services.ErrDownload, "ytdlp", "fetch", "audio file missing after download", err)
	}
	return media, nil
}

func (s *Service) buildArgs(url string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", s.cfg.AudioFormat,
		"--audio-quality", s.cfg.AudioQuality,
		"--output", filepath.Join(s.cfg.AudioDir, "%(id)s.%(ext)s"),
		"--dump-json",
		"--no-simulate",
		url,
	}
}

type videoInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	UploadDate  string  `json:"upload_date"`
}

// parseInfo reads the last JSON object yt-dlp printed.
func parseInfo(stdout []byte) (Media, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var info videoInfo
		if err := json.Unmarshal(line, &info); err != nil {
			return Media{}, fmt.Errorf("decode info json: %w", err)
		}
		if info.ID == "" {
			return Media{}, errors.New("info json missing id")
		}
		media := Media{
			SourceID:        info.ID,
			Title:           info.Title,
			Description:     info.Description,
			DurationSeconds: info.Duration,
		}
		if t, err := time.Parse("20060102", info.UploadDate); err == nil {
			media.UploadDate = t
		}
		return media, nil
	}
	return Media{}, errors.New("no info json in yt-dlp output")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
