package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"buildvault/internal/services"
)

const (
	// DefaultBaseURL is the public AssemblyAI API root.
	DefaultBaseURL = "https://api.assemblyai.com"

	defaultPollInterval  = 3 * time.Second
	defaultMaxPollDelay  = 30 * time.Second
	defaultJobTimeout    = 30 * time.Minute
	defaultHTTPTimeout   = 5 * time.Minute
	statusCompleted      = "completed"
	statusError          = "error"
	defaultSpeakersCount = 2
)

// Config captures the transcription provider settings.
type Config struct {
	APIKey              string
	BaseURL             string
	PollIntervalSeconds int
	TimeoutSeconds      int
}

// Utterance is one diarized span returned by the provider. Times are in
// milliseconds; Confidence is nil when the provider omits it.
type Utterance struct {
	Start      int64    `json:"start"`
	End        int64    `json:"end"`
	Speaker    string   `json:"speaker"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// Client talks to the AssemblyAI API.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	pollInterval time.Duration
	jobTimeout   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides the initial poll delay (useful for tests).
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// NewClient constructs a client from cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			APIKey:              strings.TrimSpace(cfg.APIKey),
			BaseURL:             strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			PollIntervalSeconds: cfg.PollIntervalSeconds,
			TimeoutSeconds:      cfg.TimeoutSeconds,
		},
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		pollInterval: defaultPollInterval,
		jobTimeout:   defaultJobTimeout,
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollIntervalSeconds > 0 {
		c.pollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	if cfg.TimeoutSeconds > 0 {
		c.jobTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads the audio file, runs a diarized transcription job and
// returns its utterances. Failures are marked services.ErrTranscription.
func (c *Client) Transcribe(ctx context.Context, audioPath string, speakersExpected int) ([]Utterance, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "assemblyai", "transcribe", "api key required", nil)
	}
	if speakersExpected <= 0 {
		speakersExpected = defaultSpeakersCount
	}

	uploadURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "assemblyai", "upload", audioPath, err)
	}
	jobID, err := c.submit(ctx, uploadURL, speakersExpected)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "assemblyai", "submit", "", err)
	}
	job, err := c.poll(ctx, jobID)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "assemblyai", "poll", jobID, err)
	}
	return job.Utterances, nil
}

func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", file, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

type transcriptRequest struct {
	AudioURL         string `json:"audio_url"`
	SpeakerLabels    bool   `json:"speaker_labels"`
	SpeakersExpected int    `json:"speakers_expected,omitempty"`
}

type transcriptJob struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Error         string      `json:"error"`
	AudioDuration float64     `json:"audio_duration"`
	Utterances    []Utterance `json:"utterances"`
}

func (c *Client) submit(ctx context.Context, audioURL string, speakersExpected int) (string, error) {
	body, err := json.Marshal(transcriptRequest{
		AudioURL:         audioURL,
		SpeakerLabels:    true,
		SpeakersExpected: speakersExpected,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	var job transcriptJob
	if err := c.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", errors.New("submit response missing id")
	}
	return job.ID, nil
}

var errStillProcessing = errors.New("transcript still processing")

func (c *Client) poll(ctx context.Context, jobID string) (transcriptJob, error) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.pollInterval),
		backoff.WithMaxInterval(defaultMaxPollDelay),
		backoff.WithMaxElapsedTime(c.jobTimeout),
	), ctx)

	return backoff.RetryWithData(func() (transcriptJob, error) {
		var job transcriptJob
		if err := c.do(ctx, http.MethodGet, "/v2/transcript/"+url.PathEscape(jobID), "", nil, &job); err != nil {
			var statusErr *httpStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests {
				return job, backoff.Permanent(err)
			}
			return job, err
		}
		switch job.Status {
		case statusCompleted:
			return job, nil
		case statusError:
			return job, backoff.Permanent(fmt.Errorf("provider reported error: %s", strings.TrimSpace(job.Error)))
		default:
			return job, errStillProcessing
		}
	}, policy)
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
