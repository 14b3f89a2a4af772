package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"buildvault/internal/config"
	"buildvault/internal/deps"
	"buildvault/internal/services/llm"
)

// MinFreeBytes is the free space below which the audio directory warns.
const MinFreeBytes uint64 = 1 << 30

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg llm.Config) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(cfg, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", cfg.Model)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports the space available to unprivileged users at path,
// warning below minFree.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := fs.Bavail * uint64(fs.Bsize)
	detail := fmt.Sprintf("%s free", humanBytes(free))
	if free < minFree {
		return Result{Name: name, Passed: true, Warning: true, Detail: detail + fmt.Sprintf(" (below %s; long episodes may not fit)", humanBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps checks the programs the downloader shells out to.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []Result {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Download.Binary,
			Description: "Required to download episode audio",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Required by yt-dlp to extract audio",
			VersionArgs: []string{"-version"},
		},
	}
	statuses := deps.CheckBinaries(ctx, requirements)
	out := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		r := Result{Name: s.Name, Passed: s.Available || s.Optional}
		switch {
		case s.Available && s.Version != "":
			r.Detail = fmt.Sprintf("%s (%s)", s.Path, s.Version)
		case s.Available:
			r.Detail = s.Path
		default:
			r.Detail = fmt.Sprintf("%s: %s", s.Description, s.Detail)
			r.Warning = s.Optional
		}
		out = append(out, r)
	}
	return out
}

// CheckStore pings the configured datastore.
func CheckStore(ctx context.Context, backend string, st Pinger) Result {
	name := "Store (" + backend + ")"
	if st == nil {
		return Result{Name: name, Detail: "store not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckCredential reports whether a credential is set without revealing it.
func CheckCredential(name, value, envKey string) Result {
	value = strings.TrimSpace(value)
	if value == "" {
		return Result{Name: name, Detail: fmt.Sprintf("missing (set it in the config file or %s)", envKey)}
	}
	return Result{Name: name, Passed: true, Detail: "set (" + mask(value) + ")"}
}

func mask(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", 4) + value[len(value)-4:]
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
