// Package deps checks for the external programs buildvault shells out to.
package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Requirement defines an external program the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to read its version.
	VersionArgs []string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// CheckBinaries resolves each requirement on PATH and, when asked, records the
// first line of its version output.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

// Missing returns the required (non-optional) statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

func check(ctx context.Context, req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Available = true
	status.Path = path
	if len(req.VersionArgs) > 0 {
		status.Version = version(ctx, path, req.VersionArgs)
	}
	return status
}

func version(ctx context.Context, path string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
