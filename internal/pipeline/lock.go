package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"buildvault/internal/services"
)

// episodeLock holds the advisory file lock for one episode.
type episodeLock struct {
	path string
	lock *flock.Flock
}

// lockEpisode takes <dir>/<key>.lock without blocking. A lock held by
// another process fails with services.ErrLocked.
func lockEpisode(dir, key string) (*episodeLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock", "create lock dir", err)
	}
	path := filepath.Join(dir, lockFileName(key))
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrLocked, "pipeline", "lock", fmt.Sprintf("another run holds %s", path), nil)
	}
	return &episodeLock{path: path, lock: fl}, nil
}

func (l *episodeLock) release() error {
	if l == nil {
		return nil
	}
	return l.lock.Unlock()
}

func lockFileName(key string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(key))
	if clean == "" {
		clean = "episode"
	}
	return clean + ".lock"
}
