package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"buildvault/internal/config"
	"buildvault/internal/store"
	"buildvault/internal/store/backend"
)

// MustOpenStore opens the configured store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) store.Store {
	t.Helper()

	st, err := backend.Open(context.Background(), cfg.Store)
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustOpenSQLite opens a fresh SQLite store at the given schema version.
func MustOpenSQLite(t testing.TB, schemaVersion int) store.Store {
	t.Helper()
	return MustOpenStore(t, &config.Config{Store: config.Store{
		Backend:       config.BackendSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "buildvault.db"),
		SchemaVersion: schemaVersion,
	}})
}

// NewEpisode inserts a downloaded episode and returns it.
func NewEpisode(t testing.TB, st store.EpisodeStore, title, description string) *store.Episode {
	t.Helper()

	now := time.Now().UTC()
	ep := &store.Episode{
		ID:          uuid.NewString(),
		SourceID:    "src-" + uuid.NewString()[:8],
		Title:       title,
		Description: description,
		SourceURL:   "https://www.youtube.com/watch?v=test",
		PublishedAt: now,
		Status:      store.StatusDownloaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := st.CreateEpisode(context.Background(), ep); err != nil {
		t.Fatalf("CreateEpisode: %v", err)
	}
	return ep
}

// Segments builds n ten-second segments alternating between two speakers.
func Segments(episodeID string, n int) []store.Segment {
	out := make([]store.Segment, 0, n)
	for i := range n {
		speaker := "Speaker A"
		if i%2 == 1 {
			speaker = "Speaker B"
		}
		text := fmt.Sprintf("segment %d talks about building with docker and react", i)
		out = append(out, store.Segment{
			ID:          uuid.NewString(),
			EpisodeID:   episodeID,
			StartTime:   float64(i * 10),
			EndTime:     float64(i*10 + 9),
			Speaker:     speaker,
			RawText:     text,
			DisplayText: text,
			Confidence:  0.9,
			SegmentType: store.SegmentTypeUtterance,
		})
	}
	return out
}

// SeedSegments inserts n generated segments for the episode.
func SeedSegments(t testing.TB, st store.SegmentStore, episodeID string, n int) []store.Segment {
	t.Helper()

	segs := Segments(episodeID, n)
	if err := st.InsertSegments(context.Background(), segs); err != nil {
		t.Fatalf("InsertSegments: %v", err)
	}
	return segs
}
