package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

func newTestStore(t *testing.T, schemaVersion int, handler http.HandlerFunc) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	s, err := Open(server.URL, "anon-key", schemaVersion)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestFindEpisodeBySource(t *testing.T) {
	s := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/podcast_episodes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("youtube_video_id"); got != "eq.abc123" {
			t.Errorf("youtube_video_id filter = %q", got)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("missing apikey header")
		}
		_, _ = w.Write([]byte(`[{"id":"ep1","youtube_video_id":"abc123","title":"T","description":"D","duration":120,"youtube_url":"https://youtu.be/abc123","status":"downloaded","is_processed":false,"summary":null,"audio_file_path":"/a.mp3"}]`))
	})

	ep, err := s.FindEpisodeBySource(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("FindEpisodeBySource: %v", err)
	}
	if ep == nil || ep.ID != "ep1" || ep.DurationSeconds != 120 || ep.AudioPath != "/a.mp3" || ep.Summary != "" {
		t.Fatalf("unexpected episode %+v", ep)
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	s := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	if _, err := s.GetEpisode(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInsertSegmentsPostsBulkRows(t *testing.T) {
	var posted []map[string]any
	s := newTestStore(t, 1, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/segments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &posted); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := s.InsertSegments(context.Background(), []store.Segment{
		{ID: "s1", EpisodeID: "ep1", StartTime: 0, EndTime: 2, Speaker: "Speaker A", RawText: "hi", DisplayText: "hi", GroupID: "g"},
		{ID: "s2", EpisodeID: "ep1", StartTime: 2, EndTime: 5, Speaker: "Speaker B", RawText: "yo", DisplayText: "yo"},
	})
	if err != nil {
		t.Fatalf("InsertSegments: %v", err)
	}
	if len(posted) != 2 {
		t.Fatalf("posted %d rows", len(posted))
	}
	if _, ok := posted[0]["segment_group"]; ok {
		t.Fatal("base schema must not send segment_group")
	}
	if posted[1]["duration"].(float64) != 3 {
		t.Fatalf("duration = %v", posted[1]["duration"])
	}
}

func TestAssignSegmentGroupCapabilityGap(t *testing.T) {
	s := newTestStore(t, 1, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})
	err := s.AssignSegmentGroup(context.Background(), "g1", []string{"s1"})
	if !errors.Is(err, services.ErrCapabilityGap) {
		t.Fatalf("expected capability gap, got %v", err)
	}
}

func TestListUnenrichedLinksQuery(t *testing.T) {
	s := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("enriched") != "eq.false" || q.Get("limit") != "3" || q.Get("order") != "created_at.asc.nullslast" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`[{"id":"l1","episode_id":"ep1","url":"https://a.com","title":"a.com","description":"Link from T","link_type":"resource","enriched":false}]`))
	})
	links, err := s.ListUnenrichedLinks(context.Background(), 3)
	if err != nil || len(links) != 1 || links[0].URL != "https://a.com" {
		t.Fatalf("ListUnenrichedLinks = %+v, %v", links, err)
	}
}

func TestListSegmentsFollowsPages(t *testing.T) {
	const total = pageSize + 3
	var (
		mu      sync.Mutex
		offsets []string
	)
	s := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		offsets = append(offsets, q.Get("offset"))
		mu.Unlock()
		if q.Get("limit") != strconv.Itoa(pageSize) {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		from, _ := strconv.Atoi(q.Get("offset"))
		var rows []segmentRow
		for i := from; i < total && i < from+pageSize; i++ {
			rows = append(rows, segmentRow{
				ID:        "seg" + strconv.Itoa(i),
				EpisodeID: "ep1",
				StartTime: float64(i * 10),
				EndTime:   float64(i*10 + 10),
				RawText:   "text",
			})
		}
		_ = json.NewEncoder(w).Encode(rows)
	})

	segments, err := s.ListSegments(context.Background(), "ep1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != total {
		t.Fatalf("expected %d segments across pages, got %d", total, len(segments))
	}
	if segments[total-1].ID != "seg"+strconv.Itoa(total-1) {
		t.Fatalf("last segment = %+v", segments[total-1])
	}
	if len(offsets) != 2 || offsets[0] != "0" || offsets[1] != strconv.Itoa(pageSize) {
		t.Fatalf("unexpected page offsets %v", offsets)
	}
}

func TestListInsightsStopsOnShortPage(t *testing.T) {
	calls := 0
	s := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[{"id":"i1","episode_id":"ep1","category":"Quotes","content":"ship small","confidence_score":0.8,"segment_start":0,"segment_end":10}]`))
	})
	insights, err := s.ListInsights(context.Background(), "ep1")
	if err != nil || len(insights) != 1 || calls != 1 {
		t.Fatalf("ListInsights = %+v, %v after %d calls", insights, err, calls)
	}
}

func TestErrorResponseIsStoreError(t *testing.T) {
	s := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"insights\" does not exist"}`))
	})
	if _, err := s.ListInsights(context.Background(), "ep1"); !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestOpenRequiresCredentials(t *testing.T) {
	if _, err := Open("", "", 2); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
