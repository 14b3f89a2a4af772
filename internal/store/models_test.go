package store_test

import (
	"testing"

	"buildvault/internal/store"
)

func TestStatusOrdering(t *testing.T) {
	if !store.StatusDownloaded.Before(store.StatusTranscribed) {
		t.Fatal("downloaded should precede transcribed")
	}
	if store.StatusAnalyzed.Before(store.StatusSummarized) {
		t.Fatal("analyzed should not precede summarized")
	}
	if _, ok := store.ParseStatus(" Summarized "); !ok {
		t.Fatal("expected summarized to parse")
	}
	if _, ok := store.ParseStatus("archived"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestSegmentTextPrefersDisplayText(t *testing.T) {
	seg := store.Segment{RawText: "raw", DisplayText: "  shown "}
	if got := seg.Text(); got != "shown" {
		t.Fatalf("Text() = %q, want shown", got)
	}
	seg.DisplayText = ""
	if got := seg.Text(); got != "raw" {
		t.Fatalf("Text() = %q, want raw", got)
	}
}

func TestSortSegments(t *testing.T) {
	segs := []store.Segment{
		{ID: "c", StartTime: 5, EndTime: 6},
		{ID: "b", StartTime: 1, EndTime: 3},
		{ID: "a", StartTime: 1, EndTime: 2},
	}
	store.SortSegments(segs)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if segs[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, segs[i].ID, id)
		}
	}
}

func TestUnionIDs(t *testing.T) {
	got := store.UnionIDs([]string{"ep2", "ep1"}, []string{"ep1", "", "ep3"})
	want := []string{"ep1", "ep2", "ep3"}
	if len(got) != len(want) {
		t.Fatalf("UnionIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UnionIDs = %v, want %v", got, want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		label string
		want  store.Category
		ok    bool
	}{
		{"🧠 Frameworks & Exercises", store.CategoryFrameworks, true},
		{"technical insights", store.CategoryTechnical, true},
		{"📦 Products", store.CategoryProducts, true},
		{"Stories and Anecdotes", store.CategoryStories, true},
		{"Hot Takes", store.DefaultCategory, false},
		{"", store.DefaultCategory, false},
	}
	for _, tc := range tests {
		got, ok := store.ParseCategory(tc.label)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseCategory(%q) = %q, %v; want %q, %v", tc.label, got, ok, tc.want, tc.ok)
		}
	}
	for _, c := range store.Categories() {
		if !c.Valid() {
			t.Errorf("category %q should be valid", c)
		}
	}
}

func TestCapabilitiesFor(t *testing.T) {
	caps, err := store.CapabilitiesFor(1)
	if err != nil || caps.SegmentGroups {
		t.Fatalf("v1 caps = %+v, %v", caps, err)
	}
	caps, err = store.CapabilitiesFor(2)
	if err != nil || !caps.SegmentGroups {
		t.Fatalf("v2 caps = %+v, %v", caps, err)
	}
	if _, err := store.CapabilitiesFor(3); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestBatches(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 5, nil},
		{5, 5, []int{5}},
		{12, 5, []int{5, 5, 2}},
		{3, 0, nil},
	}
	for _, tt := range tests {
		batches := store.Batches(make([]store.Segment, tt.n), tt.size)
		if len(batches) != len(tt.want) {
			t.Fatalf("Batches(%d,%d): got %d batches want %d", tt.n, tt.size, len(batches), len(tt.want))
		}
		for i, b := range batches {
			if len(b) != tt.want[i] {
				t.Fatalf("Batches(%d,%d)[%d]: got %d want %d", tt.n, tt.size, i, len(b), tt.want[i])
			}
		}
	}
}

func TestTranscriptPrefixesSpeakers(t *testing.T) {
	got := store.Transcript([]store.Segment{
		{Speaker: "Speaker A", RawText: "hello"},
		{Speaker: "Speaker B", DisplayText: "hi there"},
	})
	if want := "Speaker A: hello\nSpeaker B: hi there"; got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
}
