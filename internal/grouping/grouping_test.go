package grouping_test

import (
	"context"
	"errors"
	"testing"

	"buildvault/internal/grouping"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
	"buildvault/internal/testsupport"
)

func TestGroupAssignsContiguousRuns(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Grouping", "")
	testsupport.SeedSegments(t, st, ep.ID, 12)

	res := grouping.New(st, nil).Group(context.Background(), ep, grouping.Options{SkipExisting: true, GroupSize: 5})
	if res.Outcome != stage.OutcomeSuccess || res.Count != 3 {
		t.Fatalf("expected 3 groups, got %+v", res)
	}

	segs, err := st.ListSegments(context.Background(), ep.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	sizes := map[string]int{}
	for i, seg := range segs {
		if seg.GroupID == "" {
			t.Fatalf("segment %d has no group", i)
		}
		sizes[seg.GroupID]++
		if i%5 != 0 && seg.GroupID != segs[i-1].GroupID {
			t.Fatalf("segment %d split from its run", i)
		}
	}
	if len(sizes) != 3 {
		t.Fatalf("expected 3 distinct groups, got %d", len(sizes))
	}
	if sizes[segs[10].GroupID] != 2 {
		t.Fatalf("expected trailing group of 2, got %d", sizes[segs[10].GroupID])
	}

	got, _ := st.GetEpisode(context.Background(), ep.ID)
	if !got.IsProcessed || got.Status != store.StatusProcessed {
		t.Fatalf("episode not marked processed: %+v", got)
	}
	if !ep.IsProcessed {
		t.Fatal("in-memory episode should reflect processed flag")
	}
}

func TestGroupSkipsProcessedEpisodes(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Done", "")
	testsupport.SeedSegments(t, st, ep.ID, 3)
	ep.IsProcessed = true

	res := grouping.New(st, nil).Group(context.Background(), ep, grouping.Options{SkipExisting: true})
	if res.Outcome != stage.OutcomeSkipped {
		t.Fatalf("expected skip, got %+v", res)
	}
	segs, _ := st.ListSegments(context.Background(), ep.ID)
	for _, seg := range segs {
		if seg.GroupID != "" {
			t.Fatal("skip must not write groups")
		}
	}
}

func TestGroupWithoutSegmentsDoesNotMarkProcessed(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Empty", "")

	res := grouping.New(st, nil).Group(context.Background(), ep, grouping.Options{})
	if res.Outcome != stage.OutcomeSuccess || res.Count != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := st.GetEpisode(context.Background(), ep.ID)
	if got.IsProcessed {
		t.Fatal("empty episode should not be marked processed")
	}
}

func TestGroupDegradesWithoutGroupColumn(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 1)
	ep := testsupport.NewEpisode(t, st, "Old schema", "")
	testsupport.SeedSegments(t, st, ep.ID, 6)

	res := grouping.New(st, nil).Group(context.Background(), ep, grouping.Options{GroupSize: 5})
	if res.Outcome != stage.OutcomeDegraded || !res.OK() {
		t.Fatalf("expected degraded success, got %+v", res)
	}
	if !res.IsCapabilityGap() || !errors.Is(res.Err, services.ErrCapabilityGap) {
		t.Fatalf("expected capability gap, got %v", res.Err)
	}
	if res.Count != 0 {
		t.Fatalf("expected zero group writes, got %d", res.Count)
	}
	got, _ := st.GetEpisode(context.Background(), ep.ID)
	if !got.IsProcessed {
		t.Fatal("episode should still be marked processed")
	}
}
