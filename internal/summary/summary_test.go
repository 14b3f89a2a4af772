package summary_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"buildvault/internal/stage"
	"buildvault/internal/store"
	"buildvault/internal/summary"
	"buildvault/internal/testsupport"
)

type fakeCompleter struct {
	reply     string
	err       error
	calls     int
	system    string
	user      string
	maxTokens int
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string, maxTokens int) (string, error) {
	f.calls++
	f.system, f.user, f.maxTokens = system, user, maxTokens
	return f.reply, f.err
}

func TestGenerateStoresSummary(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Builders", "short")
	testsupport.SeedSegments(t, st, ep.ID, 30)
	llm := &fakeCompleter{reply: "  A great chat about shipping.  "}

	text, res := summary.New(st, llm, nil).Generate(context.Background(), ep, summary.Options{
		SkipExisting: true,
		SegmentLimit: 20,
		CharBudget:   500,
	})
	if res.Outcome != stage.OutcomeSuccess || text != "A great chat about shipping." {
		t.Fatalf("unexpected output %q %+v", text, res)
	}
	if llm.system != summary.SystemPrompt || llm.maxTokens != 300 {
		t.Fatalf("unexpected request: system=%q max=%d", llm.system, llm.maxTokens)
	}
	body, ok := strings.CutPrefix(llm.user, "Summarize this podcast transcript:\n\n")
	if !ok {
		t.Fatalf("missing user prefix: %q", llm.user)
	}
	if utf8.RuneCountInString(body) != 500 {
		t.Fatalf("expected transcript cut to budget, got %d chars", utf8.RuneCountInString(body))
	}
	if !strings.HasPrefix(body, "Speaker A: segment 0") {
		t.Fatalf("transcript not speaker-prefixed: %q", body[:40])
	}

	got, _ := st.GetEpisode(context.Background(), ep.ID)
	if got.Summary != text || got.Status != store.StatusSummarized {
		t.Fatalf("summary not persisted: %+v", got)
	}
}

func TestGenerateReusesLongExistingText(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Described", strings.Repeat("d", 150))
	llm := &fakeCompleter{reply: "unused"}

	text, res := summary.New(st, llm, nil).Generate(context.Background(), ep, summary.Options{SkipExisting: true})
	if res.Outcome != stage.OutcomeSkipped || text != ep.Description || llm.calls != 0 {
		t.Fatalf("expected description reuse, got %q %+v calls=%d", text, res, llm.calls)
	}
}

func TestGenerateWithoutTranscript(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Silent", "")
	llm := &fakeCompleter{reply: "unused"}

	text, _ := summary.New(st, llm, nil).Generate(context.Background(), ep, summary.Options{SkipExisting: true})
	if text != summary.NoTranscript || llm.calls != 0 {
		t.Fatalf("expected placeholder, got %q", text)
	}
	got, _ := st.GetEpisode(context.Background(), ep.ID)
	if got.Summary != "" {
		t.Fatal("placeholder must not be persisted")
	}
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name        string
		stored      string
		description string
		want        string
		llm     *fakeCompleter
		noModel bool
	}{
		{name: "completion error keeps stored", stored: "old summary", want: "old summary", llm: &fakeCompleter{err: errors.New("boom")}},
		{name: "completion error without stored", want: summary.Unavailable, llm: &fakeCompleter{err: errors.New("boom")}},
		{name: "completion error falls back to description", description: "Short show notes", want: "Short show notes", llm: &fakeCompleter{err: errors.New("boom")}},
		{name: "stored summary wins over description", stored: "old summary", description: "Short show notes", want: "old summary", llm: &fakeCompleter{err: errors.New("boom")}},
		{name: "empty reply", want: summary.Unavailable, llm: &fakeCompleter{reply: "   "}},
		{name: "no provider", want: summary.Unavailable, noModel: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testsupport.MustOpenSQLite(t, 2)
			ep := testsupport.NewEpisode(t, st, "Failing", tt.description)
			ep.Summary = tt.stored
			testsupport.SeedSegments(t, st, ep.ID, 2)

			var gen *summary.Generator
			if tt.noModel {
				gen = summary.New(st, nil, nil)
			} else {
				gen = summary.New(st, tt.llm, nil)
			}
			text, res := gen.Generate(context.Background(), ep, summary.Options{SkipExisting: false})
			if text != tt.want {
				t.Fatalf("got %q want %q", text, tt.want)
			}
			if res.Outcome != stage.OutcomeFailed || res.Err == nil {
				t.Fatalf("expected failed result, got %+v", res)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := summary.TruncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("got %q", got)
	}
	if got := summary.TruncateRunes("abc", 0); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
