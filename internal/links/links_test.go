package links_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"buildvault/internal/links"
	"buildvault/internal/stage"
	"buildvault/internal/store"
	"buildvault/internal/testsupport"
)

func TestFindURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"trailing punctuation", "See https://a.com/x, also http://b.org.", []string{"https://a.com/x", "http://b.org"}},
		{"duplicates collapse", "https://a.com and again https://a.com;", []string{"https://a.com"}},
		{"parenthesized", "(docs: https://docs.example.com/start)", []string{"https://docs.example.com/start"}},
		{"stops at quotes and brackets", `<a href="https://x.dev/p">[https://y.dev]</a>`, []string{"https://x.dev/p", "https://y.dev"}},
		{"none", "no links here, just ftp://old.example", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := links.FindURLs(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("FindURLs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHost(t *testing.T) {
	if got := links.Host("https://www.GitHub.com/org/repo"); got != "github.com" {
		t.Fatalf("Host() = %q", got)
	}
	if got := links.Host("http://b.org"); got != "b.org" {
		t.Fatalf("Host() = %q", got)
	}
}

func TestExtractStoresLinks(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Show notes", "See https://a.com/x, also http://www.b.org. And https://a.com/x again.")

	got, res := links.NewExtractor(st, nil).Extract(context.Background(), ep, links.Options{SkipExisting: true})
	if res.Outcome != stage.OutcomeSuccess || len(got) != 2 {
		t.Fatalf("unexpected result %+v (%d links)", res, len(got))
	}
	if got[0].URL != "https://a.com/x" || got[0].Title != "a.com" || got[1].Title != "b.org" {
		t.Fatalf("unexpected links %+v", got)
	}
	if got[0].Description != "Link from Show notes" || got[0].LinkType != store.LinkTypeResource || got[0].Enriched {
		t.Fatalf("unexpected link metadata %+v", got[0])
	}

	again, res := links.NewExtractor(st, nil).Extract(context.Background(), ep, links.Options{SkipExisting: true})
	if res.Outcome != stage.OutcomeSkipped || len(again) != 2 {
		t.Fatalf("expected skip on rerun, got %+v", res)
	}

	_, res = links.NewExtractor(st, nil).Extract(context.Background(), ep, links.Options{SkipExisting: false})
	if res.Count != 2 {
		t.Fatalf("recompute should reproduce the same links, got %+v", res)
	}
	stored, _ := st.ListLinks(context.Background(), ep.ID)
	if len(stored) != 2 {
		t.Fatalf("recompute duplicated links: %d rows", len(stored))
	}
}

func TestExtractRecomputeKeepsEnrichment(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	ep := testsupport.NewEpisode(t, st, "Show notes", "Read https://a.com/post and https://b.org/")
	x := links.NewExtractor(st, nil)

	first, _ := x.Extract(context.Background(), ep, links.Options{SkipExisting: true})
	if len(first) != 2 {
		t.Fatalf("expected 2 links, got %+v", first)
	}
	if err := st.MarkLinkEnriched(context.Background(), first[0].ID, "A post about shipping."); err != nil {
		t.Fatalf("MarkLinkEnriched: %v", err)
	}

	ep.Description = "Read https://a.com/post and https://c.dev/"
	_, res := x.Extract(context.Background(), ep, links.Options{SkipExisting: false})
	if !res.OK() || res.Count != 2 {
		t.Fatalf("unexpected recompute result %+v", res)
	}

	stored, _ := st.ListLinks(context.Background(), ep.ID)
	byURL := map[string]store.Link{}
	for _, l := range stored {
		byURL[l.URL] = l
	}
	kept := byURL["https://a.com/post"]
	if !kept.Enriched || kept.Description != "A post about shipping." {
		t.Fatalf("enrichment lost on recompute: %+v", kept)
	}
	if added := byURL["https://c.dev/"]; added.Enriched || added.Description != "Link from Show notes" {
		t.Fatalf("new link should start unenriched: %+v", added)
	}
	if _, ok := byURL["https://b.org/"]; ok || len(stored) != 2 {
		t.Fatalf("dropped URL still stored: %+v", stored)
	}
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(context.Context, string, string, int) (string, error) {
	f.calls++
	return f.reply, f.err
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/meta", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title> Meta Page </title>
<meta name="description" content="A page   with a description."></head>
<body><script>var x = 1;</script><p>Body text.</p></body></html>`))
	})
	mux.HandleFunc("/og", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="OG Title">
<meta property="og:description" content="From open graph."></head><body></body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func seedLinks(t *testing.T, st store.Store, urls ...string) *store.Episode {
	t.Helper()
	ep := testsupport.NewEpisode(t, st, "Links", "")
	var batch []store.Link
	for i, u := range urls {
		batch = append(batch, store.Link{
			ID:        ep.ID + "-" + string(rune('a'+i)),
			EpisodeID: ep.ID,
			URL:       u,
			Title:     links.Host(u),
			LinkType:  store.LinkTypeResource,
		})
	}
	if err := st.InsertLinks(context.Background(), batch); err != nil {
		t.Fatalf("InsertLinks: %v", err)
	}
	return ep
}

func TestEnrichUsesPageMetadataAndFallback(t *testing.T) {
	srv := pageServer(t)
	st := testsupport.MustOpenSQLite(t, 2)
	ep := seedLinks(t, st, srv.URL+"/meta", srv.URL+"/og", srv.URL+"/missing", srv.URL+"/later")

	n, res := links.NewEnricher(st, nil, links.WithHTTPClient(srv.Client())).Enrich(context.Background(), 3)
	if n != 3 || res.Outcome != stage.OutcomeSuccess {
		t.Fatalf("expected 3 enriched, got %d %+v", n, res)
	}
	if !strings.Contains(res.Detail, "1 of 3") {
		t.Fatalf("expected one fallback in detail, got %q", res.Detail)
	}

	stored, _ := st.ListLinks(context.Background(), ep.ID)
	byURL := map[string]store.Link{}
	for _, l := range stored {
		byURL[l.URL] = l
	}
	if got := byURL[srv.URL+"/meta"]; !got.Enriched || got.Description != "A page with a description." {
		t.Fatalf("meta link: %+v", got)
	}
	if got := byURL[srv.URL+"/og"].Description; got != "From open graph." {
		t.Fatalf("og link description %q", got)
	}
	missing := byURL[srv.URL+"/missing"]
	if !missing.Enriched || missing.Description != links.Fallback(missing.Title) {
		t.Fatalf("missing page should be marked with fallback: %+v", missing)
	}
	if byURL[srv.URL+"/later"].Enriched {
		t.Fatal("limit should leave the fourth link queued")
	}
}

func TestEnrichPrefersModelSummary(t *testing.T) {
	srv := pageServer(t)
	st := testsupport.MustOpenSQLite(t, 2)
	ep := seedLinks(t, st, srv.URL+"/meta")
	llm := &fakeCompleter{reply: "A short summary."}

	n, _ := links.NewEnricher(st, nil, links.WithHTTPClient(srv.Client()), links.WithCompleter(llm)).Enrich(context.Background(), 3)
	if n != 1 || llm.calls != 1 {
		t.Fatalf("expected one summarized link, got n=%d calls=%d", n, llm.calls)
	}
	stored, _ := st.ListLinks(context.Background(), ep.ID)
	if stored[0].Description != "A short summary." {
		t.Fatalf("unexpected description %q", stored[0].Description)
	}

	// A failing model falls back to page metadata.
	ep2 := seedLinks(t, st, srv.URL+"/meta")
	llm.err = errors.New("rate limited")
	links.NewEnricher(st, nil, links.WithHTTPClient(srv.Client()), links.WithCompleter(llm)).Enrich(context.Background(), 3)
	stored, _ = st.ListLinks(context.Background(), ep2.ID)
	if stored[0].Description != "A page with a description." {
		t.Fatalf("expected metadata fallback, got %q", stored[0].Description)
	}
}

func TestParsePageStripsScripts(t *testing.T) {
	page, err := links.ParsePage(strings.NewReader(`<html><head><title>T</title></head><body><script>bad()</script><p>Good   text</p></body></html>`))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if page.Title != "T" || page.Text != "Good text" {
		t.Fatalf("unexpected page %+v", page)
	}
}
