package products_test

import (
	"context"
	"testing"

	"buildvault/internal/products"
	"buildvault/internal/stage"
	"buildvault/internal/store"
	"buildvault/internal/testsupport"
)

func insight(episodeID, content string) store.Insight {
	return store.Insight{EpisodeID: episodeID, Category: store.CategoryProducts, Content: content}
}

func TestMatchIsCaseInsensitiveSubstring(t *testing.T) {
	got := products.Match("We moved from AWS to Docker on Kubernetes")
	names := make([]string, len(got))
	for i, k := range got {
		names[i] = k.Name
	}
	want := []string{"Docker", "Kubernetes", "AWS"}
	if len(names) != len(want) {
		t.Fatalf("got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v want %v", names, want)
		}
	}
	if len(products.Match("nothing relevant")) != 0 {
		t.Fatal("expected no matches")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	rec := products.New(st, nil)
	ep := testsupport.NewEpisode(t, st, "Tools", "")
	batch := []store.Insight{
		insight(ep.ID, "Docker makes local dev painless"),
		insight(ep.ID, "They run docker in CI and deploy with Vercel"),
		insight(ep.ID, "No tools here"),
	}

	n, res := rec.Reconcile(context.Background(), batch)
	if n != 2 || res.Outcome != stage.OutcomeSuccess {
		t.Fatalf("expected 2 products touched, got %d %+v", n, res)
	}
	docker, err := st.GetProduct(context.Background(), "Docker")
	if err != nil || docker == nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if docker.MentionCount != 2 || len(docker.EpisodeIDs) != 1 || docker.Category != "DevOps" {
		t.Fatalf("unexpected docker row %+v", docker)
	}
	if docker.Description != "Docker mentioned in podcast insights" {
		t.Fatalf("unexpected description %q", docker.Description)
	}

	if n, _ := rec.Reconcile(context.Background(), batch); n != 2 {
		t.Fatalf("rerun touched %d products", n)
	}
	again, _ := st.GetProduct(context.Background(), "Docker")
	if again.MentionCount != 2 || len(again.EpisodeIDs) != 1 {
		t.Fatalf("rerun changed registry: %+v", again)
	}
}

func TestReconcileAccumulatesAcrossEpisodes(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	rec := products.New(st, nil)
	first := testsupport.NewEpisode(t, st, "One", "")
	second := testsupport.NewEpisode(t, st, "Two", "")

	rec.Reconcile(context.Background(), []store.Insight{insight(first.ID, "openai api")})
	rec.Reconcile(context.Background(), []store.Insight{
		insight(second.ID, "OpenAI models"),
		insight(second.ID, "openai pricing"),
	})

	p, _ := st.GetProduct(context.Background(), "OpenAI")
	if p.MentionCount != 3 || len(p.EpisodeIDs) != 2 {
		t.Fatalf("expected 3 mentions over 2 episodes, got %+v", p)
	}
	if p.EpisodeMentions[first.ID] != 1 || p.EpisodeMentions[second.ID] != 2 {
		t.Fatalf("unexpected per-episode contributions %v", p.EpisodeMentions)
	}

	episodeProducts, err := st.ListProductsForEpisode(context.Background(), first.ID)
	if err != nil || len(episodeProducts) != 1 || episodeProducts[0].Name != "OpenAI" {
		t.Fatalf("ListProductsForEpisode: %v %+v", err, episodeProducts)
	}
}

func TestReconcileNeverLowersMentionCount(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	rec := products.New(st, nil)
	ep := testsupport.NewEpisode(t, st, "Recomputed", "")

	rec.Reconcile(context.Background(), []store.Insight{
		insight(ep.ID, "docker for local dev"),
		insight(ep.ID, "docker in CI"),
		insight(ep.ID, "docker compose files"),
	})
	before, _ := st.GetProduct(context.Background(), "Docker")
	if before.MentionCount != 3 {
		t.Fatalf("expected 3 mentions, got %+v", before)
	}

	if _, res := rec.Reconcile(context.Background(), []store.Insight{insight(ep.ID, "docker again")}); !res.OK() {
		t.Fatalf("reconcile: %+v", res)
	}
	after, _ := st.GetProduct(context.Background(), "Docker")
	if after.MentionCount < before.MentionCount || after.EpisodeMentions[ep.ID] != 3 {
		t.Fatalf("mention count decreased %d -> %d (%v)", before.MentionCount, after.MentionCount, after.EpisodeMentions)
	}

	rec.Reconcile(context.Background(), []store.Insight{
		insight(ep.ID, "docker one"), insight(ep.ID, "docker two"),
		insight(ep.ID, "docker three"), insight(ep.ID, "docker four"),
	})
	grown, _ := st.GetProduct(context.Background(), "Docker")
	if grown.MentionCount != 4 || len(grown.EpisodeIDs) != 1 {
		t.Fatalf("expected growth to 4 mentions, got %+v", grown)
	}
}

func TestReconcileWithoutMentions(t *testing.T) {
	st := testsupport.MustOpenSQLite(t, 2)
	n, res := products.New(st, nil).Reconcile(context.Background(), nil)
	if n != 0 || res.Outcome != stage.OutcomeSuccess {
		t.Fatalf("unexpected %d %+v", n, res)
	}
}
