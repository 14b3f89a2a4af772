// Package products maintains the registry of known tools mentioned in
// insights.
package products

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

// Known is one entry of the fixed product table.
type Known struct {
	Key      string
	Name     string
	Category string
}

var known = []Known{
	{Key: "langchain", Name: "LangChain", Category: "AI Framework"},
	{Key: "supabase", Name: "Supabase", Category: "Database"},
	{Key: "vercel", Name: "Vercel", Category: "Deployment"},
	{Key: "nextjs", Name: "Next.js", Category: "Framework"},
	{Key: "react", Name: "React", Category: "Framework"},
	{Key: "openai", Name: "OpenAI", Category: "AI Provider"},
	{Key: "github", Name: "GitHub", Category: "Version Control"},
	{Key: "docker", Name: "Docker", Category: "DevOps"},
	{Key: "kubernetes", Name: "Kubernetes", Category: "DevOps"},
	{Key: "aws", Name: "AWS", Category: "Cloud Provider"},
}

// Store is the slice of the datastore the reconciler touches.
type Store interface {
	GetProduct(ctx context.Context, name string) (*store.Product, error)
	InsertProduct(ctx context.Context, p *store.Product) error
	UpdateProduct(ctx context.Context, p *store.Product) error
}

// Reconciler folds insight mentions into the product registry.
type Reconciler struct {
	store  Store
	logger *slog.Logger
}

// New constructs a reconciler.
func New(st Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  st,
		logger: logging.NewComponentLogger(logger, stage.Products),
	}
}

// mention accumulates one product's occurrences per episode.
type mention struct {
	entry    Known
	episodes map[string]int
}

// Match returns the known products whose key occurs in text, in table order.
func Match(text string) []Known {
	lower := strings.ToLower(text)
	var out []Known
	for _, k := range known {
		if strings.Contains(lower, k.Key) {
			out = append(out, k)
		}
	}
	return out
}

// Reconcile records every known product mentioned in insights and returns the
// number of distinct products touched. Each episode's contribution to a
// product's mention count replaces any earlier contribution from the same
// episode, so reconciling the same insights twice changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, insights []store.Insight) (int, stage.Result) {
	logger := logging.WithContext(ctx, r.logger)

	found := map[string]*mention{}
	for _, in := range insights {
		for _, k := range Match(in.Content) {
			m, ok := found[k.Name]
			if !ok {
				m = &mention{entry: k, episodes: map[string]int{}}
				found[k.Name] = m
			}
			m.episodes[in.EpisodeID]++
		}
	}
	if len(found) == 0 {
		return 0, stage.Succeeded(stage.Products, 0, "no known products mentioned")
	}

	for _, name := range slices.Sorted(maps.Keys(found)) {
		if err := r.apply(ctx, found[name]); err != nil {
			logging.WarnWithContext(logger, "product registry update failed", logging.EventStageFailure,
				logging.String("product", name),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldImpact, "product registry left partially updated"),
				logging.Error(err),
			)
			return 0, stage.Failed(stage.Products, err)
		}
	}

	logger.Info("products reconciled", logging.Int(logging.FieldCount, len(found)))
	return len(found), stage.Succeeded(stage.Products, len(found), "")
}

func (r *Reconciler) apply(ctx context.Context, m *mention) error {
	name := m.entry.Name
	existing, err := r.store.GetProduct(ctx, name)
	if err != nil {
		return err
	}
	episodeIDs := slices.Sorted(maps.Keys(m.episodes))

	if existing == nil {
		total := 0
		for _, n := range m.episodes {
			total += n
		}
		return r.store.InsertProduct(ctx, &store.Product{
			Name:            name,
			Category:        m.entry.Category,
			Description:     name + " mentioned in podcast insights",
			MentionCount:    total,
			EpisodeIDs:      store.UnionIDs(nil, episodeIDs),
			EpisodeMentions: maps.Clone(m.episodes),
		})
	}

	if existing.EpisodeMentions == nil {
		existing.EpisodeMentions = map[string]int{}
	}
	// Counts only grow: a rerun adds the mentions beyond the episode's
	// recorded high-water mark and never gives any back.
	for _, id := range episodeIDs {
		if delta := m.episodes[id] - existing.EpisodeMentions[id]; delta > 0 {
			existing.MentionCount += delta
			existing.EpisodeMentions[id] = m.episodes[id]
		}
	}
	existing.EpisodeIDs = store.UnionIDs(existing.EpisodeIDs, episodeIDs)
	return r.store.UpdateProduct(ctx, existing)
}
