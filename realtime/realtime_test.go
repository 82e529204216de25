package realtime

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/model"
	"github.com/rushteam/marketrec/store"
)

func TestTrending_ScoreNormalization(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	tr := NewTrending(kv)

	if got := tr.Score(ctx, "p1"); got != 0 {
		t.Fatalf("untouched product: got %v, want 0", got)
	}

	for i := 0; i < 5; i++ {
		if err := tr.Touch(ctx, "p1"); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	if got := tr.Score(ctx, "p1"); math.Abs(got-0.05) > 1e-9 {
		t.Fatalf("5 touches: got %v, want 0.05", got)
	}
}

func TestTrending_ScoreCapsAtOne(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	tr := NewTrending(kv)

	for i := 0; i < 150; i++ {
		if err := tr.Touch(ctx, "hot"); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	if got := tr.Score(ctx, "hot"); got != 1.0 {
		t.Fatalf("got %v, want capped 1.0", got)
	}
}

func TestTrending_ProductsDistinct(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	tr := NewTrending(kv)

	for _, pid := range []string{"a", "b", "a", "c", "a"} {
		if err := tr.Touch(ctx, pid); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}

	products, err := tr.Products(ctx, trendingWindow, 10)
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		if seen[p] {
			t.Fatalf("duplicate product %q in %v", p, products)
		}
		seen[p] = true
	}
	if len(products) != 3 {
		t.Fatalf("got %v, want 3 distinct products", products)
	}
}

func TestPopularity_ActionWeights(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	pop := NewPopularity(kv)

	actions := []core.Action{core.ActionView, core.ActionFavorite, core.ActionCart, core.ActionOrder, core.ActionReview}
	for _, a := range actions {
		if err := pop.Incr(ctx, "p1", a); err != nil {
			t.Fatalf("incr %s: %v", a, err)
		}
	}

	// 1 + 3 + 5 + 10 + 8
	if got := pop.Score(ctx, "p1"); got != 27 {
		t.Fatalf("got %v, want 27", got)
	}
}

func TestPopularity_DecayExact(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	pop := NewPopularity(kv)

	if err := pop.Incr(ctx, "p1", core.ActionOrder); err != nil { // 10
		t.Fatalf("incr: %v", err)
	}
	if err := pop.Incr(ctx, "p2", core.ActionFavorite); err != nil { // 3
		t.Fatalf("incr: %v", err)
	}

	if err := pop.Decay(ctx, 0.9); err != nil {
		t.Fatalf("decay: %v", err)
	}

	if got := pop.Score(ctx, "p1"); math.Abs(got-9.0) > 1e-12 {
		t.Fatalf("p1: got %v, want 9.0", got)
	}
	if got := pop.Score(ctx, "p2"); math.Abs(got-2.7) > 1e-12 {
		t.Fatalf("p2: got %v, want 2.7", got)
	}
}

func TestPopularity_TopNOrder(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	pop := NewPopularity(kv)

	if err := pop.Incr(ctx, "low", core.ActionView); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if err := pop.Incr(ctx, "high", core.ActionOrder); err != nil {
		t.Fatalf("incr: %v", err)
	}

	top, err := pop.TopN(ctx, 2)
	if err != nil {
		t.Fatalf("topn: %v", err)
	}
	if len(top) != 2 || top[0].Member != "high" {
		t.Fatalf("got %v, want high first", top)
	}
}

func TestSession_AppendTrimAndProducts(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	s := NewSession(kv)

	for i := 0; i < sessionMaxEntries+10; i++ {
		pid := string(rune('a' + i%26))
		if err := s.Append(ctx, "u1", pid, core.ActionView); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := s.Entries(ctx, "u1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != sessionMaxEntries {
		t.Fatalf("got %d entries, want %d", len(entries), sessionMaxEntries)
	}

	products, err := s.Products(ctx, "u1")
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		if seen[p] {
			t.Fatalf("duplicate %q in %v", p, products)
		}
		seen[p] = true
	}
	// 最新的交互在最前
	if products[0] != entries[0].ProductID {
		t.Fatalf("most recent product first: got %q, want %q", products[0], entries[0].ProductID)
	}
}

type mapLister map[string][]string

func (l mapLister) SimilarProducts(_ context.Context, productID string, _ int) ([]string, error) {
	return l[productID], nil
}

func TestSession_RelevanceScore(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	s := NewSession(kv)

	// 会话两件商品，只有 seed-a 的相似列表包含候选 -> 占比 0.5
	if err := s.Append(ctx, "u1", "seed-a", core.ActionView); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, "u1", "seed-b", core.ActionView); err != nil {
		t.Fatalf("append: %v", err)
	}

	lister := mapLister{
		"seed-a": {"cand", "other"},
		"seed-b": {"other"},
	}
	if got := s.RelevanceScore(ctx, "u1", "cand", lister); got != 0.5 {
		t.Fatalf("relevance %v, want 0.5", got)
	}
	// 空会话相关性为 0
	if got := s.RelevanceScore(ctx, "nobody", "cand", lister); got != 0 {
		t.Fatalf("empty session relevance %v, want 0", got)
	}
}

func TestProcessor_HandleUpdatesAllState(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	p := &Processor{
		Trending:   NewTrending(kv),
		Popularity: NewPopularity(kv),
		Session:    NewSession(kv),
		Model:      model.NewNCF(kv),
		Store:      kv,
	}

	p.Handle(ctx, core.Interaction{UserID: "u1", ProductID: "p1", Action: core.ActionCart})

	if got := p.Popularity.Score(ctx, "p1"); got != 5 {
		t.Fatalf("popularity: got %v, want 5", got)
	}
	if got := p.Trending.Score(ctx, "p1"); got <= 0 {
		t.Fatalf("trending: got %v, want > 0", got)
	}
	products, err := p.Session.Products(ctx, "u1")
	if err != nil || len(products) != 1 || products[0] != "p1" {
		t.Fatalf("session: got %v err=%v, want [p1]", products, err)
	}
	if _, ok := CachedScore(ctx, kv, "u1", "p1"); !ok {
		t.Fatal("realtime score must be cached after handle")
	}
}

func TestCachedScore_MissReturnsFalse(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	if _, ok := CachedScore(ctx, kv, "nobody", "nothing"); ok {
		t.Fatal("expected cache miss")
	}
}
