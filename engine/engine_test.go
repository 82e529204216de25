package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/marketrec/abtest"
	"github.com/rushteam/marketrec/config"
	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryCatalog) {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })

	catalog := store.NewMemoryCatalog()
	catalog.Put(&core.Product{ID: "phone-1", SellerID: "seller-1", Name: "iPhone 12", Category: "electronics", Price: 450, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "phone-2", SellerID: "seller-2", Name: "Pixel 6", Category: "electronics", Price: 380, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "phone-3", SellerID: "seller-3", Name: "Galaxy S21", Category: "electronics", Price: 400, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "book-1", SellerID: "seller-1", Name: "Go in Action", Category: "books", Price: 25, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "gone-1", SellerID: "seller-2", Name: "Sold", Category: "electronics", Status: core.ProductInactive})

	return New(nil, kv, catalog), catalog
}

func itemIDs(items []*core.Item) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it.ID] = true
	}
	return out
}

func TestEngine_SimilarProductsCategoryFallback(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// 离线列表还没算过，走同类目降级
	items := e.GetSimilarProducts(ctx, "visitor", "phone-1", 10)

	got := itemIDs(items)
	if len(items) == 0 {
		t.Fatal("fallback must not be empty")
	}
	if got["phone-1"] {
		t.Fatal("seed product leaked into the result")
	}
	if got["gone-1"] {
		t.Fatal("inactive product leaked into the result")
	}
	if got["book-1"] {
		t.Fatal("fallback must stay inside the seed's category")
	}
}

func TestEngine_SimilarProductsFromItemCF(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// 两个用户都看过 phone-1 和 phone-2，形成共现
	for _, user := range []string{"u1", "u2"} {
		e.HandleInteraction(ctx, core.Interaction{UserID: user, ProductID: "phone-1", Action: core.ActionView})
		e.HandleInteraction(ctx, core.Interaction{UserID: user, ProductID: "phone-2", Action: core.ActionView})
	}
	e.TriggerRecompute(ctx)

	items := e.GetSimilarProducts(ctx, "visitor", "phone-1", 10)
	if !itemIDs(items)["phone-2"] {
		t.Fatalf("co-viewed product missing from result: %v", itemIDs(items))
	}
}

func TestEngine_SimilarProductsExcludesViewed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		e.HandleInteraction(ctx, core.Interaction{UserID: user, ProductID: "phone-1", Action: core.ActionView})
		e.HandleInteraction(ctx, core.Interaction{UserID: user, ProductID: "phone-2", Action: core.ActionView})
	}
	e.TriggerRecompute(ctx)

	// u1 已经看过 phone-2，不能再推给它
	items := e.GetSimilarProducts(ctx, "u1", "phone-1", 10)
	if itemIDs(items)["phone-2"] {
		t.Fatal("already viewed product leaked into the result")
	}
}

func TestEngine_FeedExcludesViewedAndOwnListings(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// 其他用户制造热度
	for _, pid := range []string{"phone-2", "phone-3", "book-1"} {
		e.HandleInteraction(ctx, core.Interaction{UserID: "crowd", ProductID: pid, Action: core.ActionFavorite})
	}

	// seller-1 自己看过 phone-2；phone-1 和 book-1 是它挂出的
	e.HandleInteraction(ctx, core.Interaction{UserID: "seller-1", ProductID: "phone-2", Action: core.ActionView})

	items := e.GetPersonalizedFeed(ctx, "seller-1", 10)
	if len(items) == 0 {
		t.Fatal("feed must not be empty")
	}
	got := itemIDs(items)
	if got["phone-2"] {
		t.Fatal("viewed product leaked into the feed")
	}
	if got["phone-1"] || got["book-1"] {
		t.Fatalf("user's own listings leaked into the feed: %v", got)
	}
	if got["gone-1"] {
		t.Fatal("inactive product leaked into the feed")
	}
}

func TestEngine_FeedPrioritizesInterestCategories(t *testing.T) {
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	catalog := store.NewMemoryCatalog()
	catalog.Put(&core.Product{ID: "book-1", SellerID: "s1", Name: "三体", Category: "books", Price: 20, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "book-2", SellerID: "s2", Name: "活着", Category: "books", Price: 18, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "book-3", SellerID: "s3", Name: "围城", Category: "books", Price: 22, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "tv-1", SellerID: "s4", Name: "小米电视", Category: "electronics", Price: 900, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "tv-2", SellerID: "s5", Name: "索尼电视", Category: "electronics", Price: 1500, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "tv-3", SellerID: "s6", Name: "投影仪", Category: "electronics", Price: 600, Status: core.ProductActive})

	e := New(nil, kv, catalog)
	ctx := context.Background()

	// 只看过一本书，画像只有 books 类目
	e.HandleInteraction(ctx, core.Interaction{UserID: "reader", ProductID: "book-1", Action: core.ActionView})

	items := e.GetPersonalizedFeed(ctx, "reader", 10)
	if len(items) < 2 {
		t.Fatalf("feed too short: %v", itemIDs(items))
	}
	if itemIDs(items)["book-1"] {
		t.Fatal("viewed product leaked into the feed")
	}
	// 两本未读的书必须排在所有电子产品前面
	for i, it := range items[:2] {
		p, err := catalog.ByID(ctx, it.ID)
		if err != nil || p.Category != "books" {
			t.Fatalf("position %d is %q, want unviewed books ahead of electronics: %v", i, it.ID, itemIDs(items))
		}
	}
}

func TestEngine_FeedFallbackForColdUser(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// 全新用户，没有画像没有热度，靠最新上架兜底
	items := e.GetPersonalizedFeed(ctx, "newcomer", 10)
	if len(items) == 0 {
		t.Fatal("cold user feed must fall back to recent listings")
	}
	if itemIDs(items)["gone-1"] {
		t.Fatal("inactive product leaked into the fallback feed")
	}
}

func TestEngine_VariantRouting(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	exp := &abtest.Experiment{
		ID:   DefaultExperimentID,
		Name: "策略实验",
		Variants: []abtest.Variant{
			{Name: "variant_b", Share: 1.0},
		},
		Active: true,
	}
	if err := e.Experiments().Save(ctx, exp); err != nil {
		t.Fatalf("save experiment: %v", err)
	}

	// 全量流量切到 variant_b，策略应路由到 hybrid
	variant := e.Experiments().Assign(ctx, "anyone", DefaultExperimentID)
	if variant != "variant_b" {
		t.Fatalf("got %q, want variant_b", variant)
	}
	if got := variantStrategy(variant); got != StrategyHybrid {
		t.Fatalf("variant_b routes to %q, want %q", got, StrategyHybrid)
	}

	// 路由后的策略仍然可用（相似列表为空时照样走降级）
	items := e.GetSimilarProducts(ctx, "anyone", "phone-1", 10)
	if len(items) == 0 {
		t.Fatal("routed strategy returned nothing even with fallback")
	}
}

func TestEngine_SeedsDeclaredExperiment(t *testing.T) {
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	catalog := store.NewMemoryCatalog()

	cfg := config.Default()
	cfg.Experiment = config.ExperimentConfig{
		ID:     DefaultExperimentID,
		Name:   "策略实验",
		Active: true,
		Variants: []config.VariantConfig{
			{Name: "control", Share: 0.5},
			{Name: "variant_c", Share: 0.5},
		},
	}

	e := New(cfg, kv, catalog)
	exp, err := e.Experiments().Get(context.Background(), DefaultExperimentID)
	if err != nil {
		t.Fatalf("declared experiment not seeded: %v", err)
	}
	if !exp.Active || len(exp.Variants) != 2 || exp.Variants[1].Name != "variant_c" {
		t.Fatalf("seeded experiment mismatch: %+v", exp)
	}
}

func TestEngine_RegisterStrategyFromConfig(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	raw := `pipeline:
  name: ops_popular
  nodes:
    - type: recall.popular
      config:
        limit: 10
    - type: filter.base
    - type: rerank.topn
      config:
        n: 2
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := e.RegisterStrategyFromConfig(path); err != nil {
		t.Fatalf("register strategy: %v", err)
	}

	found := false
	for _, name := range e.Strategies() {
		if name == "ops_popular" {
			found = true
		}
	}
	if !found {
		t.Fatalf("registered strategy missing from %v", e.Strategies())
	}

	// 制造热度后跑配置装出来的链路
	for _, pid := range []string{"phone-2", "phone-3", "book-1", "gone-1"} {
		e.HandleInteraction(ctx, core.Interaction{UserID: "crowd", ProductID: pid, Action: core.ActionFavorite})
	}
	items, err := e.strategies["ops_popular"].Recommend(ctx, &core.RecommendContext{UserID: "visitor"}, 10)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("topn n=2 must cap the output, got %d", len(items))
	}
	if itemIDs(items)["gone-1"] {
		t.Fatal("inactive product leaked through filter.base")
	}
}

func TestEngine_UnknownNodeTypeFailsRegistration(t *testing.T) {
	e, _ := newTestEngine(t)

	raw := `pipeline:
  name: broken
  nodes:
    - type: recall.nope
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := e.RegisterStrategyFromConfig(path); err == nil {
		t.Fatal("unknown node type must fail registration")
	}
}

func TestEngine_InteractionFeedsMetrics(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	exp := &abtest.Experiment{
		ID:       DefaultExperimentID,
		Name:     "策略实验",
		Variants: []abtest.Variant{{Name: "control", Share: 1.0}},
		Active:   true,
	}
	if err := e.Experiments().Save(ctx, exp); err != nil {
		t.Fatalf("save experiment: %v", err)
	}

	e.HandleInteraction(ctx, core.Interaction{UserID: "u1", ProductID: "phone-1", Action: core.ActionView})
	e.HandleInteraction(ctx, core.Interaction{UserID: "u1", ProductID: "phone-1", Action: core.ActionOrder})

	results, err := e.Experiments().Results(ctx, DefaultExperimentID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	vm := results["control"]
	if vm == nil || vm.Clicks != 1 || vm.Conversions != 1 {
		t.Fatalf("metrics not recorded: %+v", vm)
	}
	// 成交金额取商品统计特征的客单价（目录兜底为商品价格）
	if vm.Revenue != 450 {
		t.Fatalf("revenue %v, want 450", vm.Revenue)
	}
}
