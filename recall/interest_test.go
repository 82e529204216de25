package recall

import (
	"context"
	"testing"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/store"
)

func TestInterest_RecallsTopCategories(t *testing.T) {
	ctx := context.Background()
	catalog := store.NewMemoryCatalog()
	catalog.Put(&core.Product{ID: "b1", SellerID: "s1", Category: "books", Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "b2", SellerID: "s2", Category: "books", Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "e1", SellerID: "s3", Category: "electronics", Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "gone", SellerID: "s4", Category: "books", Status: core.ProductInactive})

	r := &Interest{Catalog: catalog, TopTags: 1}
	rctx := &core.RecommendContext{
		UserID: "u1",
		Interests: map[string]int64{
			"books":       5,
			"electronics": 1,
			"condition_9": 7, // 成色标签不参与召回
		},
	}

	items, err := r.Recall(ctx, rctx)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}

	got := make(map[string]bool, len(items))
	for _, it := range items {
		got[it.ID] = true
	}
	if !got["b1"] || !got["b2"] {
		t.Fatalf("top category products missing: %v", got)
	}
	if got["e1"] {
		t.Fatal("TopTags=1 must only recall the strongest category")
	}
	if got["gone"] {
		t.Fatal("inactive product leaked into recall")
	}
}

func TestInterest_EmptyProfileRecallsNothing(t *testing.T) {
	r := &Interest{Catalog: store.NewMemoryCatalog()}

	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items for an empty profile, want 0", len(items))
	}
}
