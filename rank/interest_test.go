package rank

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/store"
)

func TestInterestBoost_LiftsMatchingCategory(t *testing.T) {
	ctx := context.Background()
	catalog := store.NewMemoryCatalog()
	catalog.Put(&core.Product{ID: "b1", SellerID: "s1", Category: "books", Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "e1", SellerID: "s2", Category: "electronics", Status: core.ProductActive})

	book := core.NewItem("b1")
	book.Score = 0.49
	tv := core.NewItem("e1")
	tv.Score = 0.51

	n := &InterestBoost{Catalog: catalog}
	rctx := &core.RecommendContext{UserID: "u1", Interests: map[string]int64{"books": 3}}

	out, err := n.Process(ctx, rctx, []*core.Item{tv, book})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out[0].ID != "b1" {
		t.Fatalf("got %q first, want the profile-matching product", out[0].ID)
	}
	// 加成是 log10(权重+1)
	want := 0.49 + math.Log10(4)
	if math.Abs(out[0].Score-want) > 1e-9 {
		t.Fatalf("boosted score %v, want %v", out[0].Score, want)
	}
	if math.Abs(out[1].Score-0.51) > 1e-9 {
		t.Fatalf("non-matching score changed: %v", out[1].Score)
	}
	if _, ok := out[0].Labels["interest_boost"]; !ok {
		t.Fatal("boosted item must carry the interest_boost label")
	}
}

func TestInterestBoost_NoProfilePassthrough(t *testing.T) {
	n := &InterestBoost{Catalog: store.NewMemoryCatalog()}
	it := core.NewItem("p1")
	it.Score = 0.42

	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, []*core.Item{it})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out[0].Score != 0.42 {
		t.Fatalf("score changed without a profile: %v", out[0].Score)
	}
}
