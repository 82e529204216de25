package batch

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/store"
)

func TestCosineSparse(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]float64
		want float64
	}{
		{
			name: "identical vectors",
			a:    map[string]float64{"x": 1, "y": 2},
			b:    map[string]float64{"x": 1, "y": 2},
			want: 1,
		},
		{
			name: "orthogonal vectors",
			a:    map[string]float64{"x": 1},
			b:    map[string]float64{"y": 1},
			want: 0,
		},
		{
			name: "empty vector",
			a:    map[string]float64{},
			b:    map[string]float64{"x": 1},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSparse(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1+1e-12 {
				t.Fatalf("cosine out of [0,1]: %v", got)
			}
		})
	}
}

func TestPriceSimilarity(t *testing.T) {
	if got := priceSimilarity(100, 100); math.Abs(got-1) > 1e-12 {
		t.Fatalf("equal prices: got %v, want 1", got)
	}
	if got := priceSimilarity(0, 100); got != 0.5 {
		t.Fatalf("missing price: got %v, want neutral 0.5", got)
	}
	near := priceSimilarity(100, 110)
	far := priceSimilarity(100, 500)
	if near <= far {
		t.Fatalf("closer prices must be more similar: near=%v far=%v", near, far)
	}
}

func TestTFIDFVector(t *testing.T) {
	p := &core.Product{Category: "books", Price: 10, ConditionLevel: 5}
	// cat:books 在每个文档都出现 → idf = ln(1) = 0
	df := map[string]int{
		"cat:books":    2,
		"price:0-20":   1,
		"condition:5":  1,
	}
	vec := tfidfVector(p, df, 2)

	if vec["cat:books"] != 0 {
		t.Fatalf("ubiquitous term must have zero weight, got %v", vec["cat:books"])
	}
	if vec["price:0-20"] <= 0 {
		t.Fatalf("rare term must have positive weight, got %v", vec["price:0-20"])
	}
}

func TestContentJob_SimilarRanksAboveDissimilar(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	catalog := store.NewMemoryCatalog()

	catalog.Put(&core.Product{
		ID: "cam1", Name: "vintage film camera", Description: "classic analog camera body",
		Category: "cameras", Price: 100, ConditionLevel: 8, Status: core.ProductActive,
	})
	catalog.Put(&core.Product{
		ID: "cam2", Name: "retro film camera", Description: "analog camera with lens",
		Category: "cameras", Price: 110, ConditionLevel: 7, Status: core.ProductActive,
	})
	catalog.Put(&core.Product{
		ID: "sofa", Name: "leather sofa", Description: "large comfortable couch",
		Category: "furniture", Price: 900, ConditionLevel: 3, Status: core.ProductActive,
	})

	job := &ContentJob{Catalog: catalog, Store: kv, Log: zerolog.Nop()}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	top, err := kv.ZRevRange(ctx, ContentKeyPrefix+"cam1", 0, -1)
	if err != nil {
		t.Fatalf("zrevrange: %v", err)
	}
	if len(top) == 0 || top[0] != "cam2" {
		t.Fatalf("expected cam2 most similar to cam1, got %v", top)
	}
}

func TestContentJob_SkipsInactiveProducts(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	catalog := store.NewMemoryCatalog()

	catalog.Put(&core.Product{ID: "p1", Name: "guitar", Category: "music", Price: 50, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "p2", Name: "guitar", Category: "music", Price: 55, Status: core.ProductInactive})

	job := &ContentJob{Catalog: catalog, Store: kv, Log: zerolog.Nop()}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := kv.ZScore(ctx, ContentKeyPrefix+"p1", "p2"); !core.IsStoreNotFound(err) {
		t.Fatalf("inactive product must not appear in similar list, got err=%v", err)
	}
}
