package feature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/store"
)

// countingProvider 记录调用次数，可按开关失败。
type countingProvider struct {
	stats Stats
	fail  bool
	calls int
}

func (p *countingProvider) Name() string { return "feature.counting" }

func (p *countingProvider) ProductStats(_ context.Context, _ string) (Stats, error) {
	p.calls++
	if p.fail {
		return Stats{}, errors.New("backend unavailable")
	}
	return p.stats, nil
}

func TestCatalogProvider_PriceAsEstimatedValue(t *testing.T) {
	ctx := context.Background()
	catalog := store.NewMemoryCatalog()
	catalog.Put(&core.Product{ID: "priced", Price: 320, Status: core.ProductActive})
	catalog.Put(&core.Product{ID: "free", Price: 0, Status: core.ProductActive})

	p := &CatalogProvider{Catalog: catalog}

	tests := []struct {
		id   string
		want float64
	}{
		{"priced", 320},
		{"free", DefaultEstimatedValue},
		{"ghost", DefaultEstimatedValue},
	}
	for _, tt := range tests {
		stats, err := p.ProductStats(ctx, tt.id)
		if err != nil {
			t.Fatalf("%s: %v", tt.id, err)
		}
		if stats.EstimatedValue != tt.want {
			t.Errorf("%s: got %v, want %v", tt.id, stats.EstimatedValue, tt.want)
		}
	}
}

func TestCachedProvider_HitsSkipInner(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{stats: Stats{BaseCVR: 0.05, EstimatedValue: 99}}
	p := NewCachedProvider(inner, 10, time.Minute)

	for i := 0; i < 5; i++ {
		stats, err := p.ProductStats(ctx, "p1")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if stats.EstimatedValue != 99 {
			t.Fatalf("call %d: stats %+v", i, stats)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{fail: true}
	p := NewCachedProvider(inner, 10, time.Minute)

	if _, err := p.ProductStats(ctx, "p1"); err == nil {
		t.Fatal("expected error from failing inner")
	}
	inner.fail = false
	inner.stats = Stats{EstimatedValue: 42}
	stats, err := p.ProductStats(ctx, "p1")
	if err != nil || stats.EstimatedValue != 42 {
		t.Fatalf("recovered call: %+v, %v", stats, err)
	}
}

func TestCachedProvider_EvictsBeyondMaxSize(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{stats: Stats{EstimatedValue: 7}}
	p := NewCachedProvider(inner, 2, time.Minute)

	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := p.ProductStats(ctx, id); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
	}
	p.mu.RLock()
	size := len(p.entries)
	p.mu.RUnlock()
	if size > 2 {
		t.Fatalf("cache holds %d entries, want <= 2", size)
	}
}

func TestFallbackProvider_FirstSuccessWins(t *testing.T) {
	ctx := context.Background()
	primary := &countingProvider{stats: Stats{BaseCVR: 0.08, EstimatedValue: 200}}
	secondary := &countingProvider{stats: Stats{EstimatedValue: 10}}

	p := NewFallbackProvider(primary, secondary)
	stats, err := p.ProductStats(ctx, "p1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EstimatedValue != 200 || secondary.calls != 0 {
		t.Fatalf("primary must win: %+v, secondary calls %d", stats, secondary.calls)
	}
}

func TestFallbackProvider_FallsThroughOnError(t *testing.T) {
	ctx := context.Background()
	primary := &countingProvider{fail: true}
	secondary := &countingProvider{stats: Stats{EstimatedValue: 10}}

	p := NewFallbackProvider(primary, secondary)
	stats, err := p.ProductStats(ctx, "p1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EstimatedValue != 10 {
		t.Fatalf("got %+v, want secondary's stats", stats)
	}
}

func TestFallbackProvider_AllFailGivesDefaults(t *testing.T) {
	ctx := context.Background()
	p := NewFallbackProvider(&countingProvider{fail: true}, &countingProvider{fail: true})

	stats, err := p.ProductStats(ctx, "p1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EstimatedValue != DefaultEstimatedValue || stats.BaseCVR != 0 {
		t.Fatalf("got %+v, want defaults", stats)
	}
}
