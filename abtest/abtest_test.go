package abtest

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/store"
)

func newTestManager(t *testing.T) (*Manager, core.KeyValueStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	return NewManager(kv), kv
}

func saveStrategyExperiment(t *testing.T, m *Manager, shares ...Variant) *Experiment {
	t.Helper()
	exp := &Experiment{
		ID:       "strategy",
		Name:     "推荐策略实验",
		Variants: shares,
		Active:   true,
	}
	if err := m.Save(context.Background(), exp); err != nil {
		t.Fatalf("save: %v", err)
	}
	return exp
}

func TestManager_SaveGetRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	saveStrategyExperiment(t, m,
		Variant{Name: "control", Share: 0.5},
		Variant{Name: "variant_a", Share: 0.5},
	)

	got, err := m.Get(ctx, "strategy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "strategy" || !got.Active || len(got.Variants) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Variants[0].Name != "control" || got.Variants[1].Name != "variant_a" {
		t.Fatalf("variant order not preserved: %+v", got.Variants)
	}
}

func TestManager_GetMissing(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Get(context.Background(), "nope"); err != core.ErrExperimentNotFound {
		t.Fatalf("got %v, want ErrExperimentNotFound", err)
	}
}

func TestAssign_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	saveStrategyExperiment(t, m,
		Variant{Name: "control", Share: 0.4},
		Variant{Name: "variant_a", Share: 0.3},
		Variant{Name: "variant_b", Share: 0.3},
	)

	for i := 0; i < 50; i++ {
		user := fmt.Sprintf("user-%03d", i)
		first := m.Assign(ctx, user, "strategy")
		for j := 0; j < 3; j++ {
			if again := m.Assign(ctx, user, "strategy"); again != first {
				t.Fatalf("user %s: got %q then %q", user, first, again)
			}
		}
	}
}

func TestAssign_MissingExperimentFallsBackToControl(t *testing.T) {
	m, _ := newTestManager(t)
	if got := m.Assign(context.Background(), "u1", "ghost"); got != ControlVariant {
		t.Fatalf("got %q, want %q", got, ControlVariant)
	}
}

func TestAssign_InactiveExperimentFallsBackToControl(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	saveStrategyExperiment(t, m,
		Variant{Name: "control", Share: 0.5},
		Variant{Name: "variant_a", Share: 0.5},
	)
	if err := m.SetActive(ctx, "strategy", false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	if got := m.Assign(ctx, "u1", "strategy"); got != ControlVariant {
		t.Fatalf("got %q, want %q", got, ControlVariant)
	}
}

func TestAssign_DistributionRoughlyMatchesShares(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	saveStrategyExperiment(t, m,
		Variant{Name: "control", Share: 0.5},
		Variant{Name: "variant_a", Share: 0.5},
	)

	const users = 2000
	counts := make(map[string]int)
	for i := 0; i < users; i++ {
		counts[m.Assign(ctx, fmt.Sprintf("user-%d", i), "strategy")]++
	}

	for _, name := range []string{"control", "variant_a"} {
		ratio := float64(counts[name]) / users
		if math.Abs(ratio-0.5) > 0.05 {
			t.Fatalf("variant %s ratio %v, want 0.5±0.05 (counts=%v)", name, ratio, counts)
		}
	}
}

func TestBucket_ShortfallGoesToControl(t *testing.T) {
	// 占比只覆盖 [0, 0.1)，其余流量必须归 control
	variants := []Variant{{Name: "variant_a", Share: 0.1}}

	control := 0
	for i := 0; i < 1000; i++ {
		if bucket(fmt.Sprintf("user-%d", i), "exp", variants) == ControlVariant {
			control++
		}
	}
	if control < 800 {
		t.Fatalf("only %d/1000 fell back to control", control)
	}
}

func TestTrack_CountersAndUniqueUsers(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	saveStrategyExperiment(t, m,
		Variant{Name: "control", Share: 1.0},
	)

	m.TrackImpression(ctx, "strategy", "control", "u1")
	m.TrackImpression(ctx, "strategy", "control", "u1")
	m.TrackImpression(ctx, "strategy", "control", "u2")
	m.TrackClick(ctx, "strategy", "control", "u1")
	m.TrackConversion(ctx, "strategy", "control", "u2", 120.5)

	results, err := m.Results(ctx, "strategy")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	vm := results["control"]
	if vm == nil {
		t.Fatal("missing control metrics")
	}
	if vm.Impressions != 3 || vm.Clicks != 1 || vm.Conversions != 1 {
		t.Fatalf("counters: %+v", vm)
	}
	if vm.Revenue != 120.5 {
		t.Fatalf("revenue: got %v, want 120.5", vm.Revenue)
	}
	if math.Abs(vm.CTR-1.0/3.0) > 1e-12 {
		t.Fatalf("ctr: got %v", vm.CTR)
	}
}

func TestTwoProportionZTest(t *testing.T) {
	tests := []struct {
		name                   string
		clicksA, impA          int64
		clicksB, impB          int64
		wantSignificant        bool
		wantAbsZGreater        float64
		wantAbsZLessOrEqualTol float64
	}{
		{
			// 5% vs 8% CTR，各 1000 曝光：z ≈ -2.72
			name:   "large samples significant",
			impA:   1000, clicksA: 50,
			impB: 1000, clicksB: 80,
			wantSignificant: true,
			wantAbsZGreater: 2.5,
		},
		{
			// 同比例但曝光不足 100，直接判不显著
			name:   "below minimum impressions",
			impA:   50, clicksA: 5,
			impB: 50, clicksB: 8,
			wantSignificant: false,
		},
		{
			name:   "identical rates",
			impA:   1000, clicksA: 50,
			impB: 1000, clicksB: 50,
			wantSignificant:        false,
			wantAbsZLessOrEqualTol: 1e-12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, z, err := TwoProportionZTest(tt.clicksA, tt.impA, tt.clicksB, tt.impB)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sig != tt.wantSignificant {
				t.Fatalf("significant=%v z=%v, want %v", sig, z, tt.wantSignificant)
			}
			if tt.wantAbsZGreater > 0 && math.Abs(z) <= tt.wantAbsZGreater {
				t.Fatalf("|z|=%v, want > %v", math.Abs(z), tt.wantAbsZGreater)
			}
			if tt.name == "identical rates" && math.Abs(z) > tt.wantAbsZLessOrEqualTol {
				t.Fatalf("|z|=%v, want ~0", math.Abs(z))
			}
		})
	}
}

func TestSignificant_UnknownVariant(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	saveStrategyExperiment(t, m,
		Variant{Name: "control", Share: 1.0},
	)

	if _, _, err := m.Significant(ctx, "strategy", "control", "ghost"); err != core.ErrExperimentNotFound {
		t.Fatalf("got %v, want ErrExperimentNotFound", err)
	}
}
