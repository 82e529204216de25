package rerank

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/pkg/utils"
)

// Pareto 是帕累托筛选 Node：只保留五个目标上非被支配的候选。
// 候选 a 支配 b 当且仅当 a 在所有目标上不劣于 b 且至少一个目标严格更优。
// 需要上游先跑过目标标注（MultiObjective 或手动 Objectives.Annotate）。
type Pareto struct{}

var objectiveKeys = []string{
	FeatureCTR, FeatureCVR, FeatureRevenue, FeatureDiversity, FeatureNovelty,
}

func (n *Pareto) Name() string        { return "rerank.pareto" }
func (n *Pareto) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Pareto) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) <= 1 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		dominated := false
		for j, other := range items {
			if i == j || other == nil {
				continue
			}
			if dominates(other, it) {
				dominated = true
				break
			}
		}
		if !dominated {
			it.PutLabel("rerank", utils.Label{Value: "pareto", Source: "rerank"})
			out = append(out, it)
		}
	}
	return out, nil
}

func dominates(a, b *core.Item) bool {
	strictlyBetter := false
	for _, key := range objectiveKeys {
		av, bv := a.Features[key], b.Features[key]
		if av < bv {
			return false
		}
		if av > bv {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}
