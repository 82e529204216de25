package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/pkg/utils"
)

// Weights 是五个目标的权重，使用前会整体归一化，只看相对比例。
type Weights struct {
	CTR       float64
	CVR       float64
	Revenue   float64
	Diversity float64
	Novelty   float64
}

// DefaultWeights 默认目标权重配比。
func DefaultWeights() Weights {
	return Weights{CTR: 0.25, CVR: 0.30, Revenue: 0.20, Diversity: 0.15, Novelty: 0.10}
}

func (w Weights) normalized() Weights {
	sum := w.CTR + w.CVR + w.Revenue + w.Diversity + w.Novelty
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		CTR:       w.CTR / sum,
		CVR:       w.CVR / sum,
		Revenue:   w.Revenue / sum,
		Diversity: w.Diversity / sum,
		Novelty:   w.Novelty / sum,
	}
}

// MultiObjective 是多目标加权重排 Node：
// 先标注五个目标分，再按归一化权重求复合分并降序排序。
type MultiObjective struct {
	Objectives *Objectives
	Weights    Weights // 零值取 DefaultWeights
}

func (n *MultiObjective) Name() string        { return "rerank.multiobjective" }
func (n *MultiObjective) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *MultiObjective) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	if n.Objectives != nil {
		n.Objectives.Annotate(ctx, rctx, items)
	}

	w := n.Weights.normalized()
	for _, it := range items {
		if it == nil || it.Features == nil {
			continue
		}
		it.Score = w.CTR*it.Features[FeatureCTR] +
			w.CVR*it.Features[FeatureCVR] +
			w.Revenue*it.Features[FeatureRevenue] +
			w.Diversity*it.Features[FeatureDiversity] +
			w.Novelty*it.Features[FeatureNovelty]
		it.PutLabel("rerank", utils.Label{Value: "multiobjective", Source: "rerank"})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		return items[i].Score > items[j].Score
	})
	return items, nil
}
