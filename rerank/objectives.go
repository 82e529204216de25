// Package rerank 提供重排 Node：多目标加权、MMR、帕累托筛选、Top-N 截断与类目去重。
package rerank

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/feature"
	"github.com/rushteam/marketrec/model"
	"github.com/rushteam/marketrec/realtime"
)

// 各目标写入 item.Features 的键，下游（帕累托）按这些键读取
const (
	FeatureCTR       = "obj_ctr"
	FeatureCVR       = "obj_cvr"
	FeatureRevenue   = "obj_revenue"
	FeatureDiversity = "obj_diversity"
	FeatureNovelty   = "obj_novelty"
)

// ctr 里模型分与趋势分的混合权重
const (
	ctrModelWeight    = 0.7
	ctrTrendingWeight = 0.3
)

// objectiveContext 聚合单次重排需要的外部信号，按候选集预取避免重复查询。
type objectiveContext struct {
	categories map[string]string // productID -> category
	maxRevenue float64
}

// Objectives 负责给候选集标注五个目标分，全部落在 item.Features。
type Objectives struct {
	Scorer   model.Scorer       // 可为 nil，回退到 item.Score
	Trending *realtime.Trending // 可为 nil
	Features feature.Provider   // 可为 nil，基础转化率按 0、客单价按兜底值处理
	Catalog  core.ProductCatalog

	// Novelty 新颖性常数，零值取 0.7
	Novelty float64
}

// Annotate 计算每个候选的 ctr/cvr/revenue/diversity/novelty 并写入 Features。
func (o *Objectives) Annotate(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) {
	if len(items) == 0 {
		return
	}

	oc := o.prepare(ctx, items)
	userID := ""
	if rctx != nil {
		userID = rctx.UserID
	}

	revenues := make([]float64, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		ctr := o.ctrScore(ctx, userID, it)
		cvr := o.cvrScore(ctx, userID, it)
		rev := cvr * o.estimatedValue(ctx, it.ID)
		revenues[i] = rev
		if rev > oc.maxRevenue {
			oc.maxRevenue = rev
		}

		if it.Features == nil {
			it.Features = make(map[string]float64, 5)
		}
		it.Features[FeatureCTR] = ctr
		it.Features[FeatureCVR] = cvr
		it.Features[FeatureDiversity] = o.diversityScore(it, items, oc)
		it.Features[FeatureNovelty] = o.noveltyScore(rctx, it)
	}

	// 营收目标按候选集内最大值归一化，和其他目标同落 [0,1]
	for i, it := range items {
		if it == nil {
			continue
		}
		if oc.maxRevenue > 0 {
			it.Features[FeatureRevenue] = revenues[i] / oc.maxRevenue
		} else {
			it.Features[FeatureRevenue] = 0
		}
	}
}

func (o *Objectives) prepare(ctx context.Context, items []*core.Item) *objectiveContext {
	oc := &objectiveContext{categories: make(map[string]string, len(items))}
	if o.Catalog == nil {
		return oc
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}
	products, err := o.Catalog.ByIDs(ctx, ids)
	if err != nil {
		return oc
	}
	for _, p := range products {
		oc.categories[p.ID] = p.Category
	}
	return oc
}

func (o *Objectives) ctrScore(ctx context.Context, userID string, it *core.Item) float64 {
	modelScore := it.Score
	if o.Scorer != nil && userID != "" {
		if s, err := o.Scorer.Score(ctx, userID, it.ID); err == nil {
			modelScore = s
		}
	}
	var trending float64
	if o.Trending != nil {
		trending = o.Trending.Score(ctx, it.ID)
	}
	return ctrModelWeight*modelScore + ctrTrendingWeight*trending
}

// cvrScore = 基础转化率 × 用户亲和度。
// 基础转化率取商品统计特征，缺失回退平均转化率；亲和度是模型对该用户的偏好分。
func (o *Objectives) cvrScore(ctx context.Context, userID string, it *core.Item) float64 {
	base := feature.DefaultBaseCVR
	if o.Features != nil {
		if stats, err := o.Features.ProductStats(ctx, it.ID); err == nil && stats.BaseCVR > 0 {
			base = stats.BaseCVR
		}
	}

	affinity := it.Score
	if o.Scorer != nil && userID != "" {
		if s, err := o.Scorer.Score(ctx, userID, it.ID); err == nil {
			affinity = s
		}
	}

	return base * affinity
}

func (o *Objectives) estimatedValue(ctx context.Context, productID string) float64 {
	if o.Features == nil {
		return feature.DefaultEstimatedValue
	}
	stats, err := o.Features.ProductStats(ctx, productID)
	if err != nil {
		return feature.DefaultEstimatedValue
	}
	if stats.EstimatedValue <= 0 {
		return feature.DefaultEstimatedValue
	}
	return stats.EstimatedValue
}

// diversityScore 是该候选对其余候选的平均类目差异度。
func (o *Objectives) diversityScore(it *core.Item, items []*core.Item, oc *objectiveContext) float64 {
	if len(items) <= 1 {
		return 1
	}
	cat := oc.categories[it.ID]
	var dissim float64
	var n float64
	for _, other := range items {
		if other == nil || other.ID == it.ID {
			continue
		}
		n++
		if cat == "" || oc.categories[other.ID] != cat {
			dissim++
		}
	}
	if n == 0 {
		return 1
	}
	return dissim / n
}

func (o *Objectives) noveltyScore(rctx *core.RecommendContext, it *core.Item) float64 {
	if rctx != nil && rctx.HasViewed(it.ID) {
		return 0
	}
	if o.Novelty > 0 {
		return o.Novelty
	}
	return 0.7
}
