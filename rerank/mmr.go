package rerank

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/pkg/utils"
)

// MMR 是最大边际相关重排 Node：
// 贪心选择 λ·相关性 + (1-λ)·与已选集合的差异度 最大的候选，
// 以牺牲少量相关性换取结果集多样性。相关性取 item.Score（上游排序分），
// 差异度按类目计算，对已选集合取平均。
type MMR struct {
	Catalog core.ProductCatalog

	// Lambda 相关性与多样性的折中系数，零值取 0.7
	Lambda float64

	// K 选出的结果数，零值不限（全排）
	K int
}

func (n *MMR) Name() string        { return "rerank.mmr" }
func (n *MMR) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *MMR) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) <= 1 {
		return items, nil
	}

	lambda := n.Lambda
	if lambda <= 0 {
		lambda = 0.7
	}
	k := n.K
	if k <= 0 || k > len(items) {
		k = len(items)
	}

	categories := n.loadCategories(ctx, items)

	remaining := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			remaining = append(remaining, it)
		}
	}

	selected := make([]*core.Item, 0, k)
	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, categories, lambda)
		for i := 1; i < len(remaining); i++ {
			if s := mmrScore(remaining[i], selected, categories, lambda); s > bestScore {
				bestIdx, bestScore = i, s
			}
		}
		chosen := remaining[bestIdx]
		chosen.PutLabel("rerank", utils.Label{Value: "mmr", Source: "rerank"})
		selected = append(selected, chosen)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected, nil
}

// mmrScore = λ·relevance + (1-λ)·对已选集合的平均差异度。
// 首个候选没有已选集合，退化为纯相关性。
func mmrScore(it *core.Item, selected []*core.Item, categories map[string]string, lambda float64) float64 {
	if len(selected) == 0 {
		return it.Score
	}
	var dissimSum float64
	cat := categories[it.ID]
	for _, s := range selected {
		if cat == "" || categories[s.ID] != cat {
			dissimSum++
		}
	}
	avgDissim := dissimSum / float64(len(selected))
	return lambda*it.Score + (1-lambda)*avgDissim
}

func (n *MMR) loadCategories(ctx context.Context, items []*core.Item) map[string]string {
	out := make(map[string]string, len(items))
	if n.Catalog == nil {
		return out
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}
	products, err := n.Catalog.ByIDs(ctx, ids)
	if err != nil {
		return out
	}
	for _, p := range products {
		out[p.ID] = p.Category
	}
	return out
}
