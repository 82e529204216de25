// Package rank 提供排序 Node：混合加权排序与 NCF 模型排序。
package rank

import (
	"context"
	"sort"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/pkg/utils"
	"github.com/rushteam/marketrec/realtime"
)

// Hybrid 是混合排序 Node：
// 把种子商品的协同过滤列表和内容相似列表按榜内位置加权
// （位置权重 = (榜长-名次)/榜长），再叠加全站热度做加成。
// 最终分 = cf*CFWeight + content*ContentWeight + 归一化热度*PopularityWeight。
type Hybrid struct {
	Store      core.KeyValueStore
	Popularity *realtime.Popularity

	CFPrefix      string // 零值取 "recommend:item-cf:"
	ContentPrefix string // 零值取 "recommend:content:"

	CFWeight         float64 // 零值取 0.4
	ContentWeight    float64 // 零值取 0.4
	PopularityWeight float64 // 零值取 0.2
}

func (n *Hybrid) Name() string        { return "rank.hybrid" }
func (n *Hybrid) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *Hybrid) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil || rctx.SeedProductID == "" {
		return items, nil
	}

	cfW, contentW, popW := n.weights()
	cfScores := n.positionScores(ctx, n.prefixOr(n.CFPrefix, "recommend:item-cf:")+rctx.SeedProductID)
	contentScores := n.positionScores(ctx, n.prefixOr(n.ContentPrefix, "recommend:content:")+rctx.SeedProductID)

	// 入参为空时，候选就是两个榜的并集
	if len(items) == 0 {
		ids := make(map[string]struct{}, len(cfScores)+len(contentScores))
		for id := range cfScores {
			ids[id] = struct{}{}
		}
		for id := range contentScores {
			ids[id] = struct{}{}
		}
		items = make([]*core.Item, 0, len(ids))
		for id := range ids {
			items = append(items, core.NewItem(id))
		}
	}

	maxPop := n.maxPopularity(ctx)
	for _, it := range items {
		if it == nil {
			continue
		}
		score := cfScores[it.ID]*cfW + contentScores[it.ID]*contentW
		if maxPop > 0 && n.Popularity != nil {
			score += n.Popularity.Score(ctx, it.ID) / maxPop * popW
		}
		it.Score = score
		it.PutLabel("rank_model", utils.Label{Value: "hybrid", Source: "rank"})
	}

	sortByScore(items)
	return items, nil
}

func (n *Hybrid) weights() (cf, content, pop float64) {
	cf, content, pop = n.CFWeight, n.ContentWeight, n.PopularityWeight
	if cf <= 0 {
		cf = 0.4
	}
	if content <= 0 {
		content = 0.4
	}
	if pop <= 0 {
		pop = 0.2
	}
	return cf, content, pop
}

func (n *Hybrid) prefixOr(prefix, fallback string) string {
	if prefix != "" {
		return prefix
	}
	return fallback
}

// positionScores 把榜单名次换算成 [0,1] 的位置权重：榜首最高，榜尾趋近 0。
func (n *Hybrid) positionScores(ctx context.Context, key string) map[string]float64 {
	members, err := n.Store.ZRevRange(ctx, key, 0, -1)
	if err != nil || len(members) == 0 {
		return nil
	}
	total := float64(len(members))
	scores := make(map[string]float64, len(members))
	for rank, id := range members {
		scores[id] = (total - float64(rank)) / total
	}
	return scores
}

// maxPopularity 取榜首热度用于归一化，榜为空时返回 0。
func (n *Hybrid) maxPopularity(ctx context.Context) float64 {
	if n.Popularity == nil {
		return 0
	}
	top, err := n.Popularity.TopN(ctx, 1)
	if err != nil || len(top) == 0 {
		return 0
	}
	return top[0].Score
}

// sortByScore 按分数降序稳定排序。
func sortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		return items[i].Score > items[j].Score
	})
}
