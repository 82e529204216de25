package rank

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/model"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/pkg/utils"
	"github.com/rushteam/marketrec/realtime"
)

// NCFNode 用神经协同过滤模型逐个给候选打分。
// 命中实时分缓存（交互时预计算的 0.7*模型+0.3*趋势）则直接用缓存，省掉前向计算。
type NCFNode struct {
	Scorer model.Scorer
	Store  core.KeyValueStore // 实时分缓存，可为 nil
}

func (n *NCFNode) Name() string        { return "rank.ncf" }
func (n *NCFNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *NCFNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Scorer == nil || len(items) == 0 {
		return items, nil
	}

	userID := ""
	if rctx != nil {
		userID = rctx.UserID
	}

	for _, it := range items {
		if it == nil {
			continue
		}
		if n.Store != nil && userID != "" {
			if cached, ok := realtime.CachedScore(ctx, n.Store, userID, it.ID); ok {
				it.Score = cached
				it.PutLabel("rank_model", utils.Label{Value: n.Scorer.Name() + ":cached", Source: "rank"})
				continue
			}
		}
		score, err := n.Scorer.Score(ctx, userID, it.ID)
		if err != nil {
			// 模型失败时保留召回分，不中断排序
			continue
		}
		it.Score = score
		it.PutLabel("rank_model", utils.Label{Value: n.Scorer.Name(), Source: "rank"})
	}

	sortByScore(items)
	return items, nil
}
