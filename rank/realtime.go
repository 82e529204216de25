package rank

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/model"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/pkg/utils"
	"github.com/rushteam/marketrec/realtime"
)

// 实时链路三路信号的混合权重
const (
	blendModelWeight    = 0.5
	blendTrendingWeight = 0.3
	blendSessionWeight  = 0.2
)

// StoreSimilarLister 从离线相似列表读取商品的 TopN 相似商品。
type StoreSimilarLister struct {
	Store     core.KeyValueStore
	KeyPrefix string
}

func (l *StoreSimilarLister) SimilarProducts(ctx context.Context, productID string, limit int) ([]string, error) {
	return l.Store.ZRevRange(ctx, l.KeyPrefix+productID, 0, int64(limit-1))
}

// RealtimeBlend 给实时链路的候选打分：0.5·模型分 + 0.3·趋势分 + 0.2·会话相关性。
// 模型失败回退召回分；趋势和会话信号缺失按 0 处理，不中断排序。
type RealtimeBlend struct {
	Scorer   model.Scorer
	Trending *realtime.Trending
	Session  *realtime.Session
	Similar  realtime.SimilarLister
}

func (n *RealtimeBlend) Name() string        { return "rank.realtime_blend" }
func (n *RealtimeBlend) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *RealtimeBlend) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
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

		modelScore := it.Score
		if n.Scorer != nil && userID != "" {
			if s, err := n.Scorer.Score(ctx, userID, it.ID); err == nil {
				modelScore = s
			}
		}

		var trending float64
		if n.Trending != nil {
			trending = n.Trending.Score(ctx, it.ID)
		}

		var session float64
		if n.Session != nil && n.Similar != nil && userID != "" {
			session = n.Session.RelevanceScore(ctx, userID, it.ID, n.Similar)
		}

		it.Score = blendModelWeight*modelScore + blendTrendingWeight*trending + blendSessionWeight*session
		it.PutLabel("rank_model", utils.Label{Value: "realtime_blend", Source: "rank"})
	}

	sortByScore(items)
	return items, nil
}
