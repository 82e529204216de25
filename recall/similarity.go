package recall

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
)

// SimilarityList 从预计算的相似列表有序集合里召回候选。
// KeyPrefix 指向离线任务的产出，例如 "recommend:item-cf:" 或 "recommend:content:"。
// 种子商品取自 rctx.SeedProductID，无种子时直接返回空。
type SimilarityList struct {
	Store     core.KeyValueStore
	KeyPrefix string
	Limit     int // 零值取 10
}

func (r *SimilarityList) Name() string        { return "recall.similarity" }
func (r *SimilarityList) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *SimilarityList) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *SimilarityList) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || rctx.SeedProductID == "" {
		return nil, nil
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 10
	}

	members, err := r.Store.ZRevRangeWithScores(ctx, r.KeyPrefix+rctx.SeedProductID, 0, int64(limit-1))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]*core.Item, 0, len(members))
	for _, m := range members {
		it := core.NewItem(m.Member)
		it.Score = m.Score
		out = append(out, it)
	}
	return out, nil
}
