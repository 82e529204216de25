package recall

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/realtime"
)

// Popular 从全站热度榜召回，兜底场景和冷启动用户的主力来源。
type Popular struct {
	Popularity *realtime.Popularity
	Limit      int // 零值取 20
}

func (r *Popular) Name() string        { return "recall.popular" }
func (r *Popular) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Popular) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Popular) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = 20
	}

	members, err := r.Popularity.TopN(ctx, limit)
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
