package recall

import (
	"context"
	"time"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/realtime"
)

// TrendingSource 召回最近窗口内交互密集的商品。
type TrendingSource struct {
	Trending *realtime.Trending
	Window   time.Duration // 零值取 5 分钟
	Limit    int           // 零值取 20
}

func (r *TrendingSource) Name() string        { return "recall.trending" }
func (r *TrendingSource) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *TrendingSource) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *TrendingSource) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	window := r.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 20
	}

	ids, err := r.Trending.Products(ctx, window, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.Score = r.Trending.Score(ctx, id)
		out = append(out, it)
	}
	return out, nil
}
