package recall

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
)

// Recent 按上架时间倒序召回最新的在售商品。
type Recent struct {
	Catalog core.ProductCatalog
	Limit   int // 零值取 20
}

func (r *Recent) Name() string        { return "recall.recent" }
func (r *Recent) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Recent) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Recent) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = 20
	}

	products, err := r.Catalog.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(products))
	for _, p := range products {
		if !p.Active() {
			continue
		}
		out = append(out, core.NewItem(p.ID))
	}
	return out, nil
}
