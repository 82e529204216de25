package filter

import (
	"context"

	"github.com/rushteam/marketrec/core"
)

// Seen 过滤用户已经浏览过的商品和本次请求的种子商品。
type Seen struct{}

func (f *Seen) Name() string { return "filter.seen" }

func (f *Seen) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if rctx == nil {
		return false, nil
	}
	if rctx.SeedProductID != "" && item.ID == rctx.SeedProductID {
		return true, nil
	}
	return rctx.HasViewed(item.ID), nil
}
