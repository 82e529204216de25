package filter

import (
	"context"

	"github.com/rushteam/marketrec/core"
)

// Catalog 按商品目录过滤：下架商品、用户自己挂出的商品。
// 目录查不到的商品也会被剔除，避免给出死链。
type Catalog struct {
	Catalog core.ProductCatalog

	// KeepOwn 为 true 时保留用户自己卖的商品（卖家后台场景用）
	KeepOwn bool
}

func (f *Catalog) Name() string { return "filter.catalog" }

func (f *Catalog) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	p, err := f.Catalog.ByID(ctx, item.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	if !p.Active() {
		return true, nil
	}
	if !f.KeepOwn && rctx != nil && rctx.UserID != "" && p.SellerID == rctx.UserID {
		return true, nil
	}
	return false, nil
}
