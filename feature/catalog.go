package feature

import (
	"context"

	"github.com/rushteam/marketrec/core"
)

// CatalogProvider 从商品目录推导统计特征：
// 客单价估计直接取标价，无标价时兜底；基础转化率目录给不了，恒为 0。
type CatalogProvider struct {
	Catalog core.ProductCatalog
}

func (p *CatalogProvider) Name() string { return "feature.catalog" }

func (p *CatalogProvider) ProductStats(ctx context.Context, productID string) (Stats, error) {
	product, err := p.Catalog.ByID(ctx, productID)
	if err != nil {
		if core.IsNotFound(err) {
			return Stats{EstimatedValue: DefaultEstimatedValue}, nil
		}
		return Stats{}, err
	}

	value := product.Price
	if value <= 0 {
		value = DefaultEstimatedValue
	}
	return Stats{EstimatedValue: value}, nil
}
