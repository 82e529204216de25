package core

import (
	"context"
	"time"
)

// 商品状态
const (
	ProductInactive = 0
	ProductActive   = 1
)

// Product 是商品的只读视图。生命周期归商品交易模块所有，
// 推荐引擎只消费，永远不修改。
type Product struct {
	ID             string
	SellerID       string
	Name           string
	Description    string
	Category       string
	Price          float64
	ConditionLevel int // 成色 0-10
	Location       string
	Status         int // ProductActive / ProductInactive
	CreatedAt      time.Time
}

// Active 判断商品是否在售。
func (p *Product) Active() bool {
	return p != nil && p.Status == ProductActive
}

// ProductCatalog 是商品查询的领域接口，由商品模块实现。
// 推荐引擎通过它获取批处理语料和降级候选。
type ProductCatalog interface {
	// ByID 按 id 查询单个商品，不存在返回 ErrProductNotFound
	ByID(ctx context.Context, id string) (*Product, error)

	// ByIDs 按 id 列表批量查询，缺失的 id 静默跳过
	ByIDs(ctx context.Context, ids []string) ([]*Product, error)

	// ByCategory 查询某类目下的在售商品
	ByCategory(ctx context.Context, category string, limit int) ([]*Product, error)

	// Recent 查询最近上架的在售商品（冷启动降级用）
	Recent(ctx context.Context, limit int) ([]*Product, error)

	// AllActive 查询全部在售商品（仅批处理建语料用，禁止请求路径调用）
	AllActive(ctx context.Context) ([]*Product, error)
}
