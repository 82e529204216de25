package filter

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/marketrec/core"
)

// 运营黑名单的存储键
const (
	BlacklistProductsKey = "blacklist:products"
	BlacklistSellersKey  = "blacklist:sellers"
)

// Blacklist 按运营黑名单过滤：被举报下架的商品、被封禁的卖家。
// 名单存在共享存储的集合里，过滤器本地缓存一份，按 RefreshInterval 刷新，
// 避免每个候选都打一次存储。
type Blacklist struct {
	Store   core.KeyValueStore
	Catalog core.ProductCatalog // 可为 nil，此时不做卖家维度过滤

	// RefreshInterval 本地缓存刷新间隔，零值取 30 秒
	RefreshInterval time.Duration

	mu        sync.RWMutex
	products  map[string]struct{}
	sellers   map[string]struct{}
	lastFetch time.Time
}

func (f *Blacklist) Name() string { return "filter.blacklist" }

func (f *Blacklist) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	products, sellers := f.snapshot(ctx)

	if _, banned := products[item.ID]; banned {
		return true, nil
	}

	if len(sellers) > 0 && f.Catalog != nil {
		p, err := f.Catalog.ByID(ctx, item.ID)
		if err != nil {
			return false, nil
		}
		if _, banned := sellers[p.SellerID]; banned {
			return true, nil
		}
	}
	return false, nil
}

// BanProduct 把商品加入黑名单，立即对本过滤器生效。
func (f *Blacklist) BanProduct(ctx context.Context, productID string) error {
	if err := f.Store.SAdd(ctx, BlacklistProductsKey, productID); err != nil {
		return err
	}
	f.mu.Lock()
	if f.products == nil {
		f.products = make(map[string]struct{})
	}
	f.products[productID] = struct{}{}
	f.mu.Unlock()
	return nil
}

// BanSeller 把卖家加入黑名单，其全部在售商品都会被过滤。
func (f *Blacklist) BanSeller(ctx context.Context, sellerID string) error {
	if err := f.Store.SAdd(ctx, BlacklistSellersKey, sellerID); err != nil {
		return err
	}
	f.mu.Lock()
	if f.sellers == nil {
		f.sellers = make(map[string]struct{})
	}
	f.sellers[sellerID] = struct{}{}
	f.mu.Unlock()
	return nil
}

// snapshot 返回本地缓存的名单，过期则从存储刷新。
// 刷新失败时沿用旧名单，过滤宁可漏掉也不拖垮请求。
func (f *Blacklist) snapshot(ctx context.Context) (map[string]struct{}, map[string]struct{}) {
	interval := f.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	f.mu.RLock()
	fresh := time.Since(f.lastFetch) < interval && f.products != nil
	products, sellers := f.products, f.sellers
	f.mu.RUnlock()
	if fresh {
		return products, sellers
	}

	newProducts := fetchSet(ctx, f.Store, BlacklistProductsKey)
	newSellers := fetchSet(ctx, f.Store, BlacklistSellersKey)

	f.mu.Lock()
	if newProducts != nil {
		f.products = newProducts
	} else if f.products == nil {
		f.products = make(map[string]struct{})
	}
	if newSellers != nil {
		f.sellers = newSellers
	} else if f.sellers == nil {
		f.sellers = make(map[string]struct{})
	}
	f.lastFetch = time.Now()
	products, sellers = f.products, f.sellers
	f.mu.Unlock()
	return products, sellers
}

func fetchSet(ctx context.Context, kv core.KeyValueStore, key string) map[string]struct{} {
	members, err := kv.SMembers(ctx, key)
	if err != nil {
		return nil
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out
}
