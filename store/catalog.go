package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/marketrec/core"
)

// MemoryCatalog 是 core.ProductCatalog 的内存实现。
// 测试与示例用；生产环境由商品交易模块提供真实现。
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]*core.Product
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]*core.Product)}
}

// Put 写入或覆盖一个商品。
func (c *MemoryCatalog) Put(p *core.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.products[p.ID] = &cp
}

func (c *MemoryCatalog) ByID(_ context.Context, id string) (*core.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, core.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *MemoryCatalog) ByIDs(_ context.Context, ids []string) ([]*core.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) ByCategory(_ context.Context, category string, limit int) ([]*core.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Product, 0, limit)
	for _, p := range c.sortedByRecency() {
		if !p.Active() || p.Category != category {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *MemoryCatalog) Recent(_ context.Context, limit int) ([]*core.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Product, 0, limit)
	for _, p := range c.sortedByRecency() {
		if !p.Active() {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *MemoryCatalog) AllActive(_ context.Context) ([]*core.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Product, 0, len(c.products))
	for _, p := range c.products {
		if p.Active() {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// sortedByRecency 按上架时间倒序，时间相同按 id 保证稳定。
// 调用方必须持有读锁。
func (c *MemoryCatalog) sortedByRecency() []*core.Product {
	all := make([]*core.Product, 0, len(c.products))
	for _, p := range c.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all
}

var _ core.ProductCatalog = (*MemoryCatalog)(nil)
