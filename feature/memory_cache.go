package feature

import (
	"context"
	"sync"
	"time"
)

// CachedProvider 是 Provider 的内存缓存装饰器。
// 商品统计特征变化缓慢，按 TTL 缓存可以挡掉重排阶段对
// 远端特征服务的重复查询；超出容量时淘汰最久未访问的条目。
type CachedProvider struct {
	inner Provider

	mu      sync.RWMutex
	entries map[string]*statsEntry

	maxSize int
	ttl     time.Duration
}

type statsEntry struct {
	stats      Stats
	expireAt   time.Time
	accessedAt time.Time
}

// NewCachedProvider 包装 inner。maxSize <= 0 取 10000，ttl <= 0 取 5 分钟。
func NewCachedProvider(inner Provider, maxSize int, ttl time.Duration) *CachedProvider {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{
		inner:   inner,
		entries: make(map[string]*statsEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (p *CachedProvider) Name() string { return "feature.cached:" + p.inner.Name() }

func (p *CachedProvider) ProductStats(ctx context.Context, productID string) (Stats, error) {
	now := time.Now()

	p.mu.RLock()
	entry, ok := p.entries[productID]
	p.mu.RUnlock()
	if ok && now.Before(entry.expireAt) {
		p.mu.Lock()
		entry.accessedAt = now
		p.mu.Unlock()
		return entry.stats, nil
	}

	stats, err := p.inner.ProductStats(ctx, productID)
	if err != nil {
		// 源失败时透传错误，不缓存失败结果
		return stats, err
	}

	p.mu.Lock()
	p.entries[productID] = &statsEntry{stats: stats, expireAt: now.Add(p.ttl), accessedAt: now}
	p.evictLocked(now)
	p.mu.Unlock()
	return stats, nil
}

// evictLocked 先清过期条目，仍超容量再按访问时间淘汰最旧的。
func (p *CachedProvider) evictLocked(now time.Time) {
	if len(p.entries) <= p.maxSize {
		return
	}
	for id, e := range p.entries {
		if now.After(e.expireAt) {
			delete(p.entries, id)
		}
	}
	for len(p.entries) > p.maxSize {
		var oldestID string
		var oldestAt time.Time
		for id, e := range p.entries {
			if oldestID == "" || e.accessedAt.Before(oldestAt) {
				oldestID, oldestAt = id, e.accessedAt
			}
		}
		delete(p.entries, oldestID)
	}
}

// Invalidate 移除单个商品的缓存（商品价格变更时调用）。
func (p *CachedProvider) Invalidate(productID string) {
	p.mu.Lock()
	delete(p.entries, productID)
	p.mu.Unlock()
}
