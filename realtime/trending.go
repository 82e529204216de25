// Package realtime 承载请求路径上的在线状态：趋势窗口、热度、会话。
// 所有写入走存储的原子原语，单次操作失败只记日志，绝不阻塞用户交互。
package realtime

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/marketrec/core"
)

const trendingKey = "realtime:trending"

const (
	// trendingWindow 趋势分数的统计窗口
	trendingWindow = 5 * time.Minute

	// trendingHorizon 事件标记的保留上限，写入时顺手裁剪
	trendingHorizon = time.Hour

	// trendingNormalizer 窗口内计数除以该值并截断到 1.0
	trendingNormalizer = 100.0
)

// Trending 是滑动窗口的趋势聚合器。
// 每次交互往有序集合追加一个 "productID:timestamp" 标记（分数即时间戳），
// 趋势分数 = 最近 5 分钟的标记数 / 100，上限 1.0。
type Trending struct {
	store core.KeyValueStore
}

func NewTrending(kv core.KeyValueStore) *Trending {
	return &Trending{store: kv}
}

// Touch 记录一次交互标记，并顺手清掉超过 1 小时的旧标记。
// 标记用纳秒时间戳保证唯一，同一毫秒内的多次交互不会互相覆盖。
func (t *Trending) Touch(ctx context.Context, productID string) error {
	now := time.Now().UnixMilli()
	member := productID + ":" + strconv.FormatInt(time.Now().UnixNano(), 10)

	if err := t.store.ZAdd(ctx, trendingKey, float64(now), member); err != nil {
		return err
	}

	oldest := now - trendingHorizon.Milliseconds()
	return t.store.ZRemRangeByScore(ctx, trendingKey, 0, float64(oldest))
}

// Score 返回商品的趋势分数，落在 [0,1]。
func (t *Trending) Score(ctx context.Context, productID string) float64 {
	now := time.Now().UnixMilli()
	from := now - trendingWindow.Milliseconds()

	members, err := t.store.ZRangeByScore(ctx, trendingKey, float64(from), float64(now))
	if err != nil {
		return 0
	}

	var count float64
	prefix := productID + ":"
	for _, m := range members {
		if strings.HasPrefix(m, prefix) {
			count++
		}
	}
	return math.Min(1.0, count/trendingNormalizer)
}

// Products 返回窗口内有交互的商品，按最近交互时间倒序去重。
func (t *Trending) Products(ctx context.Context, window time.Duration, limit int) ([]string, error) {
	now := time.Now().UnixMilli()
	from := now - window.Milliseconds()

	members, err := t.store.ZRangeByScore(ctx, trendingKey, float64(from), float64(now))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for i := len(members) - 1; i >= 0 && len(out) < limit; i-- {
		id := markerProduct(members[i])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// WindowCounts 聚合窗口内各商品的交互次数。
func (t *Trending) WindowCounts(ctx context.Context, window time.Duration) (map[string]int64, error) {
	now := time.Now().UnixMilli()
	from := now - window.Milliseconds()

	members, err := t.store.ZRangeByScore(ctx, trendingKey, float64(from), float64(now))
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, m := range members {
		if id := markerProduct(m); id != "" {
			counts[id]++
		}
	}
	return counts, nil
}

// markerProduct 从 "productID:timestamp" 标记里取出商品 id。
func markerProduct(member string) string {
	idx := strings.LastIndex(member, ":")
	if idx <= 0 {
		return ""
	}
	return member[:idx]
}
