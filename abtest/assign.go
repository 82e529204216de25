package abtest

import (
	"context"

	"github.com/cespare/xxhash/v2"
)

// Assign 返回用户在实验中的分桶，幂等：
// 先查缓存的历史分桶；未命中时对 用户+实验 做 xxhash，映射到 [0,1)，
// 按 Variants 声明顺序累计流量占比找到落点，并缓存 30 天。
// 实验缺失、停用或配置损坏时一律返回 control，不报错。
func (m *Manager) Assign(ctx context.Context, userID, experimentID string) string {
	cacheKey := assignKeyPrefix + userID + ":" + experimentID
	if cached, err := m.store.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
		return string(cached)
	}

	exp, err := m.Get(ctx, experimentID)
	if err != nil || !exp.Active || len(exp.Variants) == 0 {
		return ControlVariant
	}

	variant := bucket(userID, experimentID, exp.Variants)

	if err := m.store.Set(ctx, cacheKey, []byte(variant), experimentTTLSeconds); err != nil {
		m.Log.Warn().Err(err).Str("user", userID).Str("experiment", experimentID).
			Msg("assignment cache write failed")
	}
	return variant
}

// bucket 把哈希点落进按声明顺序累计的流量区间。
// 占比总和不足 1 时，落在区间外的流量归 control。
func bucket(userID, experimentID string, variants []Variant) string {
	h := xxhash.Sum64String(experimentID + ":" + userID)
	point := float64(h) / float64(1<<63) / 2 // [0,1)

	var cum float64
	for _, v := range variants {
		cum += v.Share
		if point < cum {
			return v.Name
		}
	}
	return ControlVariant
}
