package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

// PopularityKey 全站热度榜的有序集合键
const PopularityKey = "recommend:popularity"

// Popularity 维护按行为加权累计的全站热度榜。
// 浏览 +1、收藏 +3、加购 +5、下单 +10、评价 +8，定期整体衰减防止老商品霸榜。
type Popularity struct {
	store core.KeyValueStore

	Log zerolog.Logger
}

func NewPopularity(kv core.KeyValueStore) *Popularity {
	return &Popularity{store: kv, Log: zerolog.Nop()}
}

// Incr 按行为权重累加商品热度。
func (p *Popularity) Incr(ctx context.Context, productID string, action core.Action) error {
	_, err := p.store.ZIncrBy(ctx, PopularityKey, float64(action.Weight()), productID)
	return err
}

// Score 返回商品当前热度，未上榜返回 0。
func (p *Popularity) Score(ctx context.Context, productID string) float64 {
	score, err := p.store.ZScore(ctx, PopularityKey, productID)
	if err != nil {
		return 0
	}
	return score
}

// TopN 返回热度榜前 n 名。
func (p *Popularity) TopN(ctx context.Context, n int) ([]core.ZMember, error) {
	return p.store.ZRevRangeWithScores(ctx, PopularityKey, 0, int64(n-1))
}

// Decay 把榜上所有分数乘以 factor。
// 逐个回写而非脚本化，分数条目有限（活跃商品数量级），可接受。
func (p *Popularity) Decay(ctx context.Context, factor float64) error {
	members, err := p.store.ZRevRangeWithScores(ctx, PopularityKey, 0, -1)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := p.store.ZAdd(ctx, PopularityKey, m.Score*factor, m.Member); err != nil {
			p.Log.Warn().Err(err).Str("product", m.Member).Msg("popularity decay write failed")
		}
	}
	p.Log.Info().Int("products", len(members)).Float64("factor", factor).Msg("popularity decayed")
	return nil
}
