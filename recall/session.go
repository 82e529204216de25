package recall

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/realtime"
)

// SessionBased 基于当前会话召回：对会话里交互过的商品逐个拉相似列表。
// 会话是最强的短期意图信号，适合作为高优先级来源参与 fan-out。
type SessionBased struct {
	Session   *realtime.Session
	Store     core.KeyValueStore
	KeyPrefix string // 相似列表前缀，例如 "recommend:item-cf:"
	PerSeed   int    // 每个会话商品拉取的相似数，零值取 5
}

func (r *SessionBased) Name() string        { return "recall.session" }
func (r *SessionBased) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *SessionBased) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *SessionBased) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	perSeed := r.PerSeed
	if perSeed <= 0 {
		perSeed = 5
	}

	seeds, err := r.Session.Products(ctx, rctx.UserID)
	if err != nil || len(seeds) == 0 {
		return nil, nil
	}

	var out []*core.Item
	for _, seed := range seeds {
		members, err := r.Store.ZRevRangeWithScores(ctx, r.KeyPrefix+seed, 0, int64(perSeed-1))
		if err != nil {
			continue
		}
		for _, m := range members {
			if m.Member == seed {
				continue
			}
			it := core.NewItem(m.Member)
			it.Score = m.Score
			out = append(out, it)
		}
	}
	return out, nil
}
