package realtime

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/model"
)

const (
	scoreKeyPrefix  = "realtime:score:"
	scoreTTLSeconds = 10 * 60

	// 缓存实时分时 NCF 与趋势的混合权重
	scoreModelWeight    = 0.7
	scoreTrendingWeight = 0.3
)

// Processor 消费交互事件，推进所有在线状态。
// 单个子步骤失败只记日志继续，事件处理不向调用方抛错。
type Processor struct {
	Trending   *Trending
	Popularity *Popularity
	Session    *Session
	Model      *model.NCF
	Store      core.KeyValueStore

	Log zerolog.Logger
}

// Handle 处理一条交互：趋势标记、热度累加、会话追加、在线训练、实时分缓存。
func (p *Processor) Handle(ctx context.Context, in core.Interaction) {
	log := p.Log.With().Str("user", in.UserID).Str("product", in.ProductID).Str("action", string(in.Action)).Logger()

	if p.Trending != nil {
		if err := p.Trending.Touch(ctx, in.ProductID); err != nil {
			log.Warn().Err(err).Msg("trending touch failed")
		}
	}
	if p.Popularity != nil {
		if err := p.Popularity.Incr(ctx, in.ProductID, in.Action); err != nil {
			log.Warn().Err(err).Msg("popularity incr failed")
		}
	}
	if p.Session != nil {
		if err := p.Session.Append(ctx, in.UserID, in.ProductID, in.Action); err != nil {
			log.Warn().Err(err).Msg("session append failed")
		}
	}
	if p.Model != nil {
		if err := p.Model.Train(ctx, in.UserID, in.ProductID, in.Action); err != nil {
			log.Warn().Err(err).Msg("online train failed")
		}
	}

	p.cacheScore(ctx, in.UserID, in.ProductID, log)
}

// cacheScore 把 0.7*模型分 + 0.3*趋势分 写进短期缓存，供排序阶段直接读取。
func (p *Processor) cacheScore(ctx context.Context, userID, productID string, log zerolog.Logger) {
	if p.Model == nil || p.Store == nil {
		return
	}
	modelScore, err := p.Model.Score(ctx, userID, productID)
	if err != nil {
		log.Warn().Err(err).Msg("model score failed")
		return
	}
	var trending float64
	if p.Trending != nil {
		trending = p.Trending.Score(ctx, productID)
	}
	score := scoreModelWeight*modelScore + scoreTrendingWeight*trending

	key := scoreKeyPrefix + userID + ":" + productID
	if err := p.Store.Set(ctx, key, []byte(strconv.FormatFloat(score, 'f', -1, 64)), scoreTTLSeconds); err != nil {
		log.Warn().Err(err).Msg("realtime score cache failed")
	}
}

// CachedScore 读取实时分缓存，未命中返回 (0,false)。
func CachedScore(ctx context.Context, kv core.KeyValueStore, userID, productID string) (float64, bool) {
	raw, err := kv.Get(ctx, scoreKeyPrefix+userID+":"+productID)
	if err != nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return score, true
}
