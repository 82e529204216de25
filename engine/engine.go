// Package engine 是推荐引擎的门面：组装存储、历史、离线任务、模型、实时态、
// 实验框架与各条策略链路，对外暴露相似推荐、个性化信息流与交互上报。
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/abtest"
	"github.com/rushteam/marketrec/batch"
	"github.com/rushteam/marketrec/config"
	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/feature"
	"github.com/rushteam/marketrec/filter"
	"github.com/rushteam/marketrec/history"
	"github.com/rushteam/marketrec/model"
	"github.com/rushteam/marketrec/realtime"
)

// DefaultExperimentID 引擎内置的策略实验
const DefaultExperimentID = "strategy"

// Engine 聚合全部组件。所有依赖构造时注入，不依赖全局单例。
type Engine struct {
	store   core.KeyValueStore
	catalog core.ProductCatalog
	cfg     *config.EngineConfig

	history    core.HistoryProvider
	trending   *realtime.Trending
	popularity *realtime.Popularity
	session    *realtime.Session
	processor  *realtime.Processor
	ncf        *model.NCF
	scheduler  *batch.Scheduler
	abtest     *abtest.Manager
	features   feature.Provider
	blacklist  *filter.Blacklist
	exposure   *filter.Exposure

	strategies map[string]Strategy

	log zerolog.Logger
}

// Option 调整引擎的可选依赖。
type Option func(*Engine)

// WithLogger 注入日志器，默认 Nop。
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithFeatureProvider 替换商品统计特征来源（默认目录推导，可换 Feast）。
func WithFeatureProvider(p feature.Provider) Option {
	return func(e *Engine) { e.features = p }
}

// New 组装推荐引擎。cfg 为 nil 时使用全默认配置。
func New(cfg *config.EngineConfig, kv core.KeyValueStore, catalog core.ProductCatalog, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}

	e := &Engine{
		store:   kv,
		catalog: catalog,
		cfg:     cfg,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.history = history.NewStoreHistory(kv, catalog, e.log)
	e.trending = realtime.NewTrending(kv)
	e.popularity = realtime.NewPopularity(kv)
	e.popularity.Log = e.log
	e.session = realtime.NewSession(kv)
	e.session.Log = e.log
	e.ncf = model.NewNCF(kv)
	e.ncf.Log = e.log
	e.abtest = abtest.NewManager(kv)
	e.abtest.Log = e.log
	catalogFeatures := &feature.CatalogProvider{Catalog: catalog}
	if e.features == nil {
		e.features = catalogFeatures
	} else {
		// 注入的是远端来源（如 Feast）：目录推导断后，再套本地缓存
		fallback := feature.NewFallbackProvider(e.features, catalogFeatures)
		fallback.Log = e.log
		e.features = feature.NewCachedProvider(fallback, 0, 0)
	}
	e.blacklist = &filter.Blacklist{Store: kv, Catalog: catalog}
	e.exposure = &filter.Exposure{Store: kv}

	e.processor = &realtime.Processor{
		Trending:   e.trending,
		Popularity: e.popularity,
		Session:    e.session,
		Model:      e.ncf,
		Store:      kv,
		Log:        e.log,
	}

	e.scheduler = batch.NewScheduler(e.log)
	e.scheduler.Register(
		&batch.ItemCFJob{History: e.history, Store: kv, Log: e.log},
		cfg.Scheduler.ItemCFInterval.Std(),
	)
	e.scheduler.Register(
		&batch.ContentJob{Catalog: catalog, Store: kv, Log: e.log},
		cfg.Scheduler.ContentInterval.Std(),
	)
	e.scheduler.Register(
		&batch.DecayJob{Popularity: e.popularity, Factor: cfg.Scheduler.DecayFactor},
		cfg.Scheduler.DecayInterval.Std(),
	)

	e.strategies = e.buildStrategies()
	e.seedExperiment(context.Background())
	return e
}

// seedExperiment 把配置声明的实验落到存储，已有配置不覆盖。
func (e *Engine) seedExperiment(ctx context.Context) {
	decl := e.cfg.Experiment
	if decl.ID == "" {
		return
	}
	if _, err := e.abtest.Get(ctx, decl.ID); err == nil {
		return
	}

	variants := make([]abtest.Variant, 0, len(decl.Variants))
	for _, v := range decl.Variants {
		variants = append(variants, abtest.Variant{Name: v.Name, Share: v.Share})
	}
	exp := &abtest.Experiment{ID: decl.ID, Name: decl.Name, Variants: variants, Active: decl.Active}
	if err := e.abtest.Save(ctx, exp); err != nil {
		e.log.Warn().Err(err).Str("experiment", decl.ID).Msg("seed experiment failed")
	}
}

// Start 启动离线任务调度。
func (e *Engine) Start(ctx context.Context) {
	e.scheduler.Start(ctx)
}

// Stop 停止调度并等待在途任务结束。
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// History 暴露历史与画像的只读入口。
func (e *Engine) History() core.HistoryProvider { return e.history }

// Experiments 暴露实验管理入口。
func (e *Engine) Experiments() *abtest.Manager { return e.abtest }

// Blacklist 暴露运营黑名单入口（封禁商品/卖家）。
func (e *Engine) Blacklist() *filter.Blacklist { return e.blacklist }

// GetSimilarProducts 返回与种子商品相似的推荐。
// 策略按实验分桶选择；相似列表缺失时回退同类目，再退为空。不返回错误。
func (e *Engine) GetSimilarProducts(ctx context.Context, userID, productID string, limit int) []*core.Item {
	if limit <= 0 {
		limit = 10
	}

	rctx := e.buildContext(ctx, userID)
	rctx.Scene = "similar"
	rctx.SeedProductID = productID

	variant := e.assignVariant(ctx, userID)
	strategy := e.strategyFor(variant)

	items, err := strategy.Recommend(ctx, rctx, limit)
	if err != nil {
		e.log.Warn().Err(err).Str("strategy", strategy.Name()).Str("seed", productID).
			Msg("similar recommendation failed")
		items = nil
	}
	if len(items) == 0 {
		items = e.categoryFallback(ctx, rctx, productID, limit)
	}

	e.trackImpressions(ctx, userID, variant, items)
	return items
}

// GetPersonalizedFeed 返回用户的个性化信息流。
// 画像为空时回退热门/最新；结果绝不包含用户浏览过或自己挂出的商品。
func (e *Engine) GetPersonalizedFeed(ctx context.Context, userID string, limit int) []*core.Item {
	if limit <= 0 {
		limit = 20
	}

	rctx := e.buildContext(ctx, userID)
	rctx.Scene = "feed"

	variant := e.assignVariant(ctx, userID)
	strategyName := variantStrategy(variant)
	// 信息流没有种子商品，纯相似类策略退到 ncf 链路
	if strategyName == StrategyItemCF || strategyName == StrategyContent || strategyName == StrategyHybrid {
		strategyName = StrategyNCF
	}
	strategy := e.strategies[strategyName]

	items, err := strategy.Recommend(ctx, rctx, limit)
	if err != nil {
		e.log.Warn().Err(err).Str("strategy", strategy.Name()).Str("user", userID).
			Msg("feed recommendation failed")
		items = nil
	}
	if len(items) == 0 {
		items = e.feedFallback(ctx, rctx, limit)
	}

	e.trackImpressions(ctx, userID, variant, items)
	e.recordExposure(ctx, userID, items)
	return items
}

// HandleInteraction 上报一条用户交互：实时态推进 + 浏览历史记录。
// 即发即弃，任何失败只记日志。
func (e *Engine) HandleInteraction(ctx context.Context, in core.Interaction) {
	e.processor.Handle(ctx, in)

	if in.Action == core.ActionView {
		if err := e.history.RecordView(ctx, in.UserID, in.ProductID); err != nil {
			e.log.Warn().Err(err).Str("user", in.UserID).Str("product", in.ProductID).
				Msg("record view failed")
		}
	}

	variant := e.assignVariant(ctx, in.UserID)
	switch in.Action {
	case core.ActionView:
		e.abtest.TrackClick(ctx, DefaultExperimentID, variant, in.UserID)
	case core.ActionOrder:
		revenue := feature.DefaultEstimatedValue
		if stats, err := e.features.ProductStats(ctx, in.ProductID); err == nil && stats.EstimatedValue > 0 {
			revenue = stats.EstimatedValue
		}
		e.abtest.TrackConversion(ctx, DefaultExperimentID, variant, in.UserID, revenue)
	}
}

// UpdatePopularity 单独累加一次热度（不产生历史/会话副作用）。
func (e *Engine) UpdatePopularity(ctx context.Context, productID string, action core.Action) error {
	return e.popularity.Incr(ctx, productID, action)
}

// TriggerRecompute 立即重算全部离线产物（CF、内容相似、热度衰减）。
func (e *Engine) TriggerRecompute(ctx context.Context) {
	e.scheduler.TriggerNow(ctx)
}

// buildContext 组装请求级上下文：兴趣画像 + 已浏览集合。
func (e *Engine) buildContext(ctx context.Context, userID string) *core.RecommendContext {
	rctx := &core.RecommendContext{UserID: userID}
	if userID == "" {
		return rctx
	}

	if viewed, err := e.history.ViewedProductIDs(ctx, userID); err == nil {
		rctx.Viewed = viewed
	}
	if tags, err := e.history.InterestProfile(ctx, userID, 10); err == nil && len(tags) > 0 {
		rctx.Interests = make(map[string]int64, len(tags))
		for _, t := range tags {
			rctx.Interests[t.Tag] = t.Score
		}
	}
	return rctx
}

func (e *Engine) assignVariant(ctx context.Context, userID string) string {
	if userID == "" {
		return abtest.ControlVariant
	}
	return e.abtest.Assign(ctx, userID, DefaultExperimentID)
}

func (e *Engine) strategyFor(variant string) Strategy {
	if s, ok := e.strategies[variantStrategy(variant)]; ok {
		return s
	}
	return e.strategies[StrategyItemCF]
}

// categoryFallback 在相似列表缺失时按同类目补候选，仍过不了再给空。
func (e *Engine) categoryFallback(ctx context.Context, rctx *core.RecommendContext, productID string, limit int) []*core.Item {
	product, err := e.catalog.ByID(ctx, productID)
	if err != nil {
		return nil
	}
	products, err := e.catalog.ByCategory(ctx, product.Category, limit+1)
	if err != nil {
		return nil
	}

	out := make([]*core.Item, 0, limit)
	for _, p := range products {
		if p.ID == productID || !p.Active() {
			continue
		}
		if rctx.HasViewed(p.ID) || (rctx.UserID != "" && p.SellerID == rctx.UserID) {
			continue
		}
		out = append(out, core.NewItem(p.ID))
		if len(out) >= limit {
			break
		}
	}
	return out
}

// feedFallback 依次回退热门、最新，仍排除已浏览与自家商品。
func (e *Engine) feedFallback(ctx context.Context, rctx *core.RecommendContext, limit int) []*core.Item {
	exclude := func(id string) bool {
		if rctx.HasViewed(id) {
			return true
		}
		p, err := e.catalog.ByID(ctx, id)
		if err != nil || !p.Active() {
			return true
		}
		return rctx.UserID != "" && p.SellerID == rctx.UserID
	}

	var out []*core.Item
	if top, err := e.popularity.TopN(ctx, limit*2); err == nil {
		for _, m := range top {
			if exclude(m.Member) {
				continue
			}
			it := core.NewItem(m.Member)
			it.Score = m.Score
			out = append(out, it)
			if len(out) >= limit {
				return out
			}
		}
	}

	if recent, err := e.catalog.Recent(ctx, limit*2); err == nil {
		present := make(map[string]struct{}, len(out))
		for _, it := range out {
			present[it.ID] = struct{}{}
		}
		for _, p := range recent {
			if _, ok := present[p.ID]; ok {
				continue
			}
			if exclude(p.ID) {
				continue
			}
			out = append(out, core.NewItem(p.ID))
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func (e *Engine) trackImpressions(ctx context.Context, userID, variant string, items []*core.Item) {
	if userID == "" || len(items) == 0 {
		return
	}
	e.abtest.TrackImpression(ctx, DefaultExperimentID, variant, userID)
}

// recordExposure 记录信息流曝光，短窗口内不再重复推同一批商品。
func (e *Engine) recordExposure(ctx context.Context, userID string, items []*core.Item) {
	if userID == "" || len(items) == 0 {
		return
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := e.exposure.Record(ctx, userID, ids); err != nil {
		e.log.Warn().Err(err).Str("user", userID).Msg("exposure record failed")
	}
}
