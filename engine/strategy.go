package engine

import (
	"context"
	"sort"

	"github.com/rushteam/marketrec/batch"
	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/filter"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/rank"
	"github.com/rushteam/marketrec/recall"
	"github.com/rushteam/marketrec/rerank"
)

// 实验分桶到策略的默认映射
const (
	StrategyItemCF   = "itemcf"
	StrategyContent  = "content"
	StrategyHybrid   = "hybrid"
	StrategyNCF      = "ncf"
	StrategyRealtime = "realtime"
)

// Strategy 是一条可按实验分桶切换的推荐链路。
type Strategy interface {
	Name() string
	Recommend(ctx context.Context, rctx *core.RecommendContext, limit int) ([]*core.Item, error)
}

// pipelineStrategy 把 Pipeline 包装成 Strategy。
type pipelineStrategy struct {
	name string
	pipe *pipeline.Pipeline
}

func (s *pipelineStrategy) Name() string { return s.name }

func (s *pipelineStrategy) Recommend(
	ctx context.Context,
	rctx *core.RecommendContext,
	limit int,
) ([]*core.Item, error) {
	items, err := s.pipe.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// variantStrategy 返回分桶名对应的策略名。未知分桶回退 itemcf（control 的语义）。
func variantStrategy(variant string) string {
	switch variant {
	case "variant_a":
		return StrategyContent
	case "variant_b":
		return StrategyHybrid
	case "variant_c":
		return StrategyNCF
	case "variant_d":
		return StrategyRealtime
	default:
		return StrategyItemCF
	}
}

// buildStrategies 组装五条内置策略链路。
func (e *Engine) buildStrategies() map[string]Strategy {
	baseFilters := []filter.Filter{
		&filter.Seen{},
		&filter.Catalog{Catalog: e.catalog},
		e.blacklist,
	}
	filterNode := &filter.Node{Filters: baseFilters}

	// 信息流链路额外做近期曝光去重；相似推荐页不去重，刷新得有结果
	feedFilterNode := &filter.Node{Filters: append(append([]filter.Filter{}, baseFilters...), e.exposure)}

	objectives := &rerank.Objectives{
		Scorer:   e.ncf,
		Trending: e.trending,
		Features: e.features,
		Catalog:  e.catalog,
		Novelty:  e.cfg.Rerank.Novelty,
	}
	multiObjective := &rerank.MultiObjective{
		Objectives: objectives,
		Weights: rerank.Weights{
			CTR:       e.cfg.Rerank.CTRWeight,
			CVR:       e.cfg.Rerank.CVRWeight,
			Revenue:   e.cfg.Rerank.RevenueWeight,
			Diversity: e.cfg.Rerank.DiversityWeight,
			Novelty:   e.cfg.Rerank.NoveltyWeight,
		},
	}

	strategies := map[string]Strategy{
		StrategyItemCF: &pipelineStrategy{
			name: StrategyItemCF,
			pipe: &pipeline.Pipeline{
				Log: e.log,
				Nodes: []pipeline.Node{
					&recall.SimilarityList{Store: e.store, KeyPrefix: batch.ItemCFKeyPrefix, Limit: 50},
					filterNode,
				},
			},
		},
		StrategyContent: &pipelineStrategy{
			name: StrategyContent,
			pipe: &pipeline.Pipeline{
				Log: e.log,
				Nodes: []pipeline.Node{
					&recall.SimilarityList{Store: e.store, KeyPrefix: batch.ContentKeyPrefix, Limit: 50},
					filterNode,
				},
			},
		},
		StrategyHybrid: &pipelineStrategy{
			name: StrategyHybrid,
			pipe: &pipeline.Pipeline{
				Log: e.log,
				Nodes: []pipeline.Node{
					&rank.Hybrid{
						Store:            e.store,
						Popularity:       e.popularity,
						CFWeight:         e.cfg.Hybrid.CFWeight,
						ContentWeight:    e.cfg.Hybrid.ContentWeight,
						PopularityWeight: e.cfg.Hybrid.PopularityWeight,
					},
					filterNode,
					// 先截断再做多目标，重排的模型打分开销按候选数线性涨
					&rerank.TopNNode{N: 200},
					multiObjective,
					&rerank.MMR{Catalog: e.catalog, Lambda: e.cfg.Rerank.MMRLambda},
				},
			},
		},
		StrategyNCF: &pipelineStrategy{
			name: StrategyNCF,
			pipe: &pipeline.Pipeline{
				Log: e.log,
				Nodes: []pipeline.Node{
					&recall.Fanout{
						Sources: []recall.Source{
							&recall.Interest{Catalog: e.catalog},
							&recall.SimilarityList{Store: e.store, KeyPrefix: batch.ItemCFKeyPrefix, Limit: 30},
							&recall.Popular{Popularity: e.popularity, Limit: 30},
							&recall.Recent{Catalog: e.catalog, Limit: 20},
						},
						Dedup: true,
					},
					feedFilterNode,
					&rank.NCFNode{Scorer: e.ncf, Store: e.store},
					&rank.InterestBoost{Catalog: e.catalog},
				},
			},
		},
		StrategyRealtime: &pipelineStrategy{
			name: StrategyRealtime,
			pipe: &pipeline.Pipeline{
				Log: e.log,
				Nodes: []pipeline.Node{
					&recall.Fanout{
						Sources: []recall.Source{
							&recall.SessionBased{Session: e.session, Store: e.store, KeyPrefix: batch.ItemCFKeyPrefix},
							&recall.TrendingSource{Trending: e.trending, Limit: 30},
							&recall.Popular{Popularity: e.popularity, Limit: 20},
						},
						Dedup:         true,
						MergeStrategy: "priority",
					},
					feedFilterNode,
					&rank.RealtimeBlend{
						Scorer:   e.ncf,
						Trending: e.trending,
						Session:  e.session,
						Similar:  &rank.StoreSimilarLister{Store: e.store, KeyPrefix: batch.ItemCFKeyPrefix},
					},
					// 热门容易同类目扎堆，实时链路按类目打散
					&rerank.Diversity{Catalog: e.catalog, PerCategory: 3},
				},
			},
		},
	}
	return strategies
}

// Strategies 返回已注册的策略名，便于运维自检。
func (e *Engine) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
