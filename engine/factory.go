package engine

import (
	"fmt"

	"github.com/rushteam/marketrec/batch"
	"github.com/rushteam/marketrec/filter"
	"github.com/rushteam/marketrec/pipeline"
	"github.com/rushteam/marketrec/rank"
	"github.com/rushteam/marketrec/recall"
	"github.com/rushteam/marketrec/rerank"
)

// NodeFactory 返回注册了全部内置 Node 的工厂，供配置驱动的链路装配使用。
// 每次调用返回新实例，调用方可再注册自己的 Node 类型。
func (e *Engine) NodeFactory() *pipeline.NodeFactory {
	f := pipeline.NewNodeFactory()

	f.Register("recall.similarity", func(cfg map[string]interface{}) (pipeline.Node, error) {
		prefix := strOpt(cfg, "key_prefix", batch.ItemCFKeyPrefix)
		return &recall.SimilarityList{Store: e.store, KeyPrefix: prefix, Limit: intOpt(cfg, "limit", 50)}, nil
	})
	f.Register("recall.popular", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &recall.Popular{Popularity: e.popularity, Limit: intOpt(cfg, "limit", 30)}, nil
	})
	f.Register("recall.recent", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &recall.Recent{Catalog: e.catalog, Limit: intOpt(cfg, "limit", 20)}, nil
	})
	f.Register("recall.interest", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &recall.Interest{
			Catalog: e.catalog,
			TopTags: intOpt(cfg, "top_tags", 0),
			PerTag:  intOpt(cfg, "per_tag", 0),
		}, nil
	})
	f.Register("recall.trending", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &recall.TrendingSource{Trending: e.trending, Limit: intOpt(cfg, "limit", 30)}, nil
	})

	f.Register("filter.base", func(map[string]interface{}) (pipeline.Node, error) {
		return &filter.Node{Filters: []filter.Filter{
			&filter.Seen{},
			&filter.Catalog{Catalog: e.catalog},
			e.blacklist,
		}}, nil
	})
	f.Register("filter.rule", func(cfg map[string]interface{}) (pipeline.Node, error) {
		expr := strOpt(cfg, "expression", "")
		if expr == "" {
			return nil, fmt.Errorf("filter.rule: expression is required")
		}
		rule, err := filter.NewRule(expr)
		if err != nil {
			return nil, err
		}
		return &filter.Node{Filters: []filter.Filter{rule}}, nil
	})

	f.Register("rank.ncf", func(map[string]interface{}) (pipeline.Node, error) {
		return &rank.NCFNode{Scorer: e.ncf, Store: e.store}, nil
	})
	f.Register("rank.hybrid", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rank.Hybrid{
			Store:            e.store,
			Popularity:       e.popularity,
			CFWeight:         floatOpt(cfg, "cf_weight", e.cfg.Hybrid.CFWeight),
			ContentWeight:    floatOpt(cfg, "content_weight", e.cfg.Hybrid.ContentWeight),
			PopularityWeight: floatOpt(cfg, "popularity_weight", e.cfg.Hybrid.PopularityWeight),
		}, nil
	})
	f.Register("rank.interest_boost", func(map[string]interface{}) (pipeline.Node, error) {
		return &rank.InterestBoost{Catalog: e.catalog}, nil
	})
	f.Register("rank.realtime_blend", func(map[string]interface{}) (pipeline.Node, error) {
		return &rank.RealtimeBlend{
			Scorer:   e.ncf,
			Trending: e.trending,
			Session:  e.session,
			Similar:  &rank.StoreSimilarLister{Store: e.store, KeyPrefix: batch.ItemCFKeyPrefix},
		}, nil
	})

	f.Register("rerank.multiobjective", func(map[string]interface{}) (pipeline.Node, error) {
		return &rerank.MultiObjective{
			Objectives: &rerank.Objectives{
				Scorer:   e.ncf,
				Trending: e.trending,
				Features: e.features,
				Catalog:  e.catalog,
				Novelty:  e.cfg.Rerank.Novelty,
			},
			Weights: rerank.Weights{
				CTR:       e.cfg.Rerank.CTRWeight,
				CVR:       e.cfg.Rerank.CVRWeight,
				Revenue:   e.cfg.Rerank.RevenueWeight,
				Diversity: e.cfg.Rerank.DiversityWeight,
				Novelty:   e.cfg.Rerank.NoveltyWeight,
			},
		}, nil
	})
	f.Register("rerank.mmr", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rerank.MMR{
			Catalog: e.catalog,
			Lambda:  floatOpt(cfg, "lambda", e.cfg.Rerank.MMRLambda),
			K:       intOpt(cfg, "k", 0),
		}, nil
	})
	f.Register("rerank.topn", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rerank.TopNNode{N: intOpt(cfg, "n", 0)}, nil
	})
	f.Register("rerank.diversity", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rerank.Diversity{Catalog: e.catalog, PerCategory: intOpt(cfg, "per_category", 0)}, nil
	})

	return f
}

// RegisterStrategyFromConfig 从 YAML 流水线配置装配一条自定义策略链路。
// 链路名取配置里的 pipeline.name，同名覆盖已注册策略。
func (e *Engine) RegisterStrategyFromConfig(path string) error {
	cfg, err := pipeline.LoadFromYAML(path)
	if err != nil {
		return err
	}
	return e.registerStrategy(cfg)
}

func (e *Engine) registerStrategy(cfg *pipeline.Config) error {
	name := cfg.Pipeline.Name
	if name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	pipe, err := cfg.BuildPipeline(e.NodeFactory())
	if err != nil {
		return err
	}
	pipe.Log = e.log
	e.strategies[name] = &pipelineStrategy{name: name, pipe: pipe}
	return nil
}

func intOpt(cfg map[string]interface{}, key string, def int) int {
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatOpt(cfg map[string]interface{}, key string, def float64) float64 {
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func strOpt(cfg map[string]interface{}, key, def string) string {
	if cfg == nil {
		return def
	}
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return def
}
