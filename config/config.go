// Package config 提供引擎的 YAML 配置：混合权重、多目标权重、调度间隔与实验声明。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig 是推荐引擎的全量配置。零值字段在 Normalize 时补默认值。
type EngineConfig struct {
	Hybrid     HybridConfig     `yaml:"hybrid"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Experiment ExperimentConfig `yaml:"experiment"`
}

// HybridConfig 混合排序权重。
type HybridConfig struct {
	CFWeight         float64 `yaml:"cf_weight"`
	ContentWeight    float64 `yaml:"content_weight"`
	PopularityWeight float64 `yaml:"popularity_weight"`
}

// RerankConfig 多目标重排配置。
type RerankConfig struct {
	CTRWeight       float64 `yaml:"ctr_weight"`
	CVRWeight       float64 `yaml:"cvr_weight"`
	RevenueWeight   float64 `yaml:"revenue_weight"`
	DiversityWeight float64 `yaml:"diversity_weight"`
	NoveltyWeight   float64 `yaml:"novelty_weight"`

	// Novelty 新颖性常数
	Novelty float64 `yaml:"novelty"`

	// MMRLambda MMR 的相关性/多样性折中系数
	MMRLambda float64 `yaml:"mmr_lambda"`
}

// Duration 包装 time.Duration，支持 YAML 里的 "30m" / "6h" 写法。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转回标准库类型。
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SchedulerConfig 离线任务调度配置。
type SchedulerConfig struct {
	ItemCFInterval  Duration `yaml:"itemcf_interval"`
	ContentInterval Duration `yaml:"content_interval"`
	DecayInterval   Duration `yaml:"decay_interval"`
	DecayFactor     float64  `yaml:"decay_factor"`
}

// ExperimentConfig 实验声明。分桶顺序即声明顺序。
type ExperimentConfig struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Active   bool            `yaml:"active"`
	Variants []VariantConfig `yaml:"variants"`
}

// VariantConfig 单个分桶的流量声明。
type VariantConfig struct {
	Name  string  `yaml:"name"`
	Share float64 `yaml:"share"`
}

// Load 从 YAML 文件加载引擎配置并补齐默认值。
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回全默认配置。
func Default() *EngineConfig {
	cfg := &EngineConfig{}
	cfg.Normalize()
	return cfg
}

// Normalize 为零值字段补默认。
func (c *EngineConfig) Normalize() {
	if c.Hybrid.CFWeight <= 0 {
		c.Hybrid.CFWeight = 0.4
	}
	if c.Hybrid.ContentWeight <= 0 {
		c.Hybrid.ContentWeight = 0.4
	}
	if c.Hybrid.PopularityWeight <= 0 {
		c.Hybrid.PopularityWeight = 0.2
	}

	if c.Rerank.CTRWeight <= 0 {
		c.Rerank.CTRWeight = 0.25
	}
	if c.Rerank.CVRWeight <= 0 {
		c.Rerank.CVRWeight = 0.30
	}
	if c.Rerank.RevenueWeight <= 0 {
		c.Rerank.RevenueWeight = 0.20
	}
	if c.Rerank.DiversityWeight <= 0 {
		c.Rerank.DiversityWeight = 0.15
	}
	if c.Rerank.NoveltyWeight <= 0 {
		c.Rerank.NoveltyWeight = 0.10
	}
	if c.Rerank.Novelty <= 0 {
		c.Rerank.Novelty = 0.7
	}
	if c.Rerank.MMRLambda <= 0 {
		c.Rerank.MMRLambda = 0.7
	}

	if c.Scheduler.ItemCFInterval <= 0 {
		c.Scheduler.ItemCFInterval = Duration(time.Hour)
	}
	if c.Scheduler.ContentInterval <= 0 {
		c.Scheduler.ContentInterval = Duration(6 * time.Hour)
	}
	if c.Scheduler.DecayInterval <= 0 {
		c.Scheduler.DecayInterval = Duration(24 * time.Hour)
	}
	if c.Scheduler.DecayFactor <= 0 || c.Scheduler.DecayFactor >= 1 {
		c.Scheduler.DecayFactor = 0.9
	}
}

// Validate 校验实验声明。
func (c *EngineConfig) Validate() error {
	if c.Experiment.ID == "" {
		return nil
	}
	var total float64
	for _, v := range c.Experiment.Variants {
		if v.Name == "" {
			return fmt.Errorf("experiment %s: variant with empty name", c.Experiment.ID)
		}
		if v.Share < 0 || v.Share > 1 {
			return fmt.Errorf("experiment %s: variant %s share %v out of [0,1]", c.Experiment.ID, v.Name, v.Share)
		}
		total += v.Share
	}
	if total > 1.0001 {
		return fmt.Errorf("experiment %s: variant shares sum %v exceeds 1", c.Experiment.ID, total)
	}
	return nil
}
