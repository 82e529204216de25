package abtest

import (
	"context"
	"math"
	"strconv"

	"github.com/rushteam/marketrec/core"
)

const (
	metricsKeyPrefix = "abtest:metrics:"

	// MetricImpression 等是内建指标名
	MetricImpression = "impressions"
	MetricClick      = "clicks"
	MetricConversion = "conversions"

	// 每个指标保留的滚动样本数
	maxSamples = 10000

	// 显著性检验的门槛
	minImpressions = 100
	zThreshold     = 1.96
)

// VariantMetrics 是单个分桶的聚合指标。
type VariantMetrics struct {
	Variant     string  `json:"variant"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	UniqueUsers int64   `json:"uniqueUsers"`
	CTR         float64 `json:"ctr"`
	CVR         float64 `json:"cvr"`
}

func counterKey(experimentID, variant, metric string) string {
	return metricsKeyPrefix + experimentID + ":" + variant + ":" + metric
}

// Track 为分桶累计一个指标：计数 +1、数值累加、滚动样本、去重用户。
func (m *Manager) Track(ctx context.Context, experimentID, variant, metric, userID string, value float64) {
	log := m.Log.With().Str("experiment", experimentID).Str("variant", variant).Str("metric", metric).Logger()

	if _, err := m.store.IncrBy(ctx, counterKey(experimentID, variant, metric), 1); err != nil {
		log.Warn().Err(err).Msg("metric counter failed")
	}
	if value != 0 {
		if _, err := m.store.ZIncrBy(ctx, metricsKeyPrefix+experimentID+":"+metric+":sum", value, variant); err != nil {
			log.Warn().Err(err).Msg("metric sum failed")
		}
	}

	sampleKey := counterKey(experimentID, variant, metric) + ":samples"
	if err := m.store.LPush(ctx, sampleKey, []byte(strconv.FormatFloat(value, 'f', -1, 64))); err != nil {
		log.Warn().Err(err).Msg("metric sample failed")
	} else if err := m.store.LTrim(ctx, sampleKey, 0, maxSamples-1); err != nil {
		log.Warn().Err(err).Msg("metric sample trim failed")
	}

	if userID != "" {
		if err := m.store.SAdd(ctx, counterKey(experimentID, variant, "users"), userID); err != nil {
			log.Warn().Err(err).Msg("metric unique user failed")
		}
	}
}

// TrackImpression 记录一次曝光。
func (m *Manager) TrackImpression(ctx context.Context, experimentID, variant, userID string) {
	m.Track(ctx, experimentID, variant, MetricImpression, userID, 0)
}

// TrackClick 记录一次点击。
func (m *Manager) TrackClick(ctx context.Context, experimentID, variant, userID string) {
	m.Track(ctx, experimentID, variant, MetricClick, userID, 0)
}

// TrackConversion 记录一次成交及其金额。
func (m *Manager) TrackConversion(ctx context.Context, experimentID, variant, userID string, revenue float64) {
	m.Track(ctx, experimentID, variant, MetricConversion, userID, revenue)
}

// Results 汇总实验各分桶的指标。
func (m *Manager) Results(ctx context.Context, experimentID string) (map[string]*VariantMetrics, error) {
	exp, err := m.Get(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*VariantMetrics, len(exp.Variants))
	for _, v := range exp.Variants {
		vm := &VariantMetrics{Variant: v.Name}
		vm.Impressions = m.counter(ctx, experimentID, v.Name, MetricImpression)
		vm.Clicks = m.counter(ctx, experimentID, v.Name, MetricClick)
		vm.Conversions = m.counter(ctx, experimentID, v.Name, MetricConversion)
		if revenue, err := m.store.ZScore(ctx, metricsKeyPrefix+experimentID+":"+MetricConversion+":sum", v.Name); err == nil {
			vm.Revenue = revenue
		}
		if users, err := m.store.SCard(ctx, counterKey(experimentID, v.Name, "users")); err == nil {
			vm.UniqueUsers = users
		}
		if vm.Impressions > 0 {
			vm.CTR = float64(vm.Clicks) / float64(vm.Impressions)
			vm.CVR = float64(vm.Conversions) / float64(vm.Impressions)
		}
		out[v.Name] = vm
	}
	return out, nil
}

func (m *Manager) counter(ctx context.Context, experimentID, variant, metric string) int64 {
	raw, err := m.store.Get(ctx, counterKey(experimentID, variant, metric))
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Significant 对两个分桶的点击率做双比例 z 检验。
// 任一分桶曝光不足 100 直接判不显著；|z| > 1.96 视为显著（95% 置信）。
func (m *Manager) Significant(ctx context.Context, experimentID, variantA, variantB string) (bool, float64, error) {
	results, err := m.Results(ctx, experimentID)
	if err != nil {
		return false, 0, err
	}
	a, okA := results[variantA]
	b, okB := results[variantB]
	if !okA || !okB {
		return false, 0, core.ErrExperimentNotFound
	}
	return TwoProportionZTest(a.Clicks, a.Impressions, b.Clicks, b.Impressions)
}

// TwoProportionZTest 计算双比例 z 统计量并判定显著性。
func TwoProportionZTest(clicksA, impressionsA, clicksB, impressionsB int64) (bool, float64, error) {
	if impressionsA < minImpressions || impressionsB < minImpressions {
		return false, 0, nil
	}

	n1, n2 := float64(impressionsA), float64(impressionsB)
	p1 := float64(clicksA) / n1
	p2 := float64(clicksB) / n2
	pooled := float64(clicksA+clicksB) / (n1 + n2)

	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return false, 0, nil
	}
	z := (p1 - p2) / se
	return math.Abs(z) > zThreshold, z, nil
}
