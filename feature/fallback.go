package feature

import (
	"context"

	"github.com/rs/zerolog"
)

// FallbackProvider 按声明顺序逐个尝试多个特征来源，第一个成功的生效。
// 典型编排是 Feast 在前、目录推导断后：远端特征服务不可用时
// 重排不中断，只是退化到目录能给出的粗特征。
type FallbackProvider struct {
	providers []Provider

	Log zerolog.Logger
}

// NewFallbackProvider 组合多个来源，nil 的来源会被跳过。
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	out := &FallbackProvider{Log: zerolog.Nop()}
	for _, p := range providers {
		if p != nil {
			out.providers = append(out.providers, p)
		}
	}
	return out
}

func (p *FallbackProvider) Name() string { return "feature.fallback" }

func (p *FallbackProvider) ProductStats(ctx context.Context, productID string) (Stats, error) {
	for i, provider := range p.providers {
		stats, err := provider.ProductStats(ctx, productID)
		if err == nil {
			return stats, nil
		}
		if i < len(p.providers)-1 {
			p.Log.Warn().Err(err).Str("provider", provider.Name()).Str("product", productID).
				Msg("feature source failed, trying next")
		}
	}
	// 所有来源都失败时给兜底值，重排永远拿得到特征
	return Stats{EstimatedValue: DefaultEstimatedValue}, nil
}
