// Package feature 提供商品统计特征（基础转化率、客单价估计），供重排阶段使用。
package feature

import (
	"context"
)

// DefaultEstimatedValue 缺失客单价特征时的兜底值
const DefaultEstimatedValue = 50.0

// DefaultBaseCVR 缺失历史转化率特征时的平均转化率兜底值
const DefaultBaseCVR = 0.1

// Stats 是重排需要的商品统计特征。
type Stats struct {
	// BaseCVR 商品的历史基础转化率，缺失为 0
	BaseCVR float64

	// EstimatedValue 成交客单价估计，缺失取 DefaultEstimatedValue
	EstimatedValue float64
}

// Provider 按商品提供统计特征。
type Provider interface {
	Name() string
	ProductStats(ctx context.Context, productID string) (Stats, error)
}
