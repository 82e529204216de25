package core

import "github.com/rushteam/marketrec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/场景/实时信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string
	Scene  string // similar / feed / realtime ...

	// SeedProductID 是"相似商品"场景的锚定商品
	SeedProductID string

	// Interests 是用户兴趣画像（tag -> 累积分数），由 HistoryProvider 提供
	Interests map[string]int64

	// Viewed 是用户已浏览的商品 id 集合，用于过滤
	Viewed map[string]struct{}

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数（limit、实验分组等）
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// HasViewed 判断用户是否浏览过该商品。
func (rctx *RecommendContext) HasViewed(productID string) bool {
	if rctx.Viewed == nil {
		return false
	}
	_, ok := rctx.Viewed[productID]
	return ok
}
