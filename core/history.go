package core

import (
	"context"
	"time"
)

// ViewRecord 是一条浏览记录。
type ViewRecord struct {
	ProductID string
	At        time.Time
}

// HistoryProvider 是浏览历史与兴趣画像的领域接口。
// 行为数据的采集归历史模块所有；批处理与个性化召回只读消费。
type HistoryProvider interface {
	// RecordView 记录一次浏览，并增量更新兴趣画像
	RecordView(ctx context.Context, userID, productID string) error

	// ViewedProductIDs 返回用户浏览过的商品 id 集合（去重，最多最近 100 条）
	ViewedProductIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// History 返回用户最近的浏览记录，新的在前
	History(ctx context.Context, userID string, limit int) ([]ViewRecord, error)

	// InterestProfile 返回用户 TopN 兴趣标签及累积分数，按分数降序
	InterestProfile(ctx context.Context, userID string, topN int) ([]TagScore, error)

	// AllUsersWithHistory 返回所有有浏览历史的用户 id（批处理建语料用）
	AllUsersWithHistory(ctx context.Context) ([]string, error)
}

// TagScore 是兴趣画像中的一个标签及其累积分数。
// 分数只增不减（无衰减，与线上行为保持一致；长期用户画像会被早期
// 兴趣主导，见 DESIGN.md 的遗留问题记录）。
type TagScore struct {
	Tag   string
	Score int64
}
