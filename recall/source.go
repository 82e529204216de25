// Package recall 提供候选生成：相似列表、热门、最新、兴趣、会话、趋势等召回源，
// 以及并发 fan-out 合并。
package recall

import (
	"context"

	"github.com/rushteam/marketrec/core"
)

// Source 表示一个可复用的召回源（相似/热门/兴趣/会话/...）。
// 你可以把它理解为"可并发 fan-out 的策略单元"。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
