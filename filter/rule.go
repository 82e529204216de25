package filter

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pkg/dsl"
)

// Rule 是基于 CEL 表达式的规则过滤器，表达式命中即剔除。
// 例如 `item.score < 0.1` 或 `label.recall_source == "recent" && item.score == 0.0`。
type Rule struct {
	rule *dsl.Rule
}

// NewRule 编译表达式并返回规则过滤器。
func NewRule(expr string) (*Rule, error) {
	r, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Rule{rule: r}, nil
}

func (f *Rule) Name() string { return "filter.rule:" + f.rule.String() }

func (f *Rule) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	return f.rule.Evaluate(item, rctx)
}
