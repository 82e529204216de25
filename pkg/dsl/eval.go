// Package dsl 提供基于 CEL (Common Expression Language) 的规则表达式求值，
// 用于过滤/重排阶段的可配置业务规则。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/marketrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Rule 是一条编译后的规则表达式，编译一次可对任意多个 item 求值。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "popular" / item.score > 0.7
//   - 逻辑：label.category == "electronics" && item.score > 0.8
//   - 存在性：label.recall_source != null
//   - 包含：label.recall_source.contains("session")
type Rule struct {
	expr string
	prg  cel.Program
}

// Compile 编译规则表达式。空表达式编译为恒真规则。
func Compile(expr string) (*Rule, error) {
	if expr == "" {
		return &Rule{expr: expr}, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}

	return &Rule{expr: expr, prg: prg}, nil
}

// String 返回规则的原始表达式。
func (r *Rule) String() string { return r.expr }

// Evaluate 对单个 item 求值，返回布尔结果。
// 访问不存在的 key 会报错，存在性检查请用 label.key != null。
func (r *Rule) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if r.prg == nil {
		return true, nil
	}

	out, _, err := r.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据。
func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]interface{} {
	labels := make(map[string]interface{}, len(it.Labels))
	labelAccessor := make(map[string]interface{}, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = map[string]interface{}{
			"value":  v.Value,
			"source": v.Source,
		}
		// label.recall_source 直接取 value，兼容简写
		labelAccessor[k] = v.Value
	}

	item := map[string]interface{}{
		"id":       it.ID,
		"score":    it.Score,
		"features": it.Features,
		"meta":     it.Meta,
		"labels":   labels,
	}

	ctxMap := map[string]interface{}{}
	if rctx != nil {
		ctxMap = map[string]interface{}{
			"user_id": rctx.UserID,
			"scene":   rctx.Scene,
			"seed":    rctx.SeedProductID,
			"params":  rctx.Params,
		}
	}

	return map[string]interface{}{
		"item":  item,
		"label": labelAccessor,
		"rctx":  ctxMap,
	}
}
