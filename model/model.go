package model

import "context"

// Scorer 是打分模型的最小抽象：输入用户与商品，输出一个可比较的分数。
// 具体实现可以是本地近似模型（NCF），也可以换成远程推理服务。
type Scorer interface {
	Name() string
	Score(ctx context.Context, userID, productID string) (float64, error)
}
