package model

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

const (
	embeddingKeyPrefix = "ncf:embedding:"

	// EmbeddingDim 用户/商品 embedding 的维度。
	EmbeddingDim = 32

	// embeddingTTLSeconds embedding 7 天不活跃即过期，下次访问重新播种
	//（在线学到的增量随之丢失，近似模型可接受）。
	embeddingTTLSeconds = 7 * 24 * 3600

	hiddenSize = 64
	mlpSeed    = 42

	defaultLearningRate = 0.001
)

// NCF 是近似特征打分器（Neural Collaborative Filtering 的简化形态）。
//
// Score(user, item) = sigmoid(0.5 * GMF + 0.5 * MLP)：
//   - GMF：两个 embedding 的点积
//   - MLP：拼接两个 embedding，过一层 64 单元 ReLU 和一个线性输出单元；
//     隐层权重每次调用都从固定种子重新采样，因此该分支对同一输入是
//     确定的，但不随训练变化（见 DESIGN.md 对这一原始行为的保留说明）
//
// 在线更新是单步梯度下降直接作用在 embedding 上，不做完整反向传播。
// 并发更新同一实体时 last-write-wins；这是排序信号，不是事实数据源。
type NCF struct {
	store core.KeyValueStore

	// LearningRate 在线更新步长，默认 0.001
	LearningRate float64

	Log zerolog.Logger
}

func NewNCF(kv core.KeyValueStore) *NCF {
	return &NCF{store: kv, LearningRate: defaultLearningRate, Log: zerolog.Nop()}
}

func (n *NCF) Name() string { return "ncf" }

// Score 预测用户对商品的偏好分数，落在 (0,1)。
func (n *NCF) Score(ctx context.Context, userID, productID string) (float64, error) {
	userEmb, err := n.embedding(ctx, "user:"+userID)
	if err != nil {
		return 0, err
	}
	itemEmb, err := n.embedding(ctx, "item:"+productID)
	if err != nil {
		return 0, err
	}

	gmf := dot(userEmb, itemEmb)
	mlp := mlpForward(userEmb, itemEmb)
	return sigmoid(0.5*gmf + 0.5*mlp), nil
}

// Train 在线更新：error = label - score，对两侧 embedding 各做一步
// emb += lr * error * other 的更新并持久化。先更新用户侧，商品侧
// 用更新后的用户向量，与原始实现保持一致。
func (n *NCF) Train(ctx context.Context, userID, productID string, action core.Action) error {
	score, err := n.Score(ctx, userID, productID)
	if err != nil {
		return err
	}
	diff := action.TrainingLabel() - score

	userKey := "user:" + userID
	itemKey := "item:" + productID
	userEmb, err := n.embedding(ctx, userKey)
	if err != nil {
		return err
	}
	itemEmb, err := n.embedding(ctx, itemKey)
	if err != nil {
		return err
	}

	lr := n.LearningRate
	if lr <= 0 {
		lr = defaultLearningRate
	}

	for i := 0; i < EmbeddingDim; i++ {
		userEmb[i] += lr * diff * itemEmb[i]
	}
	for i := 0; i < EmbeddingDim; i++ {
		itemEmb[i] += lr * diff * userEmb[i]
	}

	if err := n.save(ctx, userKey, userEmb); err != nil {
		return err
	}
	return n.save(ctx, itemKey, itemEmb)
}

// embedding 读取实体的 embedding；不存在（或已过期）则用实体 id
// 派生的确定性种子重新播种 Gaussian(0, 0.1²) 并落盘。
func (n *NCF) embedding(ctx context.Context, entity string) ([]float64, error) {
	key := embeddingKeyPrefix + entity

	if data, err := n.store.Get(ctx, key); err == nil {
		var emb []float64
		if json.Unmarshal(data, &emb) == nil && len(emb) == EmbeddingDim {
			return emb, nil
		}
	} else if !core.IsStoreNotFound(err) {
		return nil, err
	}

	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(entity))))
	emb := make([]float64, EmbeddingDim)
	for i := range emb {
		emb[i] = rng.NormFloat64() * 0.1
	}
	if err := n.save(ctx, entity, emb); err != nil {
		return nil, err
	}
	return emb, nil
}

func (n *NCF) save(ctx context.Context, entity string, emb []float64) error {
	data, err := json.Marshal(emb)
	if err != nil {
		return err
	}
	return n.store.Set(ctx, embeddingKeyPrefix+entity, data, embeddingTTLSeconds)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// mlpForward 拼接两个 embedding 过一层 ReLU 与线性输出。
// 两层权重按顺序取自同一个固定种子的随机流。
func mlpForward(userEmb, itemEmb []float64) float64 {
	concat := make([]float64, 0, 2*EmbeddingDim)
	concat = append(concat, userEmb...)
	concat = append(concat, itemEmb...)

	rng := rand.New(rand.NewSource(mlpSeed))

	hidden := make([]float64, hiddenSize)
	for i := 0; i < hiddenSize; i++ {
		var sum float64
		for j := range concat {
			sum += concat[j] * rng.NormFloat64() * 0.1
		}
		hidden[i] = relu(sum)
	}

	var out float64
	for i := 0; i < hiddenSize; i++ {
		out += hidden[i] * rng.NormFloat64() * 0.1
	}
	return out
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

var _ Scorer = (*NCF)(nil)
