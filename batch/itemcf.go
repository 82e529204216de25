package batch

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

// ItemCFKeyPrefix 是协同过滤相似列表的存储前缀：{prefix}{productID} -> zset。
const ItemCFKeyPrefix = "recommend:item-cf:"

// ItemCFJob 是基于物品的协同过滤离线任务（Item-CF）。
//
// 核心思想："被同一批用户浏览过的商品，相互相似"
//
// 算法流程：
//  1. 遍历所有有浏览历史的用户，取其去重浏览集合
//  2. 对每个用户浏览过的每个无序商品对，双向累加共现计数
//  3. sim(A,B) = co(A,B) / sqrt(total(A) * total(B))，余弦式归一化
//  4. 每个商品取 TopN，清空旧列表后整体写入（clear-then-write）
//
// 成本为 O(Σ_u k_u²)，k_u 受 MaxHistory 约束；单个用户处理失败
// 只跳过该用户的贡献，不中断整轮计算。
type ItemCFJob struct {
	History core.HistoryProvider
	Store   core.KeyValueStore

	// TopN 每个商品保留的相似商品数，默认 10
	TopN int

	// MaxHistory 单用户参与配对的浏览数上限，默认 100
	MaxHistory int

	Log zerolog.Logger
}

func (j *ItemCFJob) Name() string { return "batch.itemcf" }

func (j *ItemCFJob) Run(ctx context.Context) error {
	users, err := j.History.AllUsersWithHistory(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		j.Log.Info().Msg("no browsing data, skipping item-cf")
		return nil
	}

	matrix := j.buildCoOccurrence(ctx, users)
	if len(matrix) == 0 {
		return nil
	}

	sims := similarityMatrix(matrix)
	return j.storeSimilarLists(ctx, sims)
}

// buildCoOccurrence 构建共现矩阵：matrix[A][B] = 同时浏览过 A、B 的用户数。
func (j *ItemCFJob) buildCoOccurrence(ctx context.Context, users []string) map[string]map[string]float64 {
	maxHistory := j.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 100
	}

	matrix := make(map[string]map[string]float64)
	incr := func(a, b string) {
		row, ok := matrix[a]
		if !ok {
			row = make(map[string]float64)
			matrix[a] = row
		}
		row[b]++
	}

	for _, userID := range users {
		viewed, err := j.History.ViewedProductIDs(ctx, userID)
		if err != nil {
			j.Log.Warn().Err(err).Str("user", userID).Msg("skip user in item-cf")
			continue
		}

		products := make([]string, 0, len(viewed))
		for id := range viewed {
			products = append(products, id)
		}
		sort.Strings(products)
		if len(products) > maxHistory {
			products = products[:maxHistory]
		}

		for i := 0; i < len(products); i++ {
			for k := i + 1; k < len(products); k++ {
				incr(products[i], products[k])
				incr(products[k], products[i])
			}
		}
	}

	return matrix
}

// similarityMatrix 把共现计数归一化为余弦式相似度。
// sim(A,B) = co(A,B) / sqrt(total(A) * total(B))，落在 [0,1]。
func similarityMatrix(matrix map[string]map[string]float64) map[string]map[string]float64 {
	totals := make(map[string]float64, len(matrix))
	for productID, row := range matrix {
		var total float64
		for _, co := range row {
			total += co
		}
		totals[productID] = total
	}

	sims := make(map[string]map[string]float64, len(matrix))
	for a, row := range matrix {
		out := make(map[string]float64, len(row))
		for b, co := range row {
			ta, tb := totals[a], totals[b]
			if ta <= 0 || tb <= 0 {
				continue
			}
			out[b] = co / math.Sqrt(ta*tb)
		}
		sims[a] = out
	}
	return sims
}

func (j *ItemCFJob) storeSimilarLists(ctx context.Context, sims map[string]map[string]float64) error {
	topN := j.TopN
	if topN <= 0 {
		topN = 10
	}

	stored := 0
	for productID, row := range sims {
		top := topNBySim(row, topN)

		key := ItemCFKeyPrefix + productID
		// clear-then-write：读者要么看到旧列表，要么看到新列表，
		// 不会看到两轮混写的结果
		if err := j.Store.Delete(ctx, key); err != nil {
			j.Log.Warn().Err(err).Str("product", productID).Msg("clear similar list failed")
			continue
		}
		for _, zm := range top {
			if err := j.Store.ZAdd(ctx, key, zm.Score, zm.Member); err != nil {
				j.Log.Warn().Err(err).Str("product", productID).Msg("write similar list failed")
				break
			}
		}
		stored++
	}

	j.Log.Info().Int("products", stored).Msg("item-cf similar lists stored")
	return nil
}

// topNBySim 取相似度 TopN，降序；同分按商品 id 升序，保证确定性。
func topNBySim(row map[string]float64, n int) []core.ZMember {
	out := make([]core.ZMember, 0, len(row))
	for id, sim := range row {
		out = append(out, core.ZMember{Member: id, Score: sim})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
