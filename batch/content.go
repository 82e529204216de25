package batch

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

// ContentKeyPrefix 是内容相似列表的存储前缀：{prefix}{productID} -> zset。
const ContentKeyPrefix = "recommend:content:"

// contentTTLSeconds 内容相似列表的软过期时间（7 天）。
// 过期即视为失效，读侧走降级，不会拿到陈旧一个批次以上的数据。
const contentTTLSeconds = 7 * 24 * 3600

// ContentJob 是基于内容的相似度离线任务。
//
// 对每个在售商品提取带权 token（类目/名称/描述/价格桶/成色/地区），
// 在全量在售语料上算 TF-IDF 向量，两两混合三路信号：
//
//	combined = cosine(tfidf) * 0.8 + priceSim * 0.2
//	final    = combined * 0.9 + conditionSim * 0.1
//
// priceSim = exp(-2 * |p1-p2| / avg(p1,p2))，conditionSim = 1 - |c1-c2|/10。
// 每个商品存 TopN（默认 15），带 7 天软过期。
//
// O(P²) 的两两计算只允许出现在周期批处理里，绝不允许出现在请求路径。
type ContentJob struct {
	Catalog core.ProductCatalog
	Store   core.KeyValueStore

	// TopN 每个商品保留的相似商品数，默认 15
	TopN int

	Log zerolog.Logger
}

func (j *ContentJob) Name() string { return "batch.content" }

func (j *ContentJob) Run(ctx context.Context) error {
	products, err := j.Catalog.AllActive(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		j.Log.Info().Msg("no active products, skipping content similarity")
		return nil
	}

	df := documentFrequency(products)
	totalDocs := len(products)

	vectors := make(map[string]map[string]float64, totalDocs)
	for _, p := range products {
		vectors[p.ID] = tfidfVector(p, df, totalDocs)
	}

	topN := j.TopN
	if topN <= 0 {
		topN = 15
	}

	stored := 0
	for _, p := range products {
		sims := make(map[string]float64, len(products)-1)
		for _, other := range products {
			if p.ID == other.ID {
				continue
			}
			sims[other.ID] = blendedSimilarity(p, other, vectors[p.ID], vectors[other.ID])
		}

		if err := j.storeTopSimilar(ctx, p.ID, sims, topN); err != nil {
			j.Log.Warn().Err(err).Str("product", p.ID).Msg("store content similar failed")
			continue
		}
		stored++
	}

	j.Log.Info().Int("products", stored).Msg("content similar lists stored")
	return nil
}

// documentFrequency 统计每个 term 出现在多少个文档里（每文档只计一次）。
func documentFrequency(products []*core.Product) map[string]int {
	df := make(map[string]int)
	for _, p := range products {
		seen := make(map[string]struct{})
		for _, term := range ExtractTerms(p) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	return df
}

// tfidfVector 计算商品的稀疏 TF-IDF 向量。
// tfidf = (词频 / 总词数) * ln(总文档数 / 文档频率)。
func tfidfVector(p *core.Product, df map[string]int, totalDocs int) map[string]float64 {
	terms := ExtractTerms(p)
	if len(terms) == 0 {
		return map[string]float64{}
	}

	tf := make(map[string]int, len(terms))
	for _, term := range terms {
		tf[term]++
	}

	out := make(map[string]float64, len(tf))
	for term, count := range tf {
		docFreq := df[term]
		if docFreq <= 0 {
			docFreq = 1
		}
		out[term] = (float64(count) / float64(len(terms))) * math.Log(float64(totalDocs)/float64(docFreq))
	}
	return out
}

// blendedSimilarity 三路混合：文本余弦 + 价格相似 + 成色相似。
func blendedSimilarity(a, b *core.Product, va, vb map[string]float64) float64 {
	sim := cosineSparse(va, vb)*0.8 + priceSimilarity(a.Price, b.Price)*0.2

	conditionSim := 1.0 - math.Abs(float64(a.ConditionLevel-b.ConditionLevel))/10.0
	return sim*0.9 + conditionSim*0.1
}

// cosineSparse 计算两个稀疏向量的余弦相似度，非负向量下落在 [0,1]。
func cosineSparse(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, va := range a {
		normA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// priceSimilarity 价格差的指数衰减；任一价格缺失时返回中性值 0.5。
func priceSimilarity(p1, p2 float64) float64 {
	if p1 <= 0 || p2 <= 0 {
		return 0.5
	}
	avg := (p1 + p2) / 2
	return math.Exp(-2 * math.Abs(p1-p2) / avg)
}

func (j *ContentJob) storeTopSimilar(ctx context.Context, productID string, sims map[string]float64, topN int) error {
	top := topNBySim(sims, topN)

	key := ContentKeyPrefix + productID
	if err := j.Store.Delete(ctx, key); err != nil {
		return err
	}
	for _, zm := range top {
		if err := j.Store.ZAdd(ctx, key, zm.Score, zm.Member); err != nil {
			return err
		}
	}
	return j.Store.Expire(ctx, key, contentTTLSeconds)
}
