package rerank

import (
	"context"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
)

// Diversity 是轻量的类目打散 Node：每个类目最多保留排序最靠前的 PerCategory 个商品。
// 比 MMR 粗暴但零开销，适合热门扎堆的实时链路。
// 类目来源优先级：
// - Catalog 查询结果
// - label["category"].Value
// - meta["category"] (string)
type Diversity struct {
	Catalog     core.ProductCatalog // 可为 nil，退回读 label/meta
	LabelKey    string              // 默认 "category"
	PerCategory int                 // 每个类目保留的数量，零值取 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	key := n.LabelKey
	if key == "" {
		key = "category"
	}
	perCategory := n.PerCategory
	if perCategory <= 0 {
		perCategory = 1
	}

	categories := n.lookupCategories(ctx, items)

	kept := make(map[string]int, 32)
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}

		cate := categories[it.ID]
		if cate == "" && it.Labels != nil {
			if lbl, ok := it.Labels[key]; ok {
				cate = lbl.Value
			}
		}
		if cate == "" && it.Meta != nil {
			if v, ok := it.Meta[key]; ok {
				if s, ok := v.(string); ok {
					cate = s
				}
			}
		}

		// 无类目信息的候选不参与打散
		if cate == "" {
			out = append(out, it)
			continue
		}
		if kept[cate] >= perCategory {
			continue
		}
		kept[cate]++
		out = append(out, it)
	}

	return out, nil
}

func (n *Diversity) lookupCategories(ctx context.Context, items []*core.Item) map[string]string {
	out := make(map[string]string, len(items))
	if n.Catalog == nil {
		return out
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}
	products, err := n.Catalog.ByIDs(ctx, ids)
	if err != nil {
		return out
	}
	for _, p := range products {
		out[p.ID] = p.Category
	}
	return out
}
