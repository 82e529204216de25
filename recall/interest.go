package recall

import (
	"context"
	"sort"
	"strings"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pipeline"
)

// Interest 按用户兴趣画像召回：取画像里权重最高的几个类目标签，
// 每个标签拉取对应类目下的在售商品。
type Interest struct {
	Catalog core.ProductCatalog
	TopTags int // 参与召回的标签数，零值取 3
	PerTag  int // 每个标签拉取的商品数，零值取 10
}

func (r *Interest) Name() string        { return "recall.interest" }
func (r *Interest) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Interest) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Interest) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || len(rctx.Interests) == 0 {
		return nil, nil
	}

	topTags := r.TopTags
	if topTags <= 0 {
		topTags = 3
	}
	perTag := r.PerTag
	if perTag <= 0 {
		perTag = 10
	}

	tags := make([]string, 0, len(rctx.Interests))
	for tag := range rctx.Interests {
		// 成色标签不是类目，跳过
		if strings.HasPrefix(tag, "condition_") {
			continue
		}
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		si, sj := rctx.Interests[tags[i]], rctx.Interests[tags[j]]
		if si != sj {
			return si > sj
		}
		return tags[i] < tags[j]
	})
	if len(tags) > topTags {
		tags = tags[:topTags]
	}

	var out []*core.Item
	for _, tag := range tags {
		products, err := r.Catalog.ByCategory(ctx, tag, perTag)
		if err != nil {
			continue
		}
		weight := float64(rctx.Interests[tag])
		for _, p := range products {
			if !p.Active() {
				continue
			}
			it := core.NewItem(p.ID)
			it.Score = weight
			out = append(out, it)
		}
	}
	return out, nil
}
