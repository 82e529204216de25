package filter

import (
	"context"
	"time"

	"github.com/rushteam/marketrec/core"
)

// ExposureKeyPrefix 曝光记录的存储前缀：{prefix}{userID} -> zset(productID -> 曝光时间戳 ms)
const ExposureKeyPrefix = "exposure:user:"

// Exposure 按近期曝光过滤：短时间内已经推给用户的商品不再重复出现。
// 引擎在返回推荐结果后调用 Record 落曝光，过滤器在下一次请求时生效。
type Exposure struct {
	Store core.KeyValueStore

	// Window 曝光去重窗口，零值取 30 分钟
	Window time.Duration
}

func (f *Exposure) Name() string { return "filter.exposure" }

func (f *Exposure) window() time.Duration {
	if f.Window > 0 {
		return f.Window
	}
	return 30 * time.Minute
}

func (f *Exposure) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if rctx == nil || rctx.UserID == "" || item == nil {
		return false, nil
	}

	at, err := f.Store.ZScore(ctx, ExposureKeyPrefix+rctx.UserID, item.ID)
	if err != nil {
		// 无记录或存储故障都放行
		return false, nil
	}
	cutoff := float64(time.Now().Add(-f.window()).UnixMilli())
	return at >= cutoff, nil
}

// Record 记录一批曝光，顺手裁掉窗口外的旧记录并续期整个 key。
func (f *Exposure) Record(ctx context.Context, userID string, productIDs []string) error {
	if userID == "" || len(productIDs) == 0 {
		return nil
	}
	key := ExposureKeyPrefix + userID
	now := time.Now().UnixMilli()

	for _, pid := range productIDs {
		if err := f.Store.ZAdd(ctx, key, float64(now), pid); err != nil {
			return err
		}
	}
	cutoff := float64(time.Now().Add(-f.window()).UnixMilli())
	if err := f.Store.ZRemRangeByScore(ctx, key, 0, cutoff-1); err != nil {
		return err
	}
	return f.Store.Expire(ctx, key, int(f.window().Seconds()))
}
