// Package history 基于特征存储实现浏览历史与兴趣画像的采集。
// 浏览历史用时间戳做分数的有序集合承载，天然有序、自动去重；
// 兴趣画像用哈希表承载，按标签累积计数。
package history

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

const (
	historyKeyPrefix = "history:user:"
	profileKeyPrefix = "profile:user:"

	// maxHistorySize 每个用户最多保留最近 100 条浏览记录。
	// 同时为离线协同过滤的 O(k²) 配对成本设定上界。
	maxHistorySize = 100
)

// StoreHistory 是 core.HistoryProvider 的 KeyValueStore 实现。
type StoreHistory struct {
	store   core.KeyValueStore
	catalog core.ProductCatalog
	log     zerolog.Logger
}

func NewStoreHistory(kv core.KeyValueStore, catalog core.ProductCatalog, log zerolog.Logger) *StoreHistory {
	return &StoreHistory{store: kv, catalog: catalog, log: log}
}

// RecordView 记录一次浏览并增量更新兴趣画像。
// 画像更新失败只记日志，不影响浏览记录本身。
func (h *StoreHistory) RecordView(ctx context.Context, userID, productID string) error {
	if userID == "" || productID == "" {
		return nil
	}

	key := historyKeyPrefix + userID
	ts := float64(time.Now().UnixMilli())

	if err := h.store.ZAdd(ctx, key, ts, productID); err != nil {
		return err
	}

	// 裁剪到最近 maxHistorySize 条（删掉分数最低的旧记录）
	if size, err := h.store.ZCard(ctx, key); err == nil && size > maxHistorySize {
		if err := h.store.ZRemRangeByRank(ctx, key, 0, size-maxHistorySize-1); err != nil {
			h.log.Warn().Err(err).Str("user", userID).Msg("trim view history failed")
		}
	}

	h.updateInterestProfile(ctx, userID, productID)
	return nil
}

func (h *StoreHistory) updateInterestProfile(ctx context.Context, userID, productID string) {
	product, err := h.catalog.ByID(ctx, productID)
	if err != nil || product == nil {
		return
	}

	key := profileKeyPrefix + userID
	for _, tag := range ExtractTags(product) {
		if _, err := h.store.HIncrBy(ctx, key, tag, 1); err != nil {
			h.log.Warn().Err(err).Str("user", userID).Str("tag", tag).
				Msg("update interest profile failed")
		}
	}
}

// ExtractTags 从商品提取兴趣标签：类目、'>' 分隔的子类目、成色。
func ExtractTags(p *core.Product) []string {
	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	if cat := strings.TrimSpace(p.Category); cat != "" {
		add(cat)
		for _, part := range strings.Split(cat, ">") {
			add(strings.TrimSpace(part))
		}
	}
	add("condition_" + strconv.Itoa(p.ConditionLevel))
	return tags
}

func (h *StoreHistory) ViewedProductIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	members, err := h.store.ZRevRange(ctx, historyKeyPrefix+userID, 0, -1)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

func (h *StoreHistory) History(ctx context.Context, userID string, limit int) ([]core.ViewRecord, error) {
	if limit <= 0 {
		limit = maxHistorySize
	}
	members, err := h.store.ZRevRangeWithScores(ctx, historyKeyPrefix+userID, 0, int64(limit)-1)
	if err != nil {
		return nil, err
	}
	out := make([]core.ViewRecord, 0, len(members))
	for _, zm := range members {
		out = append(out, core.ViewRecord{
			ProductID: zm.Member,
			At:        time.UnixMilli(int64(zm.Score)),
		})
	}
	return out, nil
}

func (h *StoreHistory) InterestProfile(ctx context.Context, userID string, topN int) ([]core.TagScore, error) {
	fields, err := h.store.HGetAll(ctx, profileKeyPrefix+userID)
	if err != nil {
		return nil, err
	}

	out := make([]core.TagScore, 0, len(fields))
	for tag, raw := range fields {
		score, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, core.TagScore{Tag: tag, Score: score})
	}
	sortTagScores(out)
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// sortTagScores 按分数降序，分数相同按标签字典序，保证确定性。
func sortTagScores(scores []core.TagScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Tag < scores[j].Tag
	})
}

func (h *StoreHistory) AllUsersWithHistory(ctx context.Context) ([]string, error) {
	keys, err := h.store.Scan(ctx, historyKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, historyKeyPrefix))
	}
	return out, nil
}

var _ core.HistoryProvider = (*StoreHistory)(nil)
