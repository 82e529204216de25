package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

const (
	sessionKeyPrefix  = "realtime:session:"
	sessionMaxEntries = 20
	sessionTTLSeconds = 30 * 60
)

// SessionEntry 会话里的一条交互记录。
type SessionEntry struct {
	ProductID string `json:"productId"`
	Action    string `json:"action"`
	At        int64  `json:"timestamp"`
}

// SimilarLister 按商品查相似列表，供会话相关性评分使用。
type SimilarLister interface {
	SimilarProducts(ctx context.Context, productID string, limit int) ([]string, error)
}

// Session 维护用户最近 20 条交互组成的短会话，30 分钟无活动自动过期。
type Session struct {
	store core.KeyValueStore

	Log zerolog.Logger
}

func NewSession(kv core.KeyValueStore) *Session {
	return &Session{store: kv, Log: zerolog.Nop()}
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

// Append 往会话头部追加一条交互，裁剪到 20 条并刷新过期时间。
func (s *Session) Append(ctx context.Context, userID, productID string, action core.Action) error {
	entry := SessionEntry{
		ProductID: productID,
		Action:    string(action),
		At:        time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := sessionKey(userID)
	if err := s.store.LPush(ctx, key, raw); err != nil {
		return err
	}
	if err := s.store.LTrim(ctx, key, 0, sessionMaxEntries-1); err != nil {
		return err
	}
	return s.store.Expire(ctx, key, sessionTTLSeconds)
}

// Entries 返回会话交互，最新在前。
func (s *Session) Entries(ctx context.Context, userID string) ([]SessionEntry, error) {
	raws, err := s.store.LRange(ctx, sessionKey(userID), 0, -1)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]SessionEntry, 0, len(raws))
	for _, raw := range raws {
		var e SessionEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.Log.Warn().Err(err).Str("user", userID).Msg("drop malformed session entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Products 返回会话内出现过的商品，按最近交互顺序去重。
func (s *Session) Products(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.Entries(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ProductID]; ok {
			continue
		}
		seen[e.ProductID] = struct{}{}
		out = append(out, e.ProductID)
	}
	return out, nil
}

// RelevanceScore 计算候选商品与当前会话的相关性：
// 会话中相似列表包含该候选的商品占比，落在 [0,1]。
func (s *Session) RelevanceScore(ctx context.Context, userID, candidateID string, lister SimilarLister) float64 {
	products, err := s.Products(ctx, userID)
	if err != nil || len(products) == 0 {
		return 0
	}

	var hits float64
	for _, pid := range products {
		similar, err := lister.SimilarProducts(ctx, pid, 10)
		if err != nil {
			continue
		}
		for _, sid := range similar {
			if sid == candidateID {
				hits++
				break
			}
		}
	}
	return hits / float64(len(products))
}
