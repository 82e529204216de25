package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rushteam/marketrec/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/原型。
// 支持 TTL（key 级过期，对所有数据结构统一生效），进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	zsets  map[string]map[string]float64
	hashes map[string]map[string][]byte
	lists  map[string][][]byte
	sets   map[string]map[string]struct{}
	expiry map[string]time.Time

	clean *time.Ticker
	done  chan struct{}
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:   make(map[string][]byte),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string][]byte),
		lists:  make(map[string][][]byte),
		sets:   make(map[string]map[string]struct{}),
		expiry: make(map[string]time.Time),
		clean:  time.NewTicker(10 * time.Second),
		done:   make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

// expired 判断 key 是否已过期；持有读锁时调用。
func (m *MemoryStore) expired(key string) bool {
	if at, ok := m.expiry[key]; ok {
		return time.Now().After(at)
	}
	return false
}

// purge 删除 key 在所有结构中的数据；持有写锁时调用。
func (m *MemoryStore) purge(key string) {
	delete(m.data, key)
	delete(m.zsets, key)
	delete(m.hashes, key)
	delete(m.lists, key)
	delete(m.sets, key)
	delete(m.expiry, key)
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.clean.C:
			now := time.Now()
			m.mu.Lock()
			for key, at := range m.expiry {
				if now.After(at) {
					m.purge(key)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expired(key) {
		return nil, core.ErrStoreNotFound
	}
	v, ok := m.data[key]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	m.setTTL(key, ttl...)
	return nil
}

// setTTL 更新 key 的过期时间；持有写锁时调用。
func (m *MemoryStore) setTTL(key string, ttl ...int) {
	if len(ttl) > 0 && ttl[0] > 0 {
		m.expiry[key] = time.Now().Add(time.Duration(ttl[0]) * time.Second)
	} else {
		delete(m.expiry, key)
	}
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	return nil
}

func (m *MemoryStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if m.expired(k) {
			continue
		}
		if v, ok := m.data[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range kvs {
		m.data[k] = v
		m.setTTL(k, ttl...)
	}
	return nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setTTL(key, ttl)
	return nil
}

func (m *MemoryStore) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	cur, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	cur += delta
	m.data[key] = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

func (m *MemoryStore) Scan(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	collect := func(key string) {
		if m.expired(key) {
			return
		}
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			seen[key] = struct{}{}
		}
	}
	for k := range m.data {
		collect(k)
	}
	for k := range m.zsets {
		collect(k)
	}
	for k := range m.hashes {
		collect(k)
	}
	for k := range m.lists {
		collect(k)
	}
	for k := range m.sets {
		collect(k)
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// zset 获取有序集合，expired 则重建；持有写锁时调用。
func (m *MemoryStore) zset(key string) map[string]float64 {
	if m.expired(key) {
		m.purge(key)
	}
	zs, ok := m.zsets[key]
	if !ok {
		zs = make(map[string]float64)
		m.zsets[key] = zs
	}
	return zs
}

// sortedMembers 返回按分数排序的成员，持有读锁时调用。
// 同分时按 member 字典序，保证确定性。
func (m *MemoryStore) sortedMembers(key string, desc bool) []core.ZMember {
	if m.expired(key) {
		return nil
	}
	zs := m.zsets[key]
	out := make([]core.ZMember, 0, len(zs))
	for member, score := range zs {
		out = append(out, core.ZMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			if desc {
				return out[i].Score > out[j].Score
			}
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// rangeBounds 把 Redis 风格的区间（支持负索引，stop 含端点）换算为切片区间。
func rangeBounds(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zset(key)[member] = score
	return nil
}

func (m *MemoryStore) ZIncrBy(_ context.Context, key string, delta float64, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zs := m.zset(key)
	zs[member] += delta
	return zs[member], nil
}

func (m *MemoryStore) ZScore(_ context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expired(key) {
		return 0, core.ErrStoreNotFound
	}
	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expired(key) {
		return 0, nil
	}
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := m.ZRevRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, zm := range members {
		out = append(out, zm.Member)
	}
	return out, nil
}

func (m *MemoryStore) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]core.ZMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sortedMembers(key, true)
	start, stop, ok := rangeBounds(start, stop, int64(len(all)))
	if !ok {
		return nil, nil
	}
	return all[start : stop+1], nil
}

func (m *MemoryStore) ZRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0)
	for _, zm := range m.sortedMembers(key, false) {
		if zm.Score >= min && zm.Score <= max {
			out = append(out, zm.Member)
		}
	}
	return out, nil
}

func (m *MemoryStore) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	zs := m.zset(key)
	for member, score := range zs {
		if score >= min && score <= max {
			delete(zs, member)
		}
	}
	return nil
}

func (m *MemoryStore) ZRemRangeByRank(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sortedMembers(key, false)
	start, stop, ok := rangeBounds(start, stop, int64(len(all)))
	if !ok {
		return nil
	}
	zs := m.zset(key)
	for _, zm := range all[start : stop+1] {
		delete(zs, zm.Member)
	}
	return nil
}

// hash 获取哈希表，expired 则重建；持有写锁时调用。
func (m *MemoryStore) hash(key string) map[string][]byte {
	if m.expired(key) {
		m.purge(key)
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	return h
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expired(key) {
		return nil, core.ErrStoreNotFound
	}
	v, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return v, nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hash(key)[field] = value
	return nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte)
	if m.expired(key) {
		return result, nil
	}
	for f, v := range m.hashes[key] {
		result[f] = v
	}
	return result, nil
}

func (m *MemoryStore) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.hash(key)
	cur, _ := strconv.ParseInt(string(h[field]), 10, 64)
	cur += delta
	h[field] = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

func (m *MemoryStore) LPush(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	m.lists[key] = append([][]byte{value}, m.lists[key]...)
	return nil
}

func (m *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expired(key) {
		return nil, nil
	}
	l := m.lists[key]
	start, stop, ok := rangeBounds(start, stop, int64(len(l)))
	if !ok {
		return nil, nil
	}
	out := make([][]byte, 0, stop-start+1)
	out = append(out, l[start:stop+1]...)
	return out, nil
}

func (m *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
		return nil
	}
	l := m.lists[key]
	start, stop, ok := rangeBounds(start, stop, int64(len(l)))
	if !ok {
		m.lists[key] = nil
		return nil
	}
	m.lists[key] = l[start : stop+1]
	return nil
}

func (m *MemoryStore) SAdd(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expired(key) {
		return 0, nil
	}
	return int64(len(m.sets[key])), nil
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expired(key) {
		return nil, nil
	}
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.clean.Stop()
	close(m.done)
	return nil
}

// 确保 MemoryStore 实现了 core 接口
var _ core.Store = (*MemoryStore)(nil)
var _ core.KeyValueStore = (*MemoryStore)(nil)
