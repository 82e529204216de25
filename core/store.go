package core

import "context"

// ZMember 是有序集合成员及其分数。
type ZMember struct {
	Member string
	Score  float64
}

// Store 是特征存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 所有组件通过构造函数注入 Store，不使用全局单例
//
// 使用场景：
//   - 离线批处理产出：相似商品列表、内容相似度
//   - 在线状态：热度、趋势窗口、会话、embedding
//   - A/B 实验：配置、分组缓存、指标计数
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒（0 表示不过期）
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取（推荐系统常用，减少网络往返）
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，覆盖推荐引擎依赖的全部原子原语：
// 有序集合、哈希表、列表、集合、计数器、TTL。
//
// 约定：
//   - 每个操作各自原子；不提供跨 key 事务（引擎中所有量都是建议性的
//     排序信号，允许竞态）
//   - 后端不支持某操作时返回 ErrStoreNotSupported
type KeyValueStore interface {
	Store

	// Expire 设置 key 的过期时间（秒）
	Expire(ctx context.Context, key string, ttl int) error

	// IncrBy 原子自增计数器，返回新值
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Scan 返回所有以 prefix 开头的 key（批处理建语料用，非请求路径）
	Scan(ctx context.Context, prefix string) ([]string, error)

	// ZAdd 向有序集合添加/覆盖成员
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZIncrBy 原子增加成员分数，返回新分数
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)

	// ZScore 获取成员的分数
	ZScore(ctx context.Context, key string, member string) (float64, error)

	// ZCard 返回有序集合成员数
	ZCard(ctx context.Context, key string) (int64, error)

	// ZRevRange 按分数降序获取 [start, stop] 区间成员（用于 TopN 召回）
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRevRangeWithScores 同 ZRevRange，附带分数
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)

	// ZRangeByScore 按分数升序获取 [min, max] 范围内的成员（时间窗口查询）
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// ZRemRangeByScore 删除分数在 [min, max] 范围内的成员（窗口裁剪）
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error

	// ZRemRangeByRank 按升序排名删除 [start, stop] 区间成员（历史裁剪）
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error

	// HGet 读取 Hash 字段
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HSet 写入 Hash 字段
	HSet(ctx context.Context, key, field string, value []byte) error

	// HGetAll 读取整个 Hash（兴趣画像、批量特征）
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// HIncrBy 原子增加 Hash 字段的整数值，返回新值
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// LPush 从左侧压入列表（会话轨迹、指标样本）
	LPush(ctx context.Context, key string, value []byte) error

	// LRange 读取列表 [start, stop] 区间元素
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// LTrim 裁剪列表，仅保留 [start, stop] 区间
	LTrim(ctx context.Context, key string, start, stop int64) error

	// SAdd 向集合添加成员（去重统计）
	SAdd(ctx context.Context, key string, member string) error

	// SCard 返回集合成员数
	SCard(ctx context.Context, key string) (int64, error)

	// SMembers 返回集合全部成员
	SMembers(ctx context.Context, key string) ([]string, error)
}
