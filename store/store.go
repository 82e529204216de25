// Package store 只包含实现，接口定义在 core 包。
// 使用 core.Store 和 core.KeyValueStore 接口：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	var kv core.KeyValueStore = store.MustRedisStore("127.0.0.1:6379", 0)
package store
