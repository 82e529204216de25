// Package abtest 提供在线实验：流量分桶、指标埋点与显著性检验。
package abtest

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/rushteam/marketrec/core"
)

const (
	configKeyPrefix = "abtest:config:"
	assignKeyPrefix = "abtest:user:"

	// ControlVariant 缺省桶：实验缺失、停用或配置损坏时一律落到这里
	ControlVariant = "control"

	// 实验配置与分桶缓存的保存时长
	experimentTTLSeconds = 30 * 24 * 60 * 60
)

// Variant 是实验的一个分桶。Share 为流量占比，累计遍历时按声明顺序划分区间，
// 所以 Variants 必须是有序切片而不是 map。
type Variant struct {
	Name  string  `json:"name"`
	Share float64 `json:"share"`
}

// Experiment 是一个在线实验的配置。
type Experiment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Variants []Variant `json:"variants"`
	Active   bool      `json:"active"`
}

// Manager 管理实验配置、分桶与指标。
type Manager struct {
	store core.KeyValueStore

	Log zerolog.Logger
}

func NewManager(kv core.KeyValueStore) *Manager {
	return &Manager{store: kv, Log: zerolog.Nop()}
}

// Save 写入实验配置，30 天有效期。
func (m *Manager) Save(ctx context.Context, exp *Experiment) error {
	raw, err := json.Marshal(exp)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, configKeyPrefix+exp.ID, raw, experimentTTLSeconds)
}

// Get 读取实验配置。
func (m *Manager) Get(ctx context.Context, experimentID string) (*Experiment, error) {
	raw, err := m.store.Get(ctx, configKeyPrefix+experimentID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.ErrExperimentNotFound
		}
		return nil, err
	}
	var exp Experiment
	if err := json.Unmarshal(raw, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// SetActive 启停实验。
func (m *Manager) SetActive(ctx context.Context, experimentID string, active bool) error {
	exp, err := m.Get(ctx, experimentID)
	if err != nil {
		return err
	}
	exp.Active = active
	return m.Save(ctx, exp)
}
