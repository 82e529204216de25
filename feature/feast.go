package feature

import (
	"context"
	"fmt"

	feastsdk "github.com/feast-dev/feast/sdk/go"
)

// Feast 在线特征的默认命名
const (
	feastBaseCVRFeature        = "product_stats:base_cvr"
	feastEstimatedValueFeature = "product_stats:estimated_value"
	feastEntityKey             = "product_id"
)

// FeastProvider 从 Feast 在线特征库拉取商品统计特征。
// 特征缺失时退回零值/兜底值，不视为错误。
type FeastProvider struct {
	client  *feastsdk.GrpcClient
	project string
}

// NewFeastProvider 连接 Feast Feature Server（gRPC）。
func NewFeastProvider(host string, port int, project string) (*FeastProvider, error) {
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("feast grpc client: %w", err)
	}
	return &FeastProvider{client: client, project: project}, nil
}

func (p *FeastProvider) Name() string { return "feature.feast" }

func (p *FeastProvider) ProductStats(ctx context.Context, productID string) (Stats, error) {
	req := &feastsdk.OnlineFeaturesRequest{
		Features: []string{feastBaseCVRFeature, feastEstimatedValueFeature},
		Entities: []feastsdk.Row{
			{feastEntityKey: feastsdk.StrVal(productID)},
		},
		Project: p.project,
	}

	resp, err := p.client.GetOnlineFeatures(ctx, req)
	if err != nil {
		return Stats{}, fmt.Errorf("feast get online features: %w", err)
	}

	rows := resp.Rows()
	if len(rows) == 0 {
		return Stats{EstimatedValue: DefaultEstimatedValue}, nil
	}

	stats := Stats{EstimatedValue: DefaultEstimatedValue}
	row := rows[0]
	if v, ok := row[feastBaseCVRFeature]; ok {
		stats.BaseCVR = v.GetDoubleVal()
	}
	if v, ok := row[feastEstimatedValueFeature]; ok {
		if ev := v.GetDoubleVal(); ev > 0 {
			stats.EstimatedValue = ev
		}
	}
	return stats, nil
}

func (p *FeastProvider) Close() error {
	return p.client.Close()
}
