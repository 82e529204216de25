package batch

import (
	"context"

	"github.com/rushteam/marketrec/realtime"
)

// DecayJob 周期性衰减全站热度榜，防止历史爆款长期霸榜。
type DecayJob struct {
	Popularity *realtime.Popularity

	// Factor 每轮衰减系数，零值取 0.9
	Factor float64
}

func (j *DecayJob) Name() string { return "popularity-decay" }

func (j *DecayJob) Run(ctx context.Context) error {
	factor := j.Factor
	if factor <= 0 {
		factor = 0.9
	}
	return j.Popularity.Decay(ctx, factor)
}
