// Package batch 承载离线批处理：协同过滤、内容相似度、热度衰减。
// 批处理与请求路径完全隔离，只通过特征存储交换数据。
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Job 是一个可调度的批处理任务。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration

	// running 保证可重入安全：上一轮还没跑完时，新一轮直接跳过，
	// 绝不并发写同一批 key。
	running atomic.Bool
}

// Scheduler 是显式的定时任务调度器，替代注解式的定时任务声明。
// 每个任务独立计时，互不阻塞；TriggerNow 支持管理端强制立即重算。
type Scheduler struct {
	mu   sync.Mutex
	jobs []*scheduledJob
	log  zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Register 注册一个按 interval 周期执行的任务。须在 Start 之前调用。
func (s *Scheduler) Register(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &scheduledJob{job: job, interval: interval})
}

// Start 启动调度循环。任务首轮在各自 interval 之后触发，不在启动时立刻执行。
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	jobs := s.jobs
	s.mu.Unlock()

	for _, sj := range jobs {
		sj := sj
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(sj.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runJob(ctx, sj)
				}
			}
		}()
	}
}

// TriggerNow 立即执行全部已注册任务（串行，按注册顺序）。
// 正在执行中的任务跳过，不排队。
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.mu.Lock()
	jobs := s.jobs
	s.mu.Unlock()

	for _, sj := range jobs {
		s.runJob(ctx, sj)
	}
}

func (s *Scheduler) runJob(ctx context.Context, sj *scheduledJob) {
	if !sj.running.CompareAndSwap(false, true) {
		s.log.Warn().Str("job", sj.job.Name()).Msg("previous run still in flight, skipping")
		return
	}
	defer sj.running.Store(false)

	start := time.Now()
	if err := sj.job.Run(ctx); err != nil {
		s.log.Error().Err(err).Str("job", sj.job.Name()).
			Dur("elapsed", time.Since(start)).Msg("batch job failed")
		return
	}
	s.log.Info().Str("job", sj.job.Name()).
		Dur("elapsed", time.Since(start)).Msg("batch job completed")
}

// Stop 停止调度并等待在途任务结束。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
