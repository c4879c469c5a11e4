// Package reaper 定时物理删除过期的临时邮箱。
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tempinbox/backend/internal/monitoring"
)

// Target 执行清理的对象，*service.EmailService 满足该接口
type Target interface {
	Reap(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int64, error)
}

// Reaper 过期邮箱清理任务
type Reaper struct {
	target   Target
	interval time.Duration
	metrics  *monitoring.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// New 创建清理任务，metrics 可以为 nil
func New(target Target, interval time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		target:   target,
		interval: interval,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Run 按间隔执行清理，直到 ctx 结束。启动时立即执行一次。
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("starting expired email reaper", zap.Duration("interval", r.interval))
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return nil
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一次清理并返回删除数量，错误只记录不返回
func (r *Reaper) RunOnce(ctx context.Context) int {
	start := time.Now()
	count, err := r.target.Reap(ctx, r.now())
	if r.metrics != nil {
		r.metrics.RecordReaperRun(err, time.Since(start))
	}
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("failed to reap expired emails", zap.Error(err))
		}
		return 0
	}
	if count > 0 {
		r.log.Info("expired emails reaped", zap.Int("count", count))
	}

	if r.metrics != nil {
		if total, err := r.target.Count(ctx); err == nil {
			r.metrics.UpdateEmailsStored(total)
		}
	}
	return count
}
