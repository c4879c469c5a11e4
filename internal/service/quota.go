package service

import (
	"context"
	"time"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
)

// ActiveEmailLister 列出身份当前活跃的邮箱，按创建时间升序
type ActiveEmailLister interface {
	ListActive(ctx context.Context, owner domain.Identity) ([]domain.TemporaryEmail, error)
}

// Decision 配额检查结果
type Decision struct {
	Allowed bool
	Limit   int
	Active  int
	// ResetTime 最早一个活跃邮箱的过期时间；套餐不允许创建时为 nil
	ResetTime *time.Time
}

// Err 拒绝时返回 *domain.QuotaExceededError，允许时返回 nil
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &domain.QuotaExceededError{Limit: d.Limit, ResetTime: d.ResetTime}
}

// QuotaTracker 按身份限制同时活跃的临时邮箱数量。
//
// 活跃数每次都从存储实时推导，不单独计数，过期与删除自然释放名额。
// CheckAllowed 与随后的创建不是原子操作：同一身份的并发请求可能同时通过检查，
// 使活跃数短暂超过上限，超出量不超过并发请求数。配额只用于防滥用，接受这一软限制。
type QuotaTracker struct {
	emails  ActiveEmailLister
	metrics *monitoring.Metrics
}

// NewQuotaTracker 创建配额检查器，metrics 可以为 nil
func NewQuotaTracker(emails ActiveEmailLister, metrics *monitoring.Metrics) *QuotaTracker {
	return &QuotaTracker{emails: emails, metrics: metrics}
}

// CheckAllowed 判断身份在该套餐下能否再创建一个邮箱，没有副作用。
func (q *QuotaTracker) CheckAllowed(ctx context.Context, identity domain.Identity, plan domain.Plan) (Decision, error) {
	decision := Decision{Limit: plan.MaxActiveEmails}
	if plan.MaxActiveEmails <= 0 {
		q.denied(plan)
		return decision, nil
	}

	active, err := q.emails.ListActive(ctx, identity)
	if err != nil {
		return Decision{}, err
	}
	decision.Active = len(active)

	if len(active) < plan.MaxActiveEmails {
		decision.Allowed = true
		return decision, nil
	}

	// 列表已按 CreatedAt、插入顺序升序，取 ExpiresAt 最早的一个
	oldest := active[0]
	for _, e := range active[1:] {
		if e.ExpiresAt.Before(oldest.ExpiresAt) {
			oldest = e
		}
	}
	reset := oldest.ExpiresAt
	decision.ResetTime = &reset

	q.denied(plan)
	return decision, nil
}

func (q *QuotaTracker) denied(plan domain.Plan) {
	if q.metrics != nil {
		q.metrics.RecordQuotaDenied(string(plan.Name))
	}
}
