package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
)

// ErrInvalidPlan 套餐推送参数无效
var ErrInvalidPlan = errors.New("invalid plan update")

// PlanService 解析身份对应的套餐。
//
// 匿名身份固定使用 anonymous 套餐；用户优先使用计费方推送的套餐，
// 其次是身份令牌中的 plan 声明，都没有时为 free。
type PlanService struct {
	store storage.UserPlanRepository
	plans map[domain.PlanName]domain.Plan
	log   *zap.Logger
	now   func() time.Time
}

// NewPlanService 创建套餐服务，plans 为空时使用内置套餐表
func NewPlanService(store storage.UserPlanRepository, plans map[domain.PlanName]domain.Plan, log *zap.Logger) *PlanService {
	if len(plans) == 0 {
		plans = domain.DefaultPlans()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanService{
		store: store,
		plans: plans,
		log:   log,
		now:   time.Now,
	}
}

// Plan 按名称返回套餐
func (s *PlanService) Plan(name domain.PlanName) (domain.Plan, bool) {
	plan, ok := s.plans[name]
	return plan, ok
}

// Resolve 返回身份当前生效的套餐。tokenPlan 来自身份令牌，可以为空。
func (s *PlanService) Resolve(ctx context.Context, identity domain.Identity, tokenPlan domain.PlanName) (domain.Plan, error) {
	if !identity.IsUser() {
		return s.mustPlan(domain.PlanAnonymous), nil
	}

	stored, err := s.store.GetUserPlan(ctx, identity.ID)
	switch {
	case err == nil:
		if plan, ok := s.plans[stored.Plan]; ok {
			return plan, nil
		}
		s.log.Warn("stored plan unknown, falling back",
			zap.String("user_id", identity.ID),
			zap.String("plan", string(stored.Plan)))
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.Plan{}, fmt.Errorf("load user plan: %w", err)
	}

	// 用户不能通过令牌声明获得匿名套餐
	if tokenPlan != "" && tokenPlan != domain.PlanAnonymous {
		if plan, ok := s.plans[tokenPlan]; ok {
			return plan, nil
		}
	}
	return s.mustPlan(domain.PlanFree), nil
}

// SetUserPlan 保存计费方推送的用户套餐
func (s *PlanService) SetUserPlan(ctx context.Context, userID string, name domain.PlanName) (*domain.UserPlan, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidPlan)
	}
	if _, ok := s.plans[name]; !ok || name == domain.PlanAnonymous {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidPlan, name)
	}

	plan := &domain.UserPlan{
		UserID:    userID,
		Plan:      name,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.SaveUserPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("save user plan: %w", err)
	}

	s.log.Info("user plan updated", zap.String("user_id", userID), zap.String("plan", string(name)))
	return plan, nil
}

func (s *PlanService) mustPlan(name domain.PlanName) domain.Plan {
	if plan, ok := s.plans[name]; ok {
		return plan
	}
	return domain.DefaultPlans()[name]
}
