package sql

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"tempinbox/backend/internal/domain"
)

// SaveUserPlan 写入或覆盖用户套餐
func (s *Store) SaveUserPlan(ctx context.Context, plan *domain.UserPlan) error {
	if plan.UpdatedAt.IsZero() {
		plan.UpdatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "updated_at"}),
	}).Create(plan).Error
}

// GetUserPlan 获取用户套餐
func (s *Store) GetUserPlan(ctx context.Context, userID string) (*domain.UserPlan, error) {
	var plan domain.UserPlan
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&plan).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}
