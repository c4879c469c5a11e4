package sql

import (
	"context"

	"tempinbox/backend/internal/domain"
)

// ========== Custom Domain Repository ==========

// CreateCustomDomain 保存新的自定义域名
func (s *Store) CreateCustomDomain(ctx context.Context, customDomain *domain.CustomDomain) error {
	err := s.db.WithContext(ctx).Create(customDomain).Error
	if isUniqueViolation(err) {
		return domain.ErrDomainExists
	}
	return err
}

// UpdateCustomDomain 更新自定义域名
func (s *Store) UpdateCustomDomain(ctx context.Context, customDomain *domain.CustomDomain) error {
	res := s.db.WithContext(ctx).
		Model(&domain.CustomDomain{}).
		Where("id = ?", customDomain.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(customDomain)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetCustomDomain 根据ID获取自定义域名
func (s *Store) GetCustomDomain(ctx context.Context, id string) (*domain.CustomDomain, error) {
	var customDomain domain.CustomDomain
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&customDomain).Error; err != nil {
		return nil, notFound(err)
	}
	return &customDomain, nil
}

// GetCustomDomainByName 根据域名获取自定义域名
func (s *Store) GetCustomDomainByName(ctx context.Context, name string) (*domain.CustomDomain, error) {
	var customDomain domain.CustomDomain
	if err := s.db.WithContext(ctx).Where("domain = ?", name).Take(&customDomain).Error; err != nil {
		return nil, notFound(err)
	}
	return &customDomain, nil
}

// ListCustomDomainsByUser 列出用户的所有自定义域名
func (s *Store) ListCustomDomainsByUser(ctx context.Context, userID string) ([]domain.CustomDomain, error) {
	var domains []domain.CustomDomain
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&domains).Error
	return domains, err
}

// ListVerifiedCustomDomains 列出全部已验证的自定义域名
func (s *Store) ListVerifiedCustomDomains(ctx context.Context) ([]domain.CustomDomain, error) {
	var domains []domain.CustomDomain
	err := s.db.WithContext(ctx).
		Where("status = ?", domain.DomainStatusVerified).
		Order("created_at ASC").
		Find(&domains).Error
	return domains, err
}

// DeleteCustomDomain 删除自定义域名
func (s *Store) DeleteCustomDomain(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.CustomDomain{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
