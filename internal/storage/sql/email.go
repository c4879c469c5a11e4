package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tempinbox/backend/internal/domain"
)

// ========== Email Repository ==========

// InsertEmail 在事务内检查地址占用并插入邮箱。
func (s *Store) InsertEmail(ctx context.Context, email *domain.TemporaryEmail) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holder domain.TemporaryEmail
		err := s.forUpdate(tx).Where("address = ?", email.Address).Take(&holder).Error
		switch {
		case err == nil:
			if !domain.IsExpired(&holder, email.CreatedAt) {
				return domain.ErrAddressConflict
			}
			if err := purgeEmails(tx, []string{holder.ID}); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 地址空闲
		default:
			return err
		}

		email.Seq = s.nextSeq()
		return tx.Create(email).Error
	})
	if isUniqueViolation(err) {
		// 并发插入同一地址时由唯一索引兜底
		return domain.ErrAddressConflict
	}
	return err
}

// GetEmailByAddress 根据完整地址获取邮箱
func (s *Store) GetEmailByAddress(ctx context.Context, address string) (*domain.TemporaryEmail, error) {
	var email domain.TemporaryEmail
	if err := s.db.WithContext(ctx).Where("address = ?", address).Take(&email).Error; err != nil {
		return nil, notFound(err)
	}
	return &email, nil
}

// ListEmailsByOwner 返回指定所有者的全部邮箱
func (s *Store) ListEmailsByOwner(ctx context.Context, ownerKey string) ([]domain.TemporaryEmail, error) {
	var emails []domain.TemporaryEmail
	err := s.db.WithContext(ctx).
		Where("owner_key = ?", ownerKey).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// DeleteEmail 删除邮箱及其全部邮件
func (s *Store) DeleteEmail(ctx context.Context, address string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email domain.TemporaryEmail
		if err := s.forUpdate(tx).Where("address = ?", address).Take(&email).Error; err != nil {
			return notFound(err)
		}
		return purgeEmails(tx, []string{email.ID})
	})
}

// DeleteExpiredEmails 删除 ExpiresAt <= now 的邮箱
func (s *Store) DeleteExpiredEmails(ctx context.Context, now time.Time) ([]domain.TemporaryEmail, error) {
	var expired []domain.TemporaryEmail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.forUpdate(tx).
			Where("expires_at <= ?", now.UTC()).
			Order("created_at ASC").
			Order("seq ASC").
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, 0, len(expired))
		for _, e := range expired {
			ids = append(ids, e.ID)
		}
		return purgeEmails(tx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("delete expired emails: %w", err)
	}

	if len(expired) > 0 {
		s.log.Debug("expired emails purged", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// CountEmails 返回邮箱总数
func (s *Store) CountEmails(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.TemporaryEmail{}).Count(&count).Error
	return count, err
}

// purgeEmails 删除邮箱及其邮件、附件
func purgeEmails(tx *gorm.DB, emailIDs []string) error {
	messageIDs := tx.Model(&domain.Message{}).Select("id").Where("email_id IN ?", emailIDs)
	if err := tx.Where("message_id IN (?)", messageIDs).Delete(&domain.Attachment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("email_id IN ?", emailIDs).Delete(&domain.Message{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", emailIDs).Delete(&domain.TemporaryEmail{}).Error
}
