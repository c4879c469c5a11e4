package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
)

var errDuplicateDelivery = errors.New("duplicate delivery")

// ========== Message Repository ==========

// AppendMessage 在事务内完成投递：过期判断、去重、写入与 FIFO 淘汰
func (s *Store) AppendMessage(ctx context.Context, address string, message *domain.Message, opts storage.AppendOptions) (*storage.AppendResult, error) {
	result := &storage.AppendResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email domain.TemporaryEmail
		if err := s.forUpdate(tx).Where("address = ?", address).Take(&email).Error; err != nil {
			return notFound(err)
		}
		if domain.IsExpired(&email, opts.Now) {
			return domain.ErrExpired
		}
		result.Email = &email

		if message.DeliveryID != nil {
			var existing domain.Message
			err := tx.Where("email_id = ? AND delivery_id = ?", email.ID, *message.DeliveryID).Take(&existing).Error
			if err == nil {
				result.Message = &existing
				result.Duplicate = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		message.EmailID = email.ID
		message.Seq = s.nextSeq()
		for i := range message.Attachments {
			message.Attachments[i].MessageID = message.ID
		}
		if err := tx.Create(message).Error; err != nil {
			if isUniqueViolation(err) && message.DeliveryID != nil {
				return errDuplicateDelivery
			}
			return err
		}
		result.Message = message

		if opts.MaxMessages <= 0 {
			return nil
		}
		var count int64
		if err := tx.Model(&domain.Message{}).Where("email_id = ?", email.ID).Count(&count).Error; err != nil {
			return err
		}
		overflow := int(count) - opts.MaxMessages
		if overflow <= 0 {
			return nil
		}

		var oldest []string
		if err := tx.Model(&domain.Message{}).
			Where("email_id = ?", email.ID).
			Order("seq ASC").
			Limit(overflow).
			Pluck("id", &oldest).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN ?", oldest).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", oldest).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		result.Evicted = len(oldest)
		return nil
	})

	if errors.Is(err, errDuplicateDelivery) {
		// 并发投递同一封邮件，唯一索引拒绝了第二次写入
		var existing domain.Message
		if err := s.db.WithContext(ctx).
			Where("email_id = ? AND delivery_id = ?", message.EmailID, *message.DeliveryID).
			Take(&existing).Error; err != nil {
			return nil, notFound(err)
		}
		return &storage.AppendResult{Email: result.Email, Message: &existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListMessages 返回邮箱下的全部邮件，最新在前
func (s *Store) ListMessages(ctx context.Context, emailID string) ([]domain.Message, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&domain.TemporaryEmail{}).Where("id = ?", emailID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNotFound
	}

	var messages []domain.Message
	err := db.Preload("Attachments").
		Where("email_id = ?", emailID).
		Order("seq DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkMessageRead 设置邮件已读状态
func (s *Store) MarkMessageRead(ctx context.Context, emailID, messageID string, read bool) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND email_id = ?", messageID, emailID).
		Update("is_read", read)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
