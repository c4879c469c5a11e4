package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
)

// Store 使用内存保存邮箱与邮件数据，适合单实例部署与开发验证。
// 所有写操作持有同一把互斥锁，地址唯一性与投递策略因此是原子的。
type Store struct {
	mu        sync.RWMutex
	emails    map[string]*domain.TemporaryEmail // address -> email
	byID      map[string]string                 // emailID -> address
	messages  map[string][]*domain.Message      // emailID -> messages（按 Seq 升序）
	userPlans map[string]*domain.UserPlan       // userID -> plan

	customDomains map[string]*domain.CustomDomain // domainID -> customDomain
	byDomain      map[string]string               // domain -> domainID

	seq int64
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		emails:        make(map[string]*domain.TemporaryEmail),
		byID:          make(map[string]string),
		messages:      make(map[string][]*domain.Message),
		userPlans:     make(map[string]*domain.UserPlan),
		customDomains: make(map[string]*domain.CustomDomain),
		byDomain:      make(map[string]string),
	}
}

func (s *Store) nextSeqLocked() int64 {
	s.seq++
	return s.seq
}

// ========== Email Repository ==========

// InsertEmail 检查地址占用并保存邮箱。
func (s *Store) InsertEmail(_ context.Context, email *domain.TemporaryEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if holder, ok := s.emails[email.Address]; ok {
		if !domain.IsExpired(holder, email.CreatedAt) {
			return domain.ErrAddressConflict
		}
		s.deleteEmailLocked(holder.Address)
	}

	email.Seq = s.nextSeqLocked()
	stored := *email
	stored.Messages = nil
	s.emails[email.Address] = &stored
	s.byID[email.ID] = email.Address
	return nil
}

// GetEmailByAddress 根据完整地址获取邮箱。
func (s *Store) GetEmailByAddress(_ context.Context, address string) (*domain.TemporaryEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *email
	return &clone, nil
}

// ListEmailsByOwner 返回指定所有者的全部邮箱。
func (s *Store) ListEmailsByOwner(_ context.Context, ownerKey string) ([]domain.TemporaryEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TemporaryEmail, 0)
	for _, email := range s.emails {
		if email.OwnerKey == ownerKey {
			result = append(result, *email)
		}
	}
	sortEmails(result)
	return result, nil
}

// DeleteEmail 删除邮箱及其全部邮件。
func (s *Store) DeleteEmail(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[address]; !ok {
		return domain.ErrNotFound
	}
	s.deleteEmailLocked(address)
	return nil
}

// DeleteExpiredEmails 删除所有过期的邮箱，返回被删除的记录。
func (s *Store) DeleteExpiredEmails(_ context.Context, now time.Time) ([]domain.TemporaryEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := make([]domain.TemporaryEmail, 0)
	for address, email := range s.emails {
		if domain.IsExpired(email, now) {
			purged = append(purged, *email)
			s.deleteEmailLocked(address)
		}
	}
	sortEmails(purged)
	return purged, nil
}

// CountEmails 返回当前保存的邮箱数量（含未清理的过期记录）。
func (s *Store) CountEmails(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.emails)), nil
}

func (s *Store) deleteEmailLocked(address string) {
	if email, ok := s.emails[address]; ok {
		delete(s.byID, email.ID)
		delete(s.messages, email.ID)
	}
	delete(s.emails, address)
}

func sortEmails(emails []domain.TemporaryEmail) {
	sort.Slice(emails, func(i, j int) bool {
		if !emails[i].CreatedAt.Equal(emails[j].CreatedAt) {
			return emails[i].CreatedAt.Before(emails[j].CreatedAt)
		}
		return emails[i].Seq < emails[j].Seq
	})
}

// ========== Message Repository ==========

// AppendMessage 投递邮件。
func (s *Store) AppendMessage(_ context.Context, address string, message *domain.Message, opts storage.AppendOptions) (*storage.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if domain.IsExpired(email, opts.Now) {
		return nil, domain.ErrExpired
	}

	emailClone := *email
	result := &storage.AppendResult{Email: &emailClone}
	existing := s.messages[email.ID]

	if message.DeliveryID != nil {
		for _, msg := range existing {
			if msg.DeliveryID != nil && *msg.DeliveryID == *message.DeliveryID {
				clone := cloneMessage(msg)
				result.Message = &clone
				result.Duplicate = true
				return result, nil
			}
		}
	}

	message.EmailID = email.ID
	message.Seq = s.nextSeqLocked()
	for i := range message.Attachments {
		message.Attachments[i].MessageID = message.ID
	}
	stored := cloneMessage(message)
	existing = append(existing, &stored)

	if opts.MaxMessages > 0 && len(existing) > opts.MaxMessages {
		result.Evicted = len(existing) - opts.MaxMessages
		existing = existing[result.Evicted:]
	}
	s.messages[email.ID] = existing

	result.Message = message
	return result, nil
}

// ListMessages 返回某个邮箱下的全部邮件，最新在前。
func (s *Store) ListMessages(_ context.Context, emailID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[emailID]; !ok {
		return nil, domain.ErrNotFound
	}

	msgs := s.messages[emailID]
	result := make([]domain.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		result = append(result, cloneMessage(msgs[i]))
	}
	return result, nil
}

// MarkMessageRead 设置邮件已读状态。
func (s *Store) MarkMessageRead(_ context.Context, emailID, messageID string, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages[emailID] {
		if msg.ID == messageID {
			msg.IsRead = read
			return nil
		}
	}
	return domain.ErrNotFound
}

func cloneMessage(msg *domain.Message) domain.Message {
	clone := *msg
	if msg.Attachments != nil {
		clone.Attachments = make([]domain.Attachment, len(msg.Attachments))
		copy(clone.Attachments, msg.Attachments)
	}
	return clone
}

// ========== User Plan Repository ==========

// SaveUserPlan 保存用户套餐。
func (s *Store) SaveUserPlan(_ context.Context, plan *domain.UserPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.UpdatedAt.IsZero() {
		plan.UpdatedAt = time.Now().UTC()
	}
	clone := *plan
	s.userPlans[plan.UserID] = &clone
	return nil
}

// GetUserPlan 获取用户套餐。
func (s *Store) GetUserPlan(_ context.Context, userID string) (*domain.UserPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.userPlans[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *plan
	return &clone, nil
}

// ========== Custom Domain Repository ==========

// CreateCustomDomain 保存新的自定义域名。
func (s *Store) CreateCustomDomain(_ context.Context, customDomain *domain.CustomDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDomain[customDomain.Domain]; exists {
		return domain.ErrDomainExists
	}

	now := time.Now().UTC()
	if customDomain.CreatedAt.IsZero() {
		customDomain.CreatedAt = now
	}
	customDomain.UpdatedAt = now

	clone := *customDomain
	s.customDomains[customDomain.ID] = &clone
	s.byDomain[customDomain.Domain] = customDomain.ID
	return nil
}

// UpdateCustomDomain 更新自定义域名。
func (s *Store) UpdateCustomDomain(_ context.Context, customDomain *domain.CustomDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customDomains[customDomain.ID]; !ok {
		return domain.ErrNotFound
	}
	customDomain.UpdatedAt = time.Now().UTC()
	clone := *customDomain
	s.customDomains[customDomain.ID] = &clone
	return nil
}

// GetCustomDomain 根据ID获取自定义域名。
func (s *Store) GetCustomDomain(_ context.Context, id string) (*domain.CustomDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customDomain, ok := s.customDomains[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *customDomain
	return &clone, nil
}

// GetCustomDomainByName 根据域名获取自定义域名。
func (s *Store) GetCustomDomainByName(ctx context.Context, name string) (*domain.CustomDomain, error) {
	s.mu.RLock()
	id, ok := s.byDomain[name]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetCustomDomain(ctx, id)
}

// ListCustomDomainsByUser 列出用户的所有自定义域名。
func (s *Store) ListCustomDomainsByUser(_ context.Context, userID string) ([]domain.CustomDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CustomDomain, 0)
	for _, d := range s.customDomains {
		if d.UserID == userID {
			result = append(result, *d)
		}
	}
	sortDomains(result)
	return result, nil
}

// ListVerifiedCustomDomains 列出全部已验证的自定义域名。
func (s *Store) ListVerifiedCustomDomains(_ context.Context) ([]domain.CustomDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CustomDomain, 0)
	for _, d := range s.customDomains {
		if d.IsVerified() {
			result = append(result, *d)
		}
	}
	sortDomains(result)
	return result, nil
}

// DeleteCustomDomain 删除自定义域名。
func (s *Store) DeleteCustomDomain(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customDomain, ok := s.customDomains[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.byDomain, customDomain.Domain)
	delete(s.customDomains, id)
	return nil
}

func sortDomains(domains []domain.CustomDomain) {
	sort.Slice(domains, func(i, j int) bool {
		return domains[i].CreatedAt.Before(domains[j].CreatedAt)
	})
}

// Close 关闭存储（内存存储无需关闭）
func (s *Store) Close() error {
	return nil
}

// Health 健康检查
func (s *Store) Health(_ context.Context) error {
	return nil
}
