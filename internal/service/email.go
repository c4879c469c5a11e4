package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/events"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/storage"
)

const (
	defaultGenerateAttempts = 5
	defaultGeneratedLength  = 10
)

// DomainCatalog 提供身份可用的域名
type DomainCatalog interface {
	ListAvailableDomains(ctx context.Context, identity domain.Identity, plan domain.Plan) ([]string, error)
}

// EmailService 封装临时邮箱的生命周期：创建、读取、删除与过期清理。
// 过期判断统一使用 domain.IsExpired。
type EmailService struct {
	store    storage.EmailRepository
	domains  DomainCatalog
	attempts int
	length   int
	events   events.Publisher
	metrics  *monitoring.Metrics
	log      *zap.Logger
	now      func() time.Time

	mu            sync.Mutex
	random        *rand.Rand
	tokenAlphabet []rune
}

// NewEmailService 创建邮箱业务服务。
func NewEmailService(store storage.EmailRepository, domains DomainCatalog, cfg config.MailboxConfig, log *zap.Logger) *EmailService {
	if log == nil {
		log = zap.NewNop()
	}
	attempts := cfg.GenerateAttempts
	if attempts <= 0 {
		attempts = defaultGenerateAttempts
	}
	length := cfg.GeneratedLength
	if length < domain.MinLocalPartLength || length > domain.MaxLocalPartLength {
		length = defaultGeneratedLength
	}

	return &EmailService{
		store:         store,
		domains:       domains,
		attempts:      attempts,
		length:        length,
		events:        events.Nop{},
		log:           log,
		now:           time.Now,
		random:        rand.New(rand.NewSource(time.Now().UnixNano())),
		tokenAlphabet: []rune("abcdefghijklmnopqrstuvwxyz0123456789"),
	}
}

// SetPublisher 设置事件发布者
func (s *EmailService) SetPublisher(publisher events.Publisher) {
	if publisher == nil {
		publisher = events.Nop{}
	}
	s.events = publisher
}

// SetMetrics 设置指标收集器
func (s *EmailService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// SetClock 替换时钟，用于测试
func (s *EmailService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateEmailInput 定义创建邮箱所需的输入。
type CreateEmailInput struct {
	Owner     domain.Identity
	Plan      domain.Plan
	LocalPart string // 为空时随机生成
	Domain    string // 为空时从可用域名中随机选择
}

// Create 创建新的临时邮箱。调用前应先通过 QuotaTracker.CheckAllowed。
//
// 用户指定前缀冲突时直接返回 domain.ErrAddressConflict；
// 随机前缀冲突时换一个重试，全部失败返回 domain.ErrAddressExhausted。
func (s *EmailService) Create(ctx context.Context, input CreateEmailInput) (*domain.TemporaryEmail, error) {
	if input.Owner.IsZero() {
		return nil, domain.ErrForbidden
	}
	if input.Plan.EmailLifetime <= 0 {
		return nil, fmt.Errorf("plan %q has no email lifetime", input.Plan.Name)
	}

	selectedDomain, err := s.pickDomain(ctx, input.Owner, input.Plan, input.Domain)
	if err != nil {
		return nil, err
	}

	if input.LocalPart != "" {
		if err := domain.ValidateLocalPart(input.LocalPart); err != nil {
			return nil, err
		}
		return s.insert(ctx, input, input.LocalPart, selectedDomain)
	}

	for attempt := 0; attempt < s.attempts; attempt++ {
		email, err := s.insert(ctx, input, s.generateToken(s.length), selectedDomain)
		if err == nil {
			return email, nil
		}
		if !errors.Is(err, domain.ErrAddressConflict) {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.RecordAddressRetry()
		}
		s.log.Debug("generated address collided, retrying", zap.Int("attempt", attempt+1))
	}
	return nil, domain.ErrAddressExhausted
}

func (s *EmailService) insert(ctx context.Context, input CreateEmailInput, localPart, domainName string) (*domain.TemporaryEmail, error) {
	now := s.now().UTC()
	address := domain.BuildAddress(localPart, domainName)
	localPart, domainName, _ = domain.SplitAddress(address)

	email := &domain.TemporaryEmail{
		ID:        uuid.NewString(),
		Address:   address,
		LocalPart: localPart,
		Domain:    domainName,
		OwnerKey:  input.Owner.Key(),
		Plan:      input.Plan.Name,
		CreatedAt: now,
		ExpiresAt: now.Add(input.Plan.EmailLifetime),
	}
	if err := s.store.InsertEmail(ctx, email); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordEmailCreated(string(input.Plan.Name))
	}
	s.events.Publish(events.Event{
		Type:      events.EmailCreated,
		Address:   email.Address,
		EmailID:   email.ID,
		OwnerKey:  email.OwnerKey,
		ExpiresAt: email.ExpiresAt,
		At:        now,
	})
	s.log.Info("email created",
		zap.String("address", email.Address),
		zap.String("owner", email.OwnerKey),
		zap.String("plan", string(email.Plan)),
		zap.Time("expires_at", email.ExpiresAt))
	return email, nil
}

// pickDomain 校验请求的域名，未指定时随机选择一个可用域名
func (s *EmailService) pickDomain(ctx context.Context, owner domain.Identity, plan domain.Plan, requested string) (string, error) {
	available, err := s.domains.ListAvailableDomains(ctx, owner, plan)
	if err != nil {
		return "", err
	}
	if len(available) == 0 {
		return "", domain.ErrNoDomainAvailable
	}

	if requested == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		return available[s.random.Intn(len(available))], nil
	}

	requested = domain.NormalizeDomain(requested)
	for _, d := range available {
		if d == requested {
			return d, nil
		}
	}
	return "", domain.ErrDomainNotAllowed
}

func (s *EmailService) generateToken(length int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]rune, length)
	for i := range result {
		result[i] = s.tokenAlphabet[s.random.Intn(len(s.tokenAlphabet))]
	}
	return string(result)
}

// Get 返回活跃邮箱；已过期返回 domain.ErrExpired，不存在返回 domain.ErrNotFound
func (s *EmailService) Get(ctx context.Context, address string) (*domain.TemporaryEmail, error) {
	email, err := s.store.GetEmailByAddress(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return nil, err
	}
	if domain.IsExpired(email, s.now()) {
		return nil, domain.ErrExpired
	}
	return email, nil
}

// GetOwned 返回请求者拥有的活跃邮箱，所有权检查先于过期检查
func (s *EmailService) GetOwned(ctx context.Context, address string, requester domain.Identity) (*domain.TemporaryEmail, error) {
	email, err := s.store.GetEmailByAddress(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return nil, err
	}
	if !email.OwnedBy(requester) {
		return nil, domain.ErrForbidden
	}
	if domain.IsExpired(email, s.now()) {
		return nil, domain.ErrExpired
	}
	return email, nil
}

// ListActive 返回所有者的活跃邮箱，按 CreatedAt 升序
func (s *EmailService) ListActive(ctx context.Context, owner domain.Identity) ([]domain.TemporaryEmail, error) {
	emails, err := s.store.ListEmailsByOwner(ctx, owner.Key())
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := emails[:0]
	for i := range emails {
		if !domain.IsExpired(&emails[i], now) {
			active = append(active, emails[i])
		}
	}
	return active, nil
}

// Delete 删除邮箱及其全部邮件，只有所有者可以删除
func (s *EmailService) Delete(ctx context.Context, address string, requester domain.Identity) error {
	email, err := s.store.GetEmailByAddress(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return err
	}
	if !email.OwnedBy(requester) {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteEmail(ctx, email.Address); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordEmailDeleted()
	}
	s.events.Publish(events.Event{
		Type:     events.EmailDeleted,
		Address:  email.Address,
		EmailID:  email.ID,
		OwnerKey: email.OwnerKey,
		At:       s.now().UTC(),
	})
	s.log.Info("email deleted", zap.String("address", email.Address))
	return nil
}

// Reap 物理删除 ExpiresAt <= now 的邮箱，返回删除数量
func (s *EmailService) Reap(ctx context.Context, now time.Time) (int, error) {
	purged, err := s.store.DeleteExpiredEmails(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, email := range purged {
		s.events.Publish(events.Event{
			Type:      events.EmailExpired,
			Address:   email.Address,
			EmailID:   email.ID,
			OwnerKey:  email.OwnerKey,
			ExpiresAt: email.ExpiresAt,
			At:        now,
		})
	}
	if s.metrics != nil && len(purged) > 0 {
		s.metrics.RecordEmailsExpired(len(purged))
	}
	return len(purged), nil
}

// Count 返回存储中的邮箱总数（含未清理的过期记录）
func (s *EmailService) Count(ctx context.Context) (int64, error) {
	return s.store.CountEmails(ctx)
}
