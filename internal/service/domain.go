package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempinbox/backend/internal/cache"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
)

// TXTResolver 查询 DNS TXT 记录，*net.Resolver 满足该接口
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

const verifiedDomainsKey = "verified"

// DomainService 管理可用域名：共享域名池加上用户已验证的自定义域名。
type DomainService struct {
	store     storage.CustomDomainRepository
	shared    []string
	sharedSet map[string]struct{}
	resolver  TXTResolver
	cache     *cache.LocalCache[[]string]
	log       *zap.Logger
	now       func() time.Time
}

// NewDomainService 创建域名服务。cacheTTL 为 0 时不缓存已验证域名列表。
func NewDomainService(store storage.CustomDomainRepository, shared []string, resolver TXTResolver, cacheTTL time.Duration, log *zap.Logger) *DomainService {
	if log == nil {
		log = zap.NewNop()
	}

	normalized := make([]string, 0, len(shared))
	sharedSet := make(map[string]struct{}, len(shared))
	for _, d := range shared {
		d = domain.NormalizeDomain(d)
		if d == "" {
			continue
		}
		if _, dup := sharedSet[d]; dup {
			continue
		}
		sharedSet[d] = struct{}{}
		normalized = append(normalized, d)
	}

	s := &DomainService{
		store:     store,
		shared:    normalized,
		sharedSet: sharedSet,
		resolver:  resolver,
		log:       log,
		now:       time.Now,
	}
	if cacheTTL > 0 {
		s.cache = cache.NewLocalCache[[]string](1024, cacheTTL)
	}
	return s
}

// Close 释放本地缓存
func (s *DomainService) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// SharedDomains 返回共享域名池
func (s *DomainService) SharedDomains() []string {
	return append([]string(nil), s.shared...)
}

// ListAvailableDomains 返回身份可以创建邮箱的域名，共享域名在前。
// 已验证的自定义域名只在当前套餐允许绑定域名时可用，降级后随即失效。
func (s *DomainService) ListAvailableDomains(ctx context.Context, identity domain.Identity, plan domain.Plan) ([]string, error) {
	available := s.SharedDomains()
	if !identity.IsUser() || !plan.AllowsCustomDomains() {
		return available, nil
	}

	owned, err := s.cached(ctx, "user:"+identity.ID, func(ctx context.Context) ([]domain.CustomDomain, error) {
		return s.store.ListCustomDomainsByUser(ctx, identity.ID)
	})
	if err != nil {
		return nil, err
	}
	return append(available, owned...), nil
}

// IsManagedDomain 判断域名是否由本服务接收邮件
func (s *DomainService) IsManagedDomain(ctx context.Context, name string) (bool, error) {
	name = domain.NormalizeDomain(name)
	if _, ok := s.sharedSet[name]; ok {
		return true, nil
	}

	verified, err := s.cached(ctx, verifiedDomainsKey, s.store.ListVerifiedCustomDomains)
	if err != nil {
		return false, err
	}
	for _, d := range verified {
		if d == name {
			return true, nil
		}
	}
	return false, nil
}

// AddCustomDomain 为用户登记自定义域名，状态为待验证
func (s *DomainService) AddCustomDomain(ctx context.Context, identity domain.Identity, plan domain.Plan, name string) (*domain.CustomDomain, error) {
	if !identity.IsUser() || !plan.AllowsCustomDomains() {
		return nil, domain.ErrPlanNotEligible
	}

	name = domain.NormalizeDomain(name)
	if err := domain.ValidateDomain(name); err != nil {
		return nil, err
	}
	if _, ok := s.sharedSet[name]; ok {
		return nil, domain.ErrDomainExists
	}

	now := s.now().UTC()
	customDomain := &domain.CustomDomain{
		ID:          uuid.NewString(),
		UserID:      identity.ID,
		Domain:      name,
		Status:      domain.DomainStatusPending,
		VerifyToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCustomDomain(ctx, customDomain); err != nil {
		return nil, err
	}

	s.log.Info("custom domain added",
		zap.String("user_id", identity.ID),
		zap.String("domain", name))
	return customDomain, nil
}

// ListCustomDomains 返回用户登记的全部自定义域名
func (s *DomainService) ListCustomDomains(ctx context.Context, identity domain.Identity) ([]domain.CustomDomain, error) {
	if !identity.IsUser() {
		return nil, domain.ErrForbidden
	}
	return s.store.ListCustomDomainsByUser(ctx, identity.ID)
}

// VerifyCustomDomain 检查域名的 TXT 记录，包含 tempinbox-verify=<token> 即通过验证。
// 验证失败时记录检查时间并返回 domain.ErrDomainVerifyFailed。
func (s *DomainService) VerifyCustomDomain(ctx context.Context, identity domain.Identity, id string) (*domain.CustomDomain, error) {
	customDomain, err := s.owned(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if customDomain.IsVerified() {
		return customDomain, nil
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver configured", domain.ErrDomainVerifyFailed)
	}

	records, lookupErr := s.resolver.LookupTXT(ctx, customDomain.Domain)
	now := s.now().UTC()
	customDomain.LastCheckAt = &now
	customDomain.UpdatedAt = now

	matched := false
	for _, record := range records {
		if strings.TrimSpace(record) == customDomain.VerifyRecord() {
			matched = true
			break
		}
	}

	if matched {
		customDomain.Status = domain.DomainStatusVerified
		customDomain.VerifiedAt = &now
	} else {
		customDomain.Status = domain.DomainStatusFailed
	}
	if err := s.store.UpdateCustomDomain(ctx, customDomain); err != nil {
		return nil, err
	}

	if !matched {
		if lookupErr != nil {
			s.log.Debug("txt lookup failed", zap.String("domain", customDomain.Domain), zap.Error(lookupErr))
			return customDomain, fmt.Errorf("%w: %v", domain.ErrDomainVerifyFailed, lookupErr)
		}
		return customDomain, domain.ErrDomainVerifyFailed
	}

	s.invalidate()
	s.log.Info("custom domain verified", zap.String("domain", customDomain.Domain))
	return customDomain, nil
}

// DeleteCustomDomain 删除用户的自定义域名，已创建的邮箱在过期前仍可收信
func (s *DomainService) DeleteCustomDomain(ctx context.Context, identity domain.Identity, id string) error {
	customDomain, err := s.owned(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCustomDomain(ctx, customDomain.ID); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *DomainService) owned(ctx context.Context, identity domain.Identity, id string) (*domain.CustomDomain, error) {
	if !identity.IsUser() {
		return nil, domain.ErrForbidden
	}
	customDomain, err := s.store.GetCustomDomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if customDomain.UserID != identity.ID {
		return nil, domain.ErrForbidden
	}
	return customDomain, nil
}

// cached 返回已验证域名名称列表，命中本地缓存时不访问存储
func (s *DomainService) cached(ctx context.Context, key string, load func(context.Context) ([]domain.CustomDomain, error)) ([]string, error) {
	if s.cache != nil {
		if names, ok := s.cache.Get(key); ok {
			return names, nil
		}
	}

	domains, err := load(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("list custom domains: %w", err)
	}

	names := make([]string, 0, len(domains))
	for _, d := range domains {
		if d.IsVerified() {
			names = append(names, d.Domain)
		}
	}
	if s.cache != nil {
		s.cache.Set(key, names, 0)
	}
	return names, nil
}

func (s *DomainService) invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}
