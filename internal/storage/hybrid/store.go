package hybrid

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
	"tempinbox/backend/internal/storage/redis"
)

// deliveryMarkerTTL 投递去重标记的保留时间
const deliveryMarkerTTL = 24 * time.Hour

// Store 混合存储实现：数据库为准，Redis 作为读缓存与投递去重的前置过滤。
// Redis 故障只会降级为直接访问数据库。
type Store struct {
	storage.Store
	cache *redis.Cache
	log   *zap.Logger
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建混合存储实例
func NewStore(db storage.Store, cache *redis.Cache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		Store: db,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ========== Email Repository ==========

// InsertEmail 写入数据库后刷新缓存（覆盖同地址的旧记录）
func (s *Store) InsertEmail(ctx context.Context, email *domain.TemporaryEmail) error {
	if err := s.Store.InsertEmail(ctx, email); err != nil {
		return err
	}
	s.warn("cache email", s.cache.CacheEmail(ctx, email, s.now()))
	return nil
}

// GetEmailByAddress 先查 Redis，未命中再查数据库
func (s *Store) GetEmailByAddress(ctx context.Context, address string) (*domain.TemporaryEmail, error) {
	email, err := s.cache.GetCachedEmail(ctx, address)
	if err == nil {
		return email, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.warn("read cached email", err)
	}

	email, err = s.Store.GetEmailByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	s.warn("cache email", s.cache.CacheEmail(ctx, email, s.now()))
	return email, nil
}

// DeleteEmail 删除数据库记录与缓存
func (s *Store) DeleteEmail(ctx context.Context, address string) error {
	if err := s.Store.DeleteEmail(ctx, address); err != nil {
		return err
	}
	s.warn("evict cached email", s.cache.DeleteCachedEmail(ctx, address))
	return nil
}

// DeleteExpiredEmails 清理过期记录并删除对应缓存
func (s *Store) DeleteExpiredEmails(ctx context.Context, now time.Time) ([]domain.TemporaryEmail, error) {
	purged, err := s.Store.DeleteExpiredEmails(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, email := range purged {
		s.warn("evict cached email", s.cache.DeleteCachedEmail(ctx, email.Address))
	}
	return purged, nil
}

// ========== Message Repository ==========

// AppendMessage 用 Redis 标记挡住重复投递，再交给数据库落库
func (s *Store) AppendMessage(ctx context.Context, address string, message *domain.Message, opts storage.AppendOptions) (*storage.AppendResult, error) {
	if message.DeliveryID == nil {
		return s.Store.AppendMessage(ctx, address, message, opts)
	}

	email, err := s.GetEmailByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if domain.IsExpired(email, opts.Now) {
		return nil, domain.ErrExpired
	}

	first, err := s.cache.MarkDelivery(ctx, email.ID, *message.DeliveryID, deliveryMarkerTTL)
	if err != nil {
		s.warn("mark delivery", err)
		return s.Store.AppendMessage(ctx, address, message, opts)
	}
	if !first {
		return &storage.AppendResult{Email: email, Duplicate: true}, nil
	}

	result, err := s.Store.AppendMessage(ctx, address, message, opts)
	if err != nil {
		s.warn("forget delivery", s.cache.ForgetDelivery(ctx, email.ID, *message.DeliveryID))
		return nil, err
	}
	return result, nil
}

// ========== User Plan Repository ==========

// SaveUserPlan 写入数据库并刷新缓存
func (s *Store) SaveUserPlan(ctx context.Context, plan *domain.UserPlan) error {
	if err := s.Store.SaveUserPlan(ctx, plan); err != nil {
		return err
	}
	s.warn("cache user plan", s.cache.CacheUserPlan(ctx, plan))
	return nil
}

// GetUserPlan 先查 Redis，未命中再查数据库
func (s *Store) GetUserPlan(ctx context.Context, userID string) (*domain.UserPlan, error) {
	plan, err := s.cache.GetCachedUserPlan(ctx, userID)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.warn("read cached user plan", err)
	}

	plan, err = s.Store.GetUserPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.warn("cache user plan", s.cache.CacheUserPlan(ctx, plan))
	return plan, nil
}

// Health 同时检查数据库与 Redis
func (s *Store) Health(ctx context.Context) error {
	if err := s.Store.Health(ctx); err != nil {
		return err
	}
	return s.cache.Health(ctx)
}

func (s *Store) warn(op string, err error) {
	if err != nil {
		s.log.Warn("redis cache degraded", zap.String("op", op), zap.Error(err))
	}
}
