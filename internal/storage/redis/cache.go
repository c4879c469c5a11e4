package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tempinbox/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "tempinbox:"

// DefaultPlanTTL 用户套餐缓存时长
const DefaultPlanTTL = 10 * time.Minute

// Cache 基于 Redis 的读缓存，键的存活时间不超过记录本身的过期时间
type Cache struct {
	client *Client
}

// NewCache 创建 Redis 缓存
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

func emailKey(address string) string {
	return keyPrefix + "email:" + address
}

func planKey(userID string) string {
	return keyPrefix + "plan:" + userID
}

// ========== 邮箱缓存 ==========

// CacheEmail 缓存邮箱，TTL 为距离过期的剩余时间；已过期的邮箱只清除旧缓存
func (c *Cache) CacheEmail(ctx context.Context, email *domain.TemporaryEmail, now time.Time) error {
	ttl := email.Remaining(now)
	if ttl <= 0 {
		return c.DeleteCachedEmail(ctx, email.Address)
	}
	return c.set(ctx, emailKey(email.Address), toCachedEmail(email), ttl)
}

// GetCachedEmail 获取缓存的邮箱
func (c *Cache) GetCachedEmail(ctx context.Context, address string) (*domain.TemporaryEmail, error) {
	var cached cachedEmail
	if err := c.get(ctx, emailKey(address), &cached); err != nil {
		return nil, err
	}
	return cached.toDomain(), nil
}

// DeleteCachedEmail 删除邮箱缓存
func (c *Cache) DeleteCachedEmail(ctx context.Context, address string) error {
	return c.client.rdb.Del(ctx, emailKey(address)).Err()
}

// cachedEmail 缓存使用的序列化结构，保留 API 输出中隐藏的所有者与序号
type cachedEmail struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	LocalPart string          `json:"localPart"`
	Domain    string          `json:"domain"`
	OwnerKey  string          `json:"ownerKey"`
	Plan      domain.PlanName `json:"plan"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Seq       int64           `json:"seq"`
}

func toCachedEmail(e *domain.TemporaryEmail) cachedEmail {
	return cachedEmail{
		ID:        e.ID,
		Address:   e.Address,
		LocalPart: e.LocalPart,
		Domain:    e.Domain,
		OwnerKey:  e.OwnerKey,
		Plan:      e.Plan,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		Seq:       e.Seq,
	}
}

func (c cachedEmail) toDomain() *domain.TemporaryEmail {
	return &domain.TemporaryEmail{
		ID:        c.ID,
		Address:   c.Address,
		LocalPart: c.LocalPart,
		Domain:    c.Domain,
		OwnerKey:  c.OwnerKey,
		Plan:      c.Plan,
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
		Seq:       c.Seq,
	}
}

// ========== 套餐缓存 ==========

// CacheUserPlan 缓存用户套餐
func (c *Cache) CacheUserPlan(ctx context.Context, plan *domain.UserPlan) error {
	return c.set(ctx, planKey(plan.UserID), plan, DefaultPlanTTL)
}

// GetCachedUserPlan 获取缓存的用户套餐
func (c *Cache) GetCachedUserPlan(ctx context.Context, userID string) (*domain.UserPlan, error) {
	var plan domain.UserPlan
	if err := c.get(ctx, planKey(userID), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ========== 投递去重 ==========

// MarkDelivery 记录一次投递，返回 true 表示首次出现。
// 用于在访问数据库前挡住重复投递，最终的去重仍由存储层保证。
func (c *Cache) MarkDelivery(ctx context.Context, emailID, deliveryID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%sdelivery:%s:%s", keyPrefix, emailID, deliveryID)
	return c.client.rdb.SetNX(ctx, key, 1, ttl).Result()
}

// ForgetDelivery 删除投递标记，投递落库失败时调用以便重试
func (c *Cache) ForgetDelivery(ctx context.Context, emailID, deliveryID string) error {
	key := fmt.Sprintf("%sdelivery:%s:%s", keyPrefix, emailID, deliveryID)
	return c.client.rdb.Del(ctx, key).Err()
}

// Health 检查 Redis 连接
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Health(ctx)
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) get(ctx context.Context, key string, dest any) error {
	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
