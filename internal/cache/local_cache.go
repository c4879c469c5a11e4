package cache

import (
	"sync"
	"time"
)

// LocalCache 本地内存缓存（L1 缓存）
//
// 使用 sync.Map 实现无锁读取，条目按 TTL 过期，后台协程定期清理。
// 超过容量时拒绝写入新键，已有键仍可更新。
type LocalCache[V any] struct {
	data    sync.Map
	size    int
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数
//   - ttl: 默认过期时间
func NewLocalCache[V any](maxSize int, ttl time.Duration) *LocalCache[V] {
	c := &LocalCache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go c.cleanupLoop(time.Minute)

	return c
}

// Get 获取缓存值
func (c *LocalCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.data.Load(key)
	if !ok {
		return zero, false
	}

	entry := val.(*cacheEntry[V])
	if !c.now().Before(entry.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return entry.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (c *LocalCache[V]) Set(key string, value V, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = c.ttl
	}
	entry := &cacheEntry[V]{value: value, expiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data.Load(key); !exists {
		if c.maxSize > 0 && c.size >= c.maxSize {
			return false
		}
		c.size++
	}
	c.data.Store(key, entry)
	return true
}

// Delete 删除缓存值
func (c *LocalCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, loaded := c.data.LoadAndDelete(key); loaded {
		c.size--
	}
}

// Clear 清空所有缓存
func (c *LocalCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Range(func(key, _ any) bool {
		c.data.Delete(key)
		return true
	})
	c.size = 0
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (c *LocalCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Close 停止后台清理
func (c *LocalCache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

func (c *LocalCache[V]) purgeExpired() {
	now := c.now()
	c.data.Range(func(key, value any) bool {
		if !now.Before(value.(*cacheEntry[V]).expiresAt) {
			c.Delete(key.(string))
		}
		return true
	})
}
