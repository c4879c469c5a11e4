package smtp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

// ConnectionLimiter SMTP 会话限流器
//
// 同时限制全局并发会话数与每个客户端 IP 的新建会话速率。
type ConnectionLimiter struct {
	maxConns int
	current  int
	limit    rate.Limit
	burst    int
	perIP    map[string]*ipEntry
	mu       sync.Mutex
	now      func() time.Time
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnectionLimiter 创建会话限流器
//
// 参数:
//   - maxConns: 最大并发会话数，0 表示不限制
//   - perMinute: 每个 IP 每分钟允许新建的会话数，0 表示不限制
func NewConnectionLimiter(maxConns, perMinute int) *ConnectionLimiter {
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &ConnectionLimiter{
		maxConns: maxConns,
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		perIP:    make(map[string]*ipEntry),
		now:      time.Now,
	}
}

// Acquire 获取会话许可，成功后必须调用 Release
func (l *ConnectionLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxConns > 0 && l.current >= l.maxConns {
		return false
	}

	if l.limit > 0 {
		now := l.now()
		entry, ok := l.perIP[ip]
		if !ok {
			if len(l.perIP) > 1024 {
				l.sweepLocked(now)
			}
			entry = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
			l.perIP[ip] = entry
		}
		entry.lastSeen = now
		if !entry.limiter.AllowN(now, 1) {
			return false
		}
	}

	l.current++
	return true
}

// Release 释放会话
func (l *ConnectionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
}

// Current 当前会话数
func (l *ConnectionLimiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *ConnectionLimiter) sweepLocked(now time.Time) {
	for ip, entry := range l.perIP {
		if now.Sub(entry.lastSeen) > idleLimiterTTL {
			delete(l.perIP, ip)
		}
	}
}
