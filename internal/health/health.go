package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 任何可以做连通性检查的依赖（存储、Redis）
type Pinger interface {
	Health(ctx context.Context) error
}

// PingerFunc 函数适配器
type PingerFunc func(ctx context.Context) error

// Health 实现 Pinger
func (f PingerFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// Checker 健康检查器
type Checker struct {
	handler    healthcheck.Handler
	dependency map[string]Pinger
	timeout    time.Duration
	logger     *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		handler:    healthcheck.NewHandler(),
		dependency: make(map[string]Pinger),
		timeout:    3 * time.Second,
		logger:     logger,
	}

	// 协程泄漏时让存活检查失败
	c.handler.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	return c
}

// AddDependency 注册一个就绪检查依赖
func (c *Checker) AddDependency(name string, dep Pinger) {
	c.dependency[name] = dep
	c.handler.AddReadinessCheck(name, healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		return dep.Health(ctx)
	}, c.timeout))
}

// LiveHandler 存活检查（/health/live）
func (c *Checker) LiveHandler() http.Handler {
	return http.HandlerFunc(c.handler.LiveEndpoint)
}

// ReadyHandler 就绪检查（/health/ready）
func (c *Checker) ReadyHandler() http.Handler {
	return http.HandlerFunc(c.handler.ReadyEndpoint)
}

// Check 执行全部依赖检查，返回每个依赖的状态
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(c.dependency)+1)
	healthy := true

	for name, dep := range c.dependency {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := dep.Health(checkCtx)
		cancel()

		if err != nil {
			healthy = false
			results[name] = fmt.Sprintf("ERROR: %v", err)
			c.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		results[name] = "OK"
	}
	results["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return results, healthy
}
