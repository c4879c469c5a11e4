package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker(t *testing.T) {
	t.Run("依赖全部正常", func(t *testing.T) {
		c := NewChecker(nil)
		c.AddDependency("store", PingerFunc(func(context.Context) error { return nil }))

		results, healthy := c.Check(context.Background())
		assert.True(t, healthy)
		assert.Equal(t, "OK", results["store"])

		rec := httptest.NewRecorder()
		c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("依赖异常时就绪检查失败", func(t *testing.T) {
		c := NewChecker(nil)
		c.AddDependency("redis", PingerFunc(func(context.Context) error { return errors.New("connection refused") }))

		results, healthy := c.Check(context.Background())
		assert.False(t, healthy)
		assert.Contains(t, results["redis"], "connection refused")

		rec := httptest.NewRecorder()
		c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		// 存活检查不受依赖影响
		rec = httptest.NewRecorder()
		c.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
