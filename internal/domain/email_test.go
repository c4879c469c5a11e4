package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExpired(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	email := &TemporaryEmail{
		CreatedAt: created,
		ExpiresAt: created.Add(600 * time.Second),
	}

	t.Run("过期前一秒仍然活跃", func(t *testing.T) {
		assert.False(t, IsExpired(email, email.ExpiresAt.Add(-time.Second)))
		assert.Equal(t, time.Second, email.Remaining(email.ExpiresAt.Add(-time.Second)))
	})

	t.Run("到达过期时间即过期", func(t *testing.T) {
		assert.True(t, IsExpired(email, email.ExpiresAt))
		assert.Equal(t, time.Duration(0), email.Remaining(email.ExpiresAt))
	})

	t.Run("生存时长", func(t *testing.T) {
		assert.Equal(t, 600*time.Second, email.Lifetime())
	})
}

func TestIdentityKey(t *testing.T) {
	anon := AnonymousIdentity("session-1")
	user := UserIdentity("42")

	assert.Equal(t, "anon:session-1", anon.Key())
	assert.Equal(t, "user:42", user.Key())
	assert.False(t, anon.IsUser())
	assert.True(t, user.IsUser())

	parsed, err := ParseIdentityKey(user.Key())
	require.NoError(t, err)
	assert.Equal(t, user, parsed)

	_, err = ParseIdentityKey("robot:1")
	assert.Error(t, err)
	_, err = ParseIdentityKey("user:")
	assert.Error(t, err)
}

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()

	assert.Equal(t, 2, plans[PlanAnonymous].MaxActiveEmails)
	assert.Equal(t, 5, plans[PlanFree].MaxActiveEmails)
	assert.Equal(t, 10, plans[PlanStandard].MaxActiveEmails)
	assert.Equal(t, 15, plans[PlanPremium].MaxActiveEmails)

	assert.Equal(t, 600*time.Second, plans[PlanAnonymous].EmailLifetime)
	assert.Equal(t, 600*time.Second, plans[PlanFree].EmailLifetime)
	assert.Equal(t, 12*time.Hour, plans[PlanStandard].EmailLifetime)
	assert.Equal(t, 24*time.Hour, plans[PlanPremium].EmailLifetime)

	assert.False(t, plans[PlanAnonymous].StoresMessages())
	assert.False(t, plans[PlanFree].StoresMessages())
	assert.True(t, plans[PlanStandard].StoresMessages())
	assert.True(t, plans[PlanPremium].AllowsCustomDomains())
	assert.False(t, plans[PlanFree].AllowsCustomDomains())

	name, err := ParsePlanName(" Premium ")
	require.NoError(t, err)
	assert.Equal(t, PlanPremium, name)
	_, err = ParsePlanName("enterprise")
	assert.Error(t, err)
}

func TestQuotaExceededError(t *testing.T) {
	reset := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	err := error(&QuotaExceededError{Limit: 2, ResetTime: &reset})

	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.Contains(t, err.Error(), "2026-01-01T12:10:00Z")

	var quotaErr *QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 2, quotaErr.Limit)

	noSlot := &QuotaExceededError{Limit: 0}
	assert.Contains(t, noSlot.Error(), "plan does not allow creation")
}

func TestTruncateRunes(t *testing.T) {
	t.Run("未超长保持原样", func(t *testing.T) {
		assert.Equal(t, "hello", TruncateRunes("hello", 5))
	})

	t.Run("按字符截断", func(t *testing.T) {
		assert.Equal(t, "验证", TruncateRunes("验证码", 2))
		assert.Equal(t, "", TruncateRunes("abc", 0))
	})
}

func TestNormalizeDeliveryID(t *testing.T) {
	t.Run("普通ID不变", func(t *testing.T) {
		assert.Equal(t, "<abc@sender>", NormalizeDeliveryID("<abc@sender>"))
	})

	t.Run("超长ID替换为稳定摘要", func(t *testing.T) {
		long := strings.Repeat("x", 400)
		got := NormalizeDeliveryID(long)
		assert.True(t, strings.HasPrefix(got, "sha256:"))
		assert.LessOrEqual(t, len(got), MaxDeliveryIDLength)
		assert.Equal(t, got, NormalizeDeliveryID(long))
		assert.NotEqual(t, got, NormalizeDeliveryID(long+"y"))
	})
}
