package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
)

// MockResolver 模拟 DNS TXT 查询
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestDomainService(t *testing.T) {
	ctx := context.Background()
	user := domain.UserIdentity("5")

	setup := func(t *testing.T) (*fixture, *MockResolver, *DomainService) {
		f := newFixture(t)
		resolver := &MockResolver{}
		svc := NewDomainService(f.store, []string{"TempInbox.dev", "tempinbox.dev", "mailbox.test"}, resolver, time.Minute, nil)
		svc.now = f.clock.Now
		t.Cleanup(svc.Close)
		return f, resolver, svc
	}

	t.Run("共享域名去重并规范化", func(t *testing.T) {
		f, _, svc := setup(t)
		domains, err := svc.ListAvailableDomains(ctx, domain.AnonymousIdentity("s"), f.plan(domain.PlanAnonymous))
		require.NoError(t, err)
		assert.Equal(t, []string{"tempinbox.dev", "mailbox.test"}, domains)

		managed, err := svc.IsManagedDomain(ctx, "MAILBOX.test.")
		require.NoError(t, err)
		assert.True(t, managed)
	})

	t.Run("免费套餐不能绑定域名", func(t *testing.T) {
		f, _, svc := setup(t)
		_, err := svc.AddCustomDomain(ctx, user, f.plan(domain.PlanFree), "mine.example")
		assert.ErrorIs(t, err, domain.ErrPlanNotEligible)
		_, err = svc.AddCustomDomain(ctx, domain.AnonymousIdentity("s"), f.plan(domain.PlanPremium), "mine.example")
		assert.ErrorIs(t, err, domain.ErrPlanNotEligible)
	})

	t.Run("域名校验", func(t *testing.T) {
		f, _, svc := setup(t)
		_, err := svc.AddCustomDomain(ctx, user, f.plan(domain.PlanStandard), "localhost")
		assert.ErrorIs(t, err, domain.ErrInvalidDomain)
		_, err = svc.AddCustomDomain(ctx, user, f.plan(domain.PlanStandard), "tempinbox.dev")
		assert.ErrorIs(t, err, domain.ErrDomainExists)

		_, err = svc.AddCustomDomain(ctx, user, f.plan(domain.PlanStandard), "mine.example")
		require.NoError(t, err)
		_, err = svc.AddCustomDomain(ctx, domain.UserIdentity("6"), f.plan(domain.PlanStandard), "Mine.Example")
		assert.ErrorIs(t, err, domain.ErrDomainExists)
	})

	t.Run("验证通过后加入可用域名", func(t *testing.T) {
		f, resolver, svc := setup(t)
		added, err := svc.AddCustomDomain(ctx, user, f.plan(domain.PlanPremium), "mine.example")
		require.NoError(t, err)
		assert.Equal(t, domain.DomainStatusPending, added.Status)

		// 未验证前不可用，且结果被缓存
		domains, err := svc.ListAvailableDomains(ctx, user, f.plan(domain.PlanPremium))
		require.NoError(t, err)
		assert.NotContains(t, domains, "mine.example")

		resolver.On("LookupTXT", mock.Anything, "mine.example").
			Return([]string{"v=spf1 -all", "tempinbox-verify=" + added.VerifyToken}, nil).Once()

		verified, err := svc.VerifyCustomDomain(ctx, user, added.ID)
		require.NoError(t, err)
		assert.True(t, verified.IsVerified())
		require.NotNil(t, verified.VerifiedAt)
		assert.Equal(t, baseTime, *verified.VerifiedAt)

		domains, err = svc.ListAvailableDomains(ctx, user, f.plan(domain.PlanPremium))
		require.NoError(t, err)
		assert.Contains(t, domains, "mine.example")

		others, err := svc.ListAvailableDomains(ctx, domain.UserIdentity("6"), f.plan(domain.PlanPremium))
		require.NoError(t, err)
		assert.NotContains(t, others, "mine.example")

		// 降级到免费套餐后自定义域名不再可用
		downgraded, err := svc.ListAvailableDomains(ctx, user, f.plan(domain.PlanFree))
		require.NoError(t, err)
		assert.Equal(t, []string{"tempinbox.dev", "mailbox.test"}, downgraded)

		managed, err := svc.IsManagedDomain(ctx, "mine.example")
		require.NoError(t, err)
		assert.True(t, managed)
		resolver.AssertExpectations(t)
	})

	t.Run("TXT记录不匹配", func(t *testing.T) {
		f, resolver, svc := setup(t)
		added, err := svc.AddCustomDomain(ctx, user, f.plan(domain.PlanStandard), "wrong.example")
		require.NoError(t, err)

		resolver.On("LookupTXT", mock.Anything, "wrong.example").Return([]string{"tempinbox-verify=other"}, nil).Once()
		resolver.On("LookupTXT", mock.Anything, "wrong.example").Return(nil, errors.New("no such host")).Once()

		result, err := svc.VerifyCustomDomain(ctx, user, added.ID)
		assert.ErrorIs(t, err, domain.ErrDomainVerifyFailed)
		assert.Equal(t, domain.DomainStatusFailed, result.Status)
		assert.NotNil(t, result.LastCheckAt)

		_, err = svc.VerifyCustomDomain(ctx, user, added.ID)
		assert.ErrorIs(t, err, domain.ErrDomainVerifyFailed)

		managed, err := svc.IsManagedDomain(ctx, "wrong.example")
		require.NoError(t, err)
		assert.False(t, managed)
	})

	t.Run("所有权与删除", func(t *testing.T) {
		f, _, svc := setup(t)
		added, err := svc.AddCustomDomain(ctx, user, f.plan(domain.PlanStandard), "del.example")
		require.NoError(t, err)

		_, err = svc.VerifyCustomDomain(ctx, domain.UserIdentity("6"), added.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.ErrorIs(t, svc.DeleteCustomDomain(ctx, domain.UserIdentity("6"), added.ID), domain.ErrForbidden)

		list, err := svc.ListCustomDomains(ctx, user)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, svc.DeleteCustomDomain(ctx, user, added.ID))
		list, err = svc.ListCustomDomains(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = svc.ListCustomDomains(ctx, domain.AnonymousIdentity("s"))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("用户在已验证的自定义域名上创建邮箱", func(t *testing.T) {
		f, resolver, svc := setup(t)
		added, err := svc.AddCustomDomain(ctx, user, f.plan(domain.PlanStandard), "own.example")
		require.NoError(t, err)
		resolver.On("LookupTXT", mock.Anything, "own.example").Return([]string{added.VerifyRecord()}, nil)
		_, err = svc.VerifyCustomDomain(ctx, user, added.ID)
		require.NoError(t, err)

		emails := NewEmailService(f.store, svc, config.MailboxConfig{}, nil)
		email, err := emails.Create(ctx, CreateEmailInput{Owner: user, Plan: f.plan(domain.PlanStandard), LocalPart: "me", Domain: "own.example"})
		assert.ErrorIs(t, err, domain.ErrInvalidLocalPart)
		assert.Nil(t, email)

		email, err = emails.Create(ctx, CreateEmailInput{Owner: user, Plan: f.plan(domain.PlanStandard), LocalPart: "mine", Domain: "own.example"})
		require.NoError(t, err)
		assert.Equal(t, "mine@own.example", email.Address)

		_, err = emails.Create(ctx, CreateEmailInput{Owner: domain.UserIdentity("6"), Plan: f.plan(domain.PlanStandard), LocalPart: "theirs", Domain: "own.example"})
		assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	})
}
