package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/events"
	"tempinbox/backend/internal/storage"
)

// conflictStore 前 n 次插入返回地址冲突
type conflictStore struct {
	storage.EmailRepository
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (s *conflictStore) InsertEmail(ctx context.Context, email *domain.TemporaryEmail) error {
	s.mu.Lock()
	s.calls++
	conflict := s.calls <= s.conflicts
	s.mu.Unlock()
	if conflict {
		return domain.ErrAddressConflict
	}
	return s.EmailRepository.InsertEmail(ctx, email)
}

func TestEmailService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("随机地址", func(t *testing.T) {
		f := newFixture(t)
		owner := domain.AnonymousIdentity("s1")

		email, err := f.emails.Create(ctx, CreateEmailInput{Owner: owner, Plan: f.plan(domain.PlanAnonymous)})
		require.NoError(t, err)

		assert.Len(t, email.LocalPart, 10)
		assert.Contains(t, []string{"tempinbox.dev", "mailbox.test"}, email.Domain)
		assert.Equal(t, email.LocalPart+"@"+email.Domain, email.Address)
		assert.Equal(t, owner.Key(), email.OwnerKey)
		assert.Equal(t, baseTime, email.CreatedAt)
		assert.Equal(t, baseTime.Add(600*time.Second), email.ExpiresAt)
		assert.Equal(t, []events.Type{events.EmailCreated}, f.events.Types())
	})

	t.Run("自定义前缀不区分大小写", func(t *testing.T) {
		f := newFixture(t)
		email := f.create(t, domain.AnonymousIdentity("s1"), domain.PlanAnonymous, "John.Doe")
		assert.Equal(t, "john.doe@tempinbox.dev", email.Address)

		_, err := f.emails.Create(ctx, CreateEmailInput{
			Owner:     domain.AnonymousIdentity("s2"),
			Plan:      f.plan(domain.PlanAnonymous),
			LocalPart: "JOHN.DOE",
			Domain:    "TempInbox.dev",
		})
		assert.ErrorIs(t, err, domain.ErrAddressConflict)
	})

	t.Run("前缀不合法", func(t *testing.T) {
		f := newFixture(t)
		for _, localPart := range []string{"ab", strings.Repeat("a", 31), "bad name", "a+b"} {
			_, err := f.emails.Create(ctx, CreateEmailInput{
				Owner:     domain.AnonymousIdentity("s1"),
				Plan:      f.plan(domain.PlanAnonymous),
				LocalPart: localPart,
			})
			assert.ErrorIs(t, err, domain.ErrInvalidLocalPart, localPart)
		}
	})

	t.Run("域名不在可用范围", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.emails.Create(ctx, CreateEmailInput{
			Owner:  domain.AnonymousIdentity("s1"),
			Plan:   f.plan(domain.PlanAnonymous),
			Domain: "gmail.com",
		})
		assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	})

	t.Run("自定义域名随套餐生效", func(t *testing.T) {
		f := newFixture(t)
		user := domain.UserIdentity("u1")
		require.NoError(t, f.store.CreateCustomDomain(ctx, &domain.CustomDomain{
			ID:        "d1",
			UserID:    user.ID,
			Domain:    "mine.example",
			Status:    domain.DomainStatusVerified,
			CreatedAt: baseTime,
			UpdatedAt: baseTime,
		}))

		email, err := f.emails.Create(ctx, CreateEmailInput{Owner: user, Plan: f.plan(domain.PlanStandard), Domain: "mine.example"})
		require.NoError(t, err)
		assert.Equal(t, "mine.example", email.Domain)

		_, err = f.emails.Create(ctx, CreateEmailInput{Owner: user, Plan: f.plan(domain.PlanFree), Domain: "mine.example"})
		assert.ErrorIs(t, err, domain.ErrDomainNotAllowed)
	})

	t.Run("没有可用域名", func(t *testing.T) {
		f := newFixture(t)
		emails := NewEmailService(f.store, NewDomainService(f.store, nil, nil, 0, nil), config.MailboxConfig{}, nil)
		_, err := emails.Create(ctx, CreateEmailInput{Owner: domain.AnonymousIdentity("s1"), Plan: f.plan(domain.PlanFree)})
		assert.ErrorIs(t, err, domain.ErrNoDomainAvailable)
	})

	t.Run("过期地址可以被重新签发", func(t *testing.T) {
		f := newFixture(t)
		old := f.create(t, domain.AnonymousIdentity("s1"), domain.PlanAnonymous, "reused")
		f.clock.Advance(10 * time.Minute)

		fresh := f.create(t, domain.AnonymousIdentity("s2"), domain.PlanAnonymous, "reused")
		assert.NotEqual(t, old.ID, fresh.ID)
		assert.Equal(t, domain.AnonymousIdentity("s2").Key(), fresh.OwnerKey)
	})

	t.Run("随机地址冲突时重试", func(t *testing.T) {
		f := newFixture(t)
		repo := &conflictStore{EmailRepository: f.store, conflicts: 4}
		emails := NewEmailService(repo, f.domains, config.MailboxConfig{GenerateAttempts: 5}, nil)

		_, err := emails.Create(ctx, CreateEmailInput{Owner: domain.AnonymousIdentity("s1"), Plan: f.plan(domain.PlanFree)})
		require.NoError(t, err)
		assert.Equal(t, 5, repo.calls)
	})

	t.Run("重试耗尽", func(t *testing.T) {
		f := newFixture(t)
		repo := &conflictStore{EmailRepository: f.store, conflicts: 100}
		emails := NewEmailService(repo, f.domains, config.MailboxConfig{GenerateAttempts: 5}, nil)

		_, err := emails.Create(ctx, CreateEmailInput{Owner: domain.AnonymousIdentity("s1"), Plan: f.plan(domain.PlanFree)})
		assert.ErrorIs(t, err, domain.ErrAddressExhausted)
		assert.Equal(t, 5, repo.calls)
	})

	t.Run("并发创建同一地址只有一个成功", func(t *testing.T) {
		f := newFixture(t)
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded, conflicts := 0, 0

		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.emails.Create(ctx, CreateEmailInput{
					Owner:     domain.AnonymousIdentity(strings.Repeat("s", i+1)),
					Plan:      f.plan(domain.PlanFree),
					LocalPart: "hotname",
					Domain:    "tempinbox.dev",
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrAddressConflict):
					conflicts++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 15, conflicts)
	})
}

func TestEmailService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	owner := domain.UserIdentity("42")

	t.Run("读取与过期", func(t *testing.T) {
		f := newFixture(t)
		email := f.create(t, owner, domain.PlanFree, "reader")

		got, err := f.emails.Get(ctx, "  READER@tempinbox.dev ")
		require.NoError(t, err)
		assert.Equal(t, email.ID, got.ID)

		f.clock.Advance(599 * time.Second)
		_, err = f.emails.Get(ctx, email.Address)
		assert.NoError(t, err, "过期前一秒仍可读取")

		f.clock.Advance(time.Second)
		_, err = f.emails.Get(ctx, email.Address)
		assert.ErrorIs(t, err, domain.ErrExpired)

		_, err = f.emails.Get(ctx, "nobody@tempinbox.dev")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("所有权检查", func(t *testing.T) {
		f := newFixture(t)
		email := f.create(t, owner, domain.PlanFree, "private")

		_, err := f.emails.GetOwned(ctx, email.Address, domain.UserIdentity("43"))
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = f.emails.GetOwned(ctx, email.Address, domain.AnonymousIdentity("42"))
		assert.ErrorIs(t, err, domain.ErrForbidden, "匿名与用户身份不能混用")

		got, err := f.emails.GetOwned(ctx, email.Address, owner)
		require.NoError(t, err)
		assert.Equal(t, email.ID, got.ID)
	})

	t.Run("活跃列表按创建时间排序", func(t *testing.T) {
		f := newFixture(t)
		f.create(t, owner, domain.PlanFree, "first")
		f.clock.Advance(time.Minute)
		f.create(t, owner, domain.PlanFree, "second")
		f.create(t, owner, domain.PlanFree, "third")
		f.clock.Advance(9 * time.Minute)

		active, err := f.emails.ListActive(ctx, owner)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "second", active[0].LocalPart)
		assert.Equal(t, "third", active[1].LocalPart)
	})

	t.Run("删除", func(t *testing.T) {
		f := newFixture(t)
		email := f.create(t, owner, domain.PlanFree, "todelete")

		assert.ErrorIs(t, f.emails.Delete(ctx, email.Address, domain.UserIdentity("other")), domain.ErrForbidden)
		require.NoError(t, f.emails.Delete(ctx, email.Address, owner))
		assert.ErrorIs(t, f.emails.Delete(ctx, email.Address, owner), domain.ErrNotFound)

		_, err := f.emails.Get(ctx, email.Address)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, []events.Type{events.EmailCreated, events.EmailDeleted}, f.events.Types())
	})

	t.Run("清理过期邮箱", func(t *testing.T) {
		f := newFixture(t)
		f.create(t, owner, domain.PlanFree, "short")
		f.create(t, owner, domain.PlanStandard, "long")

		n, err := f.emails.Reap(ctx, baseTime.Add(599*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = f.emails.Reap(ctx, baseTime.Add(600*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := f.emails.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Contains(t, f.events.Types(), events.EmailExpired)
	})
}
