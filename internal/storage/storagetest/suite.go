// Package storagetest 提供存储实现共用的一致性测试。
// 每个 storage.Store 实现都应在自己的测试中调用 Run。
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
)

// Factory 为每个用例创建一个全新的存储实例
type Factory func(t *testing.T) storage.Store

// TestFunction 单个一致性用例
type TestFunction func(t *testing.T, store storage.Store)

// TestingFuncs 所有存储实现都必须通过的用例
var TestingFuncs = map[string]TestFunction{
	"InsertAndGet":             testInsertAndGet,
	"ActiveAddressConflict":    testActiveAddressConflict,
	"ExpiredHolderReused":      testExpiredHolderReused,
	"ListByOwnerOrdering":      testListByOwnerOrdering,
	"DeleteEmail":              testDeleteEmail,
	"DeleteExpiredBoundary":    testDeleteExpiredBoundary,
	"AppendToMissingOrExpired": testAppendToMissingOrExpired,
	"AppendDeduplicates":       testAppendDeduplicates,
	"AppendEvictsOldest":       testAppendEvictsOldest,
	"AppendKeepsAttachments":   testAppendKeepsAttachments,
	"MarkMessageRead":          testMarkMessageRead,
	"UserPlans":                testUserPlans,
	"CustomDomains":            testCustomDomains,
}

// Run 对 factory 创建的存储依次执行全部用例
func Run(t *testing.T, factory Factory) {
	for name, fn := range TestingFuncs {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })
			fn(t, store)
		})
	}
}

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newEmail(address, owner string, createdAt time.Time, lifetime time.Duration) *domain.TemporaryEmail {
	local, dom, _ := domain.SplitAddress(address)
	return &domain.TemporaryEmail{
		ID:        uuid.NewString(),
		Address:   address,
		LocalPart: local,
		Domain:    dom,
		OwnerKey:  owner,
		Plan:      domain.PlanStandard,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(lifetime),
	}
}

func newMessage(subject string, deliveryID string) *domain.Message {
	msg := &domain.Message{
		ID:         uuid.NewString(),
		From:       "sender@example.org",
		Subject:    subject,
		Text:       "body of " + subject,
		ReceivedAt: base,
		CreatedAt:  base,
	}
	if deliveryID != "" {
		msg.DeliveryID = &deliveryID
	}
	return msg
}

func testInsertAndGet(t *testing.T, store storage.Store) {
	ctx := context.Background()
	email := newEmail("alice@example.com", "anon:s1", base, 10*time.Minute)

	require.NoError(t, store.InsertEmail(ctx, email))

	got, err := store.GetEmailByAddress(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, email.ID, got.ID)
	assert.Equal(t, "anon:s1", got.OwnerKey)
	assert.Equal(t, domain.PlanStandard, got.Plan)
	assert.True(t, email.ExpiresAt.Equal(got.ExpiresAt))
	assert.True(t, email.CreatedAt.Equal(got.CreatedAt))

	_, err = store.GetEmailByAddress(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := store.CountEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func testActiveAddressConflict(t *testing.T, store storage.Store) {
	ctx := context.Background()
	first := newEmail("taken@example.com", "anon:s1", base, 10*time.Minute)
	require.NoError(t, store.InsertEmail(ctx, first))

	// 一秒钟前过期才算空闲，这里仍然活跃
	second := newEmail("taken@example.com", "anon:s2", base.Add(10*time.Minute-time.Second), 10*time.Minute)
	err := store.InsertEmail(ctx, second)
	assert.ErrorIs(t, err, domain.ErrAddressConflict)

	got, err := store.GetEmailByAddress(ctx, "taken@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func testExpiredHolderReused(t *testing.T, store storage.Store) {
	ctx := context.Background()
	old := newEmail("reuse@example.com", "anon:s1", base, 10*time.Minute)
	require.NoError(t, store.InsertEmail(ctx, old))
	_, err := store.AppendMessage(ctx, old.Address, newMessage("old mail", ""), storage.AppendOptions{Now: base, MaxMessages: 10})
	require.NoError(t, err)

	// 恰好在过期时刻重新签发
	fresh := newEmail("reuse@example.com", "anon:s2", old.ExpiresAt, 10*time.Minute)
	require.NoError(t, store.InsertEmail(ctx, fresh))

	got, err := store.GetEmailByAddress(ctx, "reuse@example.com")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
	assert.Equal(t, "anon:s2", got.OwnerKey)

	msgs, err := store.ListMessages(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	oldOwner, err := store.ListEmailsByOwner(ctx, "anon:s1")
	require.NoError(t, err)
	assert.Empty(t, oldOwner)
}

func testListByOwnerOrdering(t *testing.T, store storage.Store) {
	ctx := context.Background()
	owner := "user:42"

	later := newEmail("later@example.com", owner, base.Add(2*time.Minute), time.Hour)
	tieA := newEmail("tie-a@example.com", owner, base, time.Hour)
	tieB := newEmail("tie-b@example.com", owner, base, time.Hour)
	other := newEmail("other@example.com", "user:7", base, time.Hour)

	for _, e := range []*domain.TemporaryEmail{later, tieA, tieB, other} {
		require.NoError(t, store.InsertEmail(ctx, e))
	}

	list, err := store.ListEmailsByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{tieA.ID, tieB.ID, later.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func testDeleteEmail(t *testing.T, store storage.Store) {
	ctx := context.Background()
	email := newEmail("gone@example.com", "anon:s1", base, time.Hour)
	require.NoError(t, store.InsertEmail(ctx, email))
	_, err := store.AppendMessage(ctx, email.Address, newMessage("hello", ""), storage.AppendOptions{Now: base, MaxMessages: 10})
	require.NoError(t, err)

	require.NoError(t, store.DeleteEmail(ctx, email.Address))

	_, err = store.GetEmailByAddress(ctx, email.Address)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.DeleteEmail(ctx, email.Address), domain.ErrNotFound)

	_, err = store.ListMessages(ctx, email.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDeleteExpiredBoundary(t *testing.T, store storage.Store) {
	ctx := context.Background()
	atBoundary := newEmail("edge@example.com", "anon:s1", base, 10*time.Minute)
	alive := newEmail("alive@example.com", "anon:s1", base.Add(time.Second), 10*time.Minute)
	require.NoError(t, store.InsertEmail(ctx, atBoundary))
	require.NoError(t, store.InsertEmail(ctx, alive))

	purged, err := store.DeleteExpiredEmails(ctx, atBoundary.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, purged, 1)
	assert.Equal(t, atBoundary.Address, purged[0].Address)

	_, err = store.GetEmailByAddress(ctx, alive.Address)
	assert.NoError(t, err)

	purged, err = store.DeleteExpiredEmails(ctx, atBoundary.ExpiresAt)
	require.NoError(t, err)
	assert.Empty(t, purged)
}

func testAppendToMissingOrExpired(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, err := store.AppendMessage(ctx, "missing@example.com", newMessage("x", ""), storage.AppendOptions{Now: base, MaxMessages: 10})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	email := newEmail("late@example.com", "anon:s1", base, 10*time.Minute)
	require.NoError(t, store.InsertEmail(ctx, email))

	_, err = store.AppendMessage(ctx, email.Address, newMessage("x", ""), storage.AppendOptions{Now: email.ExpiresAt, MaxMessages: 10})
	assert.ErrorIs(t, err, domain.ErrExpired)

	msgs, err := store.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testAppendDeduplicates(t *testing.T, store storage.Store) {
	ctx := context.Background()
	email := newEmail("dedupe@example.com", "anon:s1", base, time.Hour)
	require.NoError(t, store.InsertEmail(ctx, email))
	opts := storage.AppendOptions{Now: base, MaxMessages: 10}

	first, err := store.AppendMessage(ctx, email.Address, newMessage("one", "<id-1@mx>"), opts)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	again, err := store.AppendMessage(ctx, email.Address, newMessage("one again", "<id-1@mx>"), opts)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	// 带缓存前置去重的实现可能不返回已存在的邮件
	if again.Message != nil {
		assert.Equal(t, first.Message.ID, again.Message.ID)
	}

	// 无 DeliveryID 的邮件不参与去重
	_, err = store.AppendMessage(ctx, email.Address, newMessage("anon 1", ""), opts)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, email.Address, newMessage("anon 2", ""), opts)
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func testAppendEvictsOldest(t *testing.T, store storage.Store) {
	ctx := context.Background()
	email := newEmail("fifo@example.com", "anon:s1", base, time.Hour)
	require.NoError(t, store.InsertEmail(ctx, email))
	opts := storage.AppendOptions{Now: base, MaxMessages: 3}

	var evicted int
	for i := 1; i <= 5; i++ {
		res, err := store.AppendMessage(ctx, email.Address, newMessage(fmt.Sprintf("m%d", i), ""), opts)
		require.NoError(t, err)
		evicted += res.Evicted
	}
	assert.Equal(t, 2, evicted)

	msgs, err := store.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m5", "m4", "m3"}, []string{msgs[0].Subject, msgs[1].Subject, msgs[2].Subject})
}

func testAppendKeepsAttachments(t *testing.T, store storage.Store) {
	ctx := context.Background()
	email := newEmail("files@example.com", "anon:s1", base, time.Hour)
	require.NoError(t, store.InsertEmail(ctx, email))

	msg := newMessage("with file", "")
	msg.Attachments = []domain.Attachment{{
		ID:          uuid.NewString(),
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        4,
		Content:     []byte("%PDF"),
	}}
	res, err := store.AppendMessage(ctx, email.Address, msg, storage.AppendOptions{Now: base, MaxMessages: 10})
	require.NoError(t, err)
	assert.Equal(t, email.ID, res.Message.EmailID)

	msgs, err := store.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "report.pdf", msgs[0].Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF"), msgs[0].Attachments[0].Content)
	assert.Equal(t, msgs[0].ID, msgs[0].Attachments[0].MessageID)
}

func testMarkMessageRead(t *testing.T, store storage.Store) {
	ctx := context.Background()
	email := newEmail("read@example.com", "anon:s1", base, time.Hour)
	require.NoError(t, store.InsertEmail(ctx, email))
	res, err := store.AppendMessage(ctx, email.Address, newMessage("unread", ""), storage.AppendOptions{Now: base, MaxMessages: 10})
	require.NoError(t, err)

	require.NoError(t, store.MarkMessageRead(ctx, email.ID, res.Message.ID, true))
	msgs, err := store.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	assert.True(t, msgs[0].IsRead)

	require.NoError(t, store.MarkMessageRead(ctx, email.ID, res.Message.ID, false))
	msgs, err = store.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	assert.False(t, msgs[0].IsRead)

	assert.ErrorIs(t, store.MarkMessageRead(ctx, email.ID, "missing", true), domain.ErrNotFound)
}

func testUserPlans(t *testing.T, store storage.Store) {
	ctx := context.Background()

	_, err := store.GetUserPlan(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SaveUserPlan(ctx, &domain.UserPlan{UserID: "42", Plan: domain.PlanStandard}))
	require.NoError(t, store.SaveUserPlan(ctx, &domain.UserPlan{UserID: "42", Plan: domain.PlanPremium}))

	got, err := store.GetUserPlan(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, got.Plan)
}

func testCustomDomains(t *testing.T, store storage.Store) {
	ctx := context.Background()
	d := &domain.CustomDomain{
		ID:          uuid.NewString(),
		UserID:      "42",
		Domain:      "mail.acme.test",
		Status:      domain.DomainStatusPending,
		VerifyToken: "tok",
	}
	require.NoError(t, store.CreateCustomDomain(ctx, d))

	dup := *d
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, store.CreateCustomDomain(ctx, &dup), domain.ErrDomainExists)

	verified, err := store.ListVerifiedCustomDomains(ctx)
	require.NoError(t, err)
	assert.Empty(t, verified)

	now := base
	d.Status = domain.DomainStatusVerified
	d.VerifiedAt = &now
	require.NoError(t, store.UpdateCustomDomain(ctx, d))

	verified, err = store.ListVerifiedCustomDomains(ctx)
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, "mail.acme.test", verified[0].Domain)

	byName, err := store.GetCustomDomainByName(ctx, "mail.acme.test")
	require.NoError(t, err)
	assert.Equal(t, d.ID, byName.ID)

	mine, err := store.ListCustomDomainsByUser(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, store.DeleteCustomDomain(ctx, d.ID))
	_, err = store.GetCustomDomain(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.DeleteCustomDomain(ctx, d.ID), domain.ErrNotFound)
}
