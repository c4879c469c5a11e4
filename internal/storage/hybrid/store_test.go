package hybrid

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/storage"
	"tempinbox/backend/internal/storage/memory"
	"tempinbox/backend/internal/storage/redis"
	"tempinbox/backend/internal/storage/storagetest"
)

func newHybrid(t *testing.T) (*Store, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.New(&config.RedisConfig{Address: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	db := memory.NewStore()
	return NewStore(db, redis.NewCache(client), nil), db, mr
}

func TestHybridStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		store, _, _ := newHybrid(t)
		return store
	})
}

func TestHybridStore_ReadThroughCache(t *testing.T) {
	store, db, _ := newHybrid(t)
	ctx := context.Background()
	now := time.Now().UTC()

	email := &domain.TemporaryEmail{
		ID:        uuid.NewString(),
		Address:   "cached@example.com",
		OwnerKey:  "user:1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.InsertEmail(ctx, email))

	// 绕过混合存储直接删除数据库记录，缓存仍然命中
	require.NoError(t, db.DeleteEmail(ctx, email.Address))
	got, err := store.GetEmailByAddress(ctx, email.Address)
	require.NoError(t, err)
	assert.Equal(t, "user:1", got.OwnerKey)

	// 通过混合存储删除会清除缓存
	require.NoError(t, store.InsertEmail(ctx, &domain.TemporaryEmail{
		ID: uuid.NewString(), Address: "gone@example.com", OwnerKey: "user:1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, store.DeleteEmail(ctx, "gone@example.com"))
	_, err = store.GetEmailByAddress(ctx, "gone@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHybridStore_DeliveryMarker(t *testing.T) {
	store, db, _ := newHybrid(t)
	ctx := context.Background()
	now := time.Now().UTC()

	email := &domain.TemporaryEmail{
		ID: uuid.NewString(), Address: "dedupe@example.com", OwnerKey: "user:1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.InsertEmail(ctx, email))

	deliveryID := "<abc@mx>"
	opts := storage.AppendOptions{Now: now, MaxMessages: 10}

	res, err := store.AppendMessage(ctx, email.Address, &domain.Message{ID: uuid.NewString(), DeliveryID: &deliveryID}, opts)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	res, err = store.AppendMessage(ctx, email.Address, &domain.Message{ID: uuid.NewString(), DeliveryID: &deliveryID}, opts)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	msgs, err := db.ListMessages(ctx, email.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHybridStore_UserPlanCache(t *testing.T) {
	store, _, mr := newHybrid(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUserPlan(ctx, &domain.UserPlan{UserID: "9", Plan: domain.PlanStandard}))
	assert.True(t, mr.Exists("tempinbox:plan:9"))

	plan, err := store.GetUserPlan(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStandard, plan.Plan)
}
