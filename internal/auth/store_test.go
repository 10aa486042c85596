package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailawyer-pro/ailawyer/internal/models"
	"github.com/ailawyer-pro/ailawyer/internal/testutil"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisSessionStore(rdb), mr
}

func newGormStore(t *testing.T) SessionStore {
	t.Helper()
	db := testutil.NewDB(t)
	user := &models.User{BaseModel: models.BaseModel{ID: storeTestUserID}, Email: "owner@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return NewGormSessionStore(db)
}

const storeTestUserID = "01HZZZZZZZZZZZZZZZZZZZZZZZ"

func TestSessionStores(t *testing.T) {
	stores := map[string]func(t *testing.T) SessionStore{
		"gorm": newGormStore,
		"redis": func(t *testing.T) SessionStore {
			s, _ := newRedisStore(t)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("create get delete", func(t *testing.T) {
				store := newStore(t)
				ctx := context.Background()

				session := &models.Session{
					UserID:    storeTestUserID,
					ExpiresAt: time.Now().UTC().Add(time.Hour),
					IPAddress: "10.0.0.1",
				}
				require.NoError(t, store.Create(ctx, session))
				require.NotEmpty(t, session.ID)

				got, err := store.Get(ctx, session.ID)
				require.NoError(t, err)
				assert.Equal(t, storeTestUserID, got.UserID)
				assert.Equal(t, "10.0.0.1", got.IPAddress)
				assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Second)

				require.NoError(t, store.Delete(ctx, session.ID))
				_, err = store.Get(ctx, session.ID)
				assert.ErrorIs(t, err, ErrSessionNotFound)

				assert.NoError(t, store.Delete(ctx, session.ID), "delete is idempotent")
			})

			t.Run("unknown id", func(t *testing.T) {
				store := newStore(t)
				_, err := store.Get(context.Background(), "missing")
				assert.ErrorIs(t, err, ErrSessionNotFound)
			})
		})
	}
}

func TestGormSessionStore_DeleteExpired(t *testing.T) {
	store := newGormStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live := &models.Session{UserID: storeTestUserID, ExpiresAt: now.Add(time.Hour)}
	dead := &models.Session{UserID: storeTestUserID, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, store.Create(ctx, live))
	require.NoError(t, store.Create(ctx, dead))

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, live.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, dead.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	session := &models.Session{UserID: storeTestUserID, ExpiresAt: time.Now().Add(30 * time.Minute)}
	require.NoError(t, store.Create(ctx, session))

	ttl := mr.TTL(redisSessionKey(session.ID))
	assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)

	mr.FastForward(31 * time.Minute)
	_, err := store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisSessionStore_RejectsExpiredOnCreate(t *testing.T) {
	store, _ := newRedisStore(t)

	err := store.Create(context.Background(), &models.Session{UserID: storeTestUserID, ExpiresAt: time.Now().Add(-time.Second)})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRedisSessionStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
