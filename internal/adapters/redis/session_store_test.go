package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func teacherSession(exp time.Time) domainauth.Session {
	return domainauth.Session{
		Token: "T1",
		Identity: domainauth.Identity{
			UserID:      "42",
			Username:    "wang",
			RealName:    "王老师",
			PhoneNumber: "13800000000",
			Email:       "wang@example.edu",
			Role:        domainauth.RoleTeacher,
			TeacherID:   "T2024001",
			College:     "计算机学院",
			Major:       "软件工程",
			ClassName:   "软工2101",
		},
		ExpiresAt: exp,
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sess := teacherSession(time.Now().Add(30 * time.Minute))
	require.NoError(t, store.Save(ctx, "sid-1", sess))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Token, got.Token)
	assert.Equal(t, sess.Identity, got.Identity)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestSessionStore_SaveOverwrites(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", teacherSession(time.Time{})))
	second := teacherSession(time.Time{})
	second.Token = "T2"
	require.NoError(t, store.Save(ctx, "sid", second))

	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Token)
}

func TestSessionStore_TTLFollowsExpiresAt(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", teacherSession(time.Now().Add(time.Minute))))
	ttl := mr.TTL("session:sid")
	assert.Greater(t, ttl, 50*time.Second)

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "sid")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore_ZeroExpiryPersists(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStore(client)

	require.NoError(t, store.Save(context.Background(), "cli", teacherSession(time.Time{})))
	assert.Equal(t, time.Duration(0), mr.TTL("session:cli"))
}

func TestSessionStore_RejectsExpiredAndEmptyKey(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.Error(t, store.Save(ctx, "sid", teacherSession(time.Now().Add(-time.Minute))))
	require.Error(t, store.Save(ctx, "", teacherSession(time.Time{})))
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "non-existent")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore_CorruptPayload(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStore(client)

	require.NoError(t, mr.Set("session:bad", "{not json"))
	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore_DeleteIsIdempotent(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", teacherSession(time.Time{})))
	require.NoError(t, store.Delete(ctx, "sid"))
	require.NoError(t, store.Delete(ctx, "sid"))
	require.NoError(t, store.Delete(ctx, ""))

	_, err := store.Get(ctx, "sid")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStoreWithPrefix(client, "cd:")

	require.NoError(t, store.Save(context.Background(), "sid", teacherSession(time.Time{})))
	assert.True(t, mr.Exists("cd:sid"))
	assert.False(t, mr.Exists("session:sid"))
}

func TestSessionStore_ListAndPurge(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", teacherSession(time.Time{})))
	require.NoError(t, store.Save(ctx, "b", teacherSession(time.Time{})))
	require.NoError(t, mr.Set("session:corrupt", "{"))
	require.NoError(t, mr.Set("other:key", "x"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(list))
	for _, s := range list {
		keys = append(keys, s.Key)
		assert.Equal(t, domainauth.RoleTeacher, s.Identity.Role)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists("other:key"))

	n, err = store.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
