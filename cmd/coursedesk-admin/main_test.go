package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk/config"
	redisstore "github.com/coursedesk/coursedesk/internal/adapters/redis"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

const testPrefix = "coursedesk:session:"

func newRedisContext(t *testing.T, stdin string) (*commandContext, *bytes.Buffer, *redisstore.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	out := &bytes.Buffer{}
	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.AppConfig{
			Session: config.SessionConfig{Store: config.StoreKindRedis, RedisPrefix: testPrefix},
			Redis:   config.RedisConfig{URI: mr.Addr()},
		},
		In:  strings.NewReader(stdin),
		Out: out,
	}
	return cmdCtx, out, redisstore.NewSessionStoreWithPrefix(rdb, testPrefix)
}

func seed(t *testing.T, store *redisstore.SessionStore, key string, role domainauth.Role, name string) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), key, domainauth.Session{
		Token:     "secret-token-" + key,
		Identity:  domainauth.Identity{UserID: key + "-id", RealName: name, Role: role},
		ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func TestListSessions(t *testing.T) {
	cmdCtx, out, store := newRedisContext(t, "")
	seed(t, store, "a", domainauth.RoleTeacher, "王老师")
	seed(t, store, "b", domainauth.RoleStudent, "张三")

	require.NoError(t, runListSessions(cmdCtx, nil))
	text := out.String()
	assert.Contains(t, text, "王老师")
	assert.Contains(t, text, "张三")
	assert.Contains(t, text, "2 session(s)")
	assert.NotContains(t, text, "secret-token", "tokens must never be printed")

	out.Reset()
	require.NoError(t, runListSessions(cmdCtx, []string{"--role", "student"}))
	assert.NotContains(t, out.String(), "王老师")
	assert.Contains(t, out.String(), "1 session(s)")
}

func TestListSessions_UnknownRole(t *testing.T) {
	cmdCtx, _, _ := newRedisContext(t, "")
	require.Error(t, runListSessions(cmdCtx, []string{"--role", "admin"}))
}

func TestPurgeSessions(t *testing.T) {
	cmdCtx, out, store := newRedisContext(t, "y\n")
	seed(t, store, "a", domainauth.RoleTeacher, "王老师")
	seed(t, store, "b", domainauth.RoleStudent, "张三")

	require.NoError(t, runPurgeSessions(cmdCtx, nil))
	assert.Contains(t, out.String(), "Continue? [y/N]")
	assert.Contains(t, out.String(), "removed 2 session(s)")

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPurgeSessions_Aborted(t *testing.T) {
	cmdCtx, _, store := newRedisContext(t, "n\n")
	seed(t, store, "a", domainauth.RoleTeacher, "王老师")

	require.EqualError(t, runPurgeSessions(cmdCtx, nil), "aborted by user")

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestPurgeSessions_ExpiredOnRedisIsNoop(t *testing.T) {
	cmdCtx, out, store := newRedisContext(t, "")
	seed(t, store, "a", domainauth.RoleTeacher, "王老师")

	require.NoError(t, runPurgeSessions(cmdCtx, []string{"--expired", "--yes"}))
	assert.Contains(t, out.String(), "nothing to do")

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestOpenSessionAdmin_MemoryStoreRefused(t *testing.T) {
	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.AppConfig{Session: config.SessionConfig{Store: config.StoreKindMemory}},
	}
	_, _, err := openSessionAdmin(cmdCtx.Ctx, cmdCtx)
	require.Error(t, err)
}

func TestRoutes(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, runRoutes(&commandContext{Out: out}, nil))

	text := out.String()
	for _, want := range []string{"/teacher/dashboard", "/admin/users", "/student/profile", "/forgot-password"} {
		assert.Contains(t, text, want)
	}
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	opts, err = parseMigrateFlags([]string{"--timeout", "30s"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestPrintUsageIsSorted(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printUsage(out))

	text := out.String()
	assert.Less(t, strings.Index(text, "list-sessions"), strings.Index(text, "migrate"))
	assert.Less(t, strings.Index(text, "purge-sessions"), strings.Index(text, "routes"))
}
