package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	mu      sync.Mutex
	tokens  map[string]string
	Deletes int
}

func (f *fakeSessions) Token(_ context.Context, key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[key]
}

func (f *fakeSessions) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes++
	delete(f.tokens, key)
	return nil
}

func (f *fakeSessions) HasValidToken(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[key] != ""
}

func newSessions(t *testing.T) *fakeSessions {
	t.Helper()
	return &fakeSessions{tokens: map[string]string{}}
}

func newClient(t *testing.T, srv *httptest.Server, sessions Sessions) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.URL, Sessions: sessions})
	require.NoError(t, err)
	return c
}

func saveToken(t *testing.T, s *fakeSessions, key, token string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = token
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":[{"id":1}]}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	saveToken(t, sessions, "sid", "T1")
	c := newClient(t, srv, sessions)

	ctx := WithSessionKey(context.Background(), "sid")
	data, err := c.GetData(ctx, "/assignments", url.Values{"courseId": {"5"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(data))
	assert.Equal(t, "Bearer T1", gotAuth)
	assert.Equal(t, "/api/assignments", gotPath)
	assert.Equal(t, "courseId=5", gotQuery)
}

func TestClient_NoTokenSendsUnauthenticated(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":200,"data":null}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	c := newClient(t, srv, sessions)

	_, err := c.GetData(context.Background(), "/courses", nil)
	require.NoError(t, err)
	assert.Equal(t, "", gotAuth.Load())

	_, err = c.GetData(WithSessionKey(context.Background(), "nobody"), "/courses", nil)
	require.NoError(t, err)
	assert.Equal(t, "", gotAuth.Load())
}

func TestClient_ReadsTokenAtSendTime(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":200}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	c := newClient(t, srv, sessions)
	ctx := WithSessionKey(context.Background(), "sid")

	saveToken(t, sessions, "sid", "T1")
	_, err := c.GetData(ctx, "/courses", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer T1", gotAuth.Load())

	saveToken(t, sessions, "sid", "T2")
	_, err = c.GetData(ctx, "/courses", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer T2", gotAuth.Load())
}

func TestClient_401ClearsSessionAndPublishesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":401,"message":"token expired"}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	saveToken(t, sessions, "sid", "T1")
	c := newClient(t, srv, sessions)

	var (
		mu     sync.Mutex
		events []Unauthorized
	)
	c.Subscribe(func(ev Unauthorized) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	var second int
	c.Subscribe(func(Unauthorized) { second++ })

	ctx := WithSessionKey(context.Background(), "sid")
	_, err := c.GetData(ctx, "/courses/teacher/1", nil)
	require.ErrorIs(t, err, ErrCredentialRejected)

	assert.False(t, sessions.HasValidToken(context.Background(), "sid"))
	assert.Equal(t, 1, sessions.Deletes)

	require.Len(t, events, 1)
	assert.Equal(t, Unauthorized{Key: "sid", Path: "/courses/teacher/1", LoginPath: "/login"}, events[0])
	assert.Equal(t, 1, second)
}

func TestClient_401WithoutTokenDoesNotPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	c := newClient(t, srv, sessions)
	var delivered bool
	c.Subscribe(func(Unauthorized) { delivered = true })

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/users/login", Body: map[string]string{}})
	require.ErrorIs(t, err, ErrCredentialRejected)
	assert.False(t, delivered)
	assert.Zero(t, sessions.Deletes)
}

func TestClient_UnsubscribeStopsDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	c := newClient(t, srv, sessions)
	var n int
	unsub := c.Subscribe(func(Unauthorized) { n++ })
	unsub()
	unsub()

	saveToken(t, sessions, "sid", "T1")
	_, _ = c.GetData(WithSessionKey(context.Background(), "sid"), "/x", nil)
	assert.Zero(t, n)
}

func TestClient_StatusErrorPassesThrough(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code":500,"message":"db down"}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	saveToken(t, sessions, "sid", "T1")
	c := newClient(t, srv, sessions)

	_, err := c.GetData(WithSessionKey(context.Background(), "sid"), "/courses", nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "db down", se.Message)
	assert.Equal(t, "status_5xx", se.ErrorClass())
	assert.Equal(t, int32(1), calls.Load(), "no retry")
	assert.True(t, sessions.HasValidToken(context.Background(), "sid"), "session untouched")
}

func TestClient_EnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":400,"message":"验证码错误"}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	c := newClient(t, srv, sessions)

	_, err := c.PostData(context.Background(), "/users/register", map[string]string{"code": "1"})
	var ee *EnvelopeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 400, ee.Code)
	assert.Equal(t, "验证码错误", ee.Message)
}

func TestClient_TimeoutPassesThrough(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	sessions := newSessions(t)
	saveToken(t, sessions, "sid", "T1")
	c, err := New(Options{BaseURL: srv.URL, Sessions: sessions, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.GetData(WithSessionKey(context.Background(), "sid"), "/slow", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredentialRejected))
	assert.True(t, sessions.HasValidToken(context.Background(), "sid"))
}

func TestClient_PostsJSONBody(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"code":200,"data":{"id":9}}`)
	}))
	defer srv.Close()

	sessions := newSessions(t)
	c := newClient(t, srv, sessions)

	data, err := c.PostData(context.Background(), "assignments", map[string]any{"title": "作业一"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9}`, string(data))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "作业一", got["title"])
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	_, err = New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)

	c, err := New(Options{BaseURL: "http://backend:8080/", APIPrefix: "v1/"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Equal(t, "/v1", c.prefix)
}
