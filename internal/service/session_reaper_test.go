package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpiredDeleter struct {
	calls atomic.Int32
	count int
	err   error
}

func (f *fakeExpiredDeleter) DeleteExpired(context.Context) (int, error) {
	f.calls.Add(1)
	return f.count, f.err
}

func TestNewSessionReaper_Validation(t *testing.T) {
	_, err := NewSessionReaper(SessionReaperOptions{Interval: time.Minute})
	require.Error(t, err)

	_, err = NewSessionReaper(SessionReaperOptions{Repo: &fakeExpiredDeleter{}})
	require.Error(t, err)
}

func TestSessionReaper_Sweep(t *testing.T) {
	repo := &fakeExpiredDeleter{count: 3}
	r, err := NewSessionReaper(SessionReaperOptions{Repo: repo, Interval: time.Minute})
	require.NoError(t, err)

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	repo.err = errors.New("relation does not exist")
	_, err = r.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete expired sessions")
}

func TestSessionReaper_SweepSkipsCanceledContext(t *testing.T) {
	repo := &fakeExpiredDeleter{}
	r, err := NewSessionReaper(SessionReaperOptions{Repo: repo, Interval: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls.Load())
}

func TestSessionReaper_RunSweepsUntilCanceled(t *testing.T) {
	repo := &fakeExpiredDeleter{err: errors.New("transient")}
	r, err := NewSessionReaper(SessionReaperOptions{Repo: repo, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.calls.Load() >= 3 }, time.Second, time.Millisecond,
		"failures must not stop the loop")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
