package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sphere/internal/publication/service"
	id "sphere/pkg/domain"
	"sphere/pkg/requestcontext"
)

type stubSweeper struct {
	calls     atomic.Int32
	olderThan time.Time
	now       time.Time
	result    *service.SweepResult
	err       error
}

func (s *stubSweeper) SweepExpired(ctx context.Context, olderThan time.Time) (*service.SweepResult, error) {
	s.calls.Add(1)
	s.olderThan = olderThan
	s.now = requestcontext.Now(ctx)
	return s.result, s.err
}

func (s *stubSweeper) PendingTTL() time.Duration { return 30 * time.Minute }

func TestSweepOnce(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	stub := &stubSweeper{result: &service.SweepResult{
		Posts:    []id.PostID{id.NewPostID()},
		Comments: []id.CommentID{id.NewCommentID(), id.NewCommentID()},
	}}
	w := NewExpirySweeper(stub, time.Minute, WithClock(func() time.Time { return now }))

	n, err := w.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, now.Add(-30*time.Minute), stub.olderThan)
	assert.Equal(t, now, stub.now)
}

func TestSweepOnce_Error(t *testing.T) {
	stub := &stubSweeper{err: errors.New("db down")}
	w := NewExpirySweeper(stub, time.Minute)

	n, err := w.SweepOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestStart_StopsOnCancel(t *testing.T) {
	stub := &stubSweeper{result: &service.SweepResult{}}
	w := NewExpirySweeper(stub, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return stub.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
