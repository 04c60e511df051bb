package bot_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/ion/internal/bot"
	"github.com/edgard/ion/internal/dispatch"
	"github.com/edgard/ion/internal/pattern"
	"github.com/edgard/ion/internal/protocol/protocoltest"
	"github.com/edgard/ion/internal/session"
)

type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (s *blockingService) Run(ctx context.Context) error {
	s.started.Store(true)
	<-ctx.Done()
	s.stopped.Store(true)
	return nil
}

func newRunnerController(t *testing.T, client *protocoltest.Client, sess session.Session) *bot.Controller {
	t.Helper()
	ctrl, err := bot.NewController(bot.Options{
		Sessions: session.NewStatic(sess),
		Client:   client,
		Loader:   dispatch.NewLoader(pattern.New("."), nil),
		Modules:  testModules(new(int)),
	})
	require.NoError(t, err)
	return ctrl
}

func TestRunner_RunsUntilCancelled(t *testing.T) {
	t.Parallel()

	client := protocoltest.New(me)
	ctrl := newRunnerController(t, client, fullSession)
	svc := &blockingService{}
	r := bot.NewRunner(nil, ctrl, client, nil, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, ctrl.Running, time.Second, 10*time.Millisecond)
	assert.Eventually(t, svc.started.Load, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	assert.True(t, svc.stopped.Load())
	assert.Equal(t, bot.Stopped, ctrl.Status())
}

func TestRunner_UnconfiguredWaitsForShutdown(t *testing.T) {
	t.Parallel()

	client := protocoltest.New(me)
	ctrl := newRunnerController(t, client, session.Session{})
	r := bot.NewRunner(nil, ctrl, client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 0, client.ConnectCalls())
	assert.Equal(t, bot.Stopped, ctrl.Status())
}

func TestRunner_StartFailureKeepsRunning(t *testing.T) {
	t.Parallel()

	client := protocoltest.New(me)
	client.AuthErr = errors.New("revoked")
	ctrl := newRunnerController(t, client, fullSession)
	svc := &blockingService{}

	sched, err := bot.NewScheduler(nil, nil, nil)
	require.NoError(t, err)
	r := bot.NewRunner(nil, ctrl, client, sched, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, svc.started.Load, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return client.AuthenticateCalls() == 1 }, time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("runner returned after a failed login: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, bot.Stopped, ctrl.Status())
	assert.False(t, svc.stopped.Load(), "services keep running")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.True(t, svc.stopped.Load())
}
