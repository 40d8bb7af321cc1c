package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_SubmitRunsJob(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	defer p.Release()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	require.NoError(t, p.Submit(context.Background(), "test-job", func(ctx context.Context) {
		ran = true
		wg.Done()
	}))
	wg.Wait()
	require.True(t, ran)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Release()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(context.Background(), "panicky-job", func(ctx context.Context) {
		defer wg.Done()
		panic("boom")
	}))
	wg.Wait()

	// The pool must still accept work after a recovered panic.
	wg.Add(1)
	require.NoError(t, p.Submit(context.Background(), "after-panic", func(ctx context.Context) {
		wg.Done()
	}))
	wg.Wait()
}

func TestPool_DefaultSizeUsedForNonPositive(t *testing.T) {
	p, err := New(0)
	require.NoError(t, err)
	defer p.Release()
	require.NotNil(t, p)
}

func TestPool_RunningReflectsInFlightJobs(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Release()

	started := make(chan struct{})
	block := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), "blocker", func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started
	require.Equal(t, 1, p.Running())
	close(block)
	time.Sleep(10 * time.Millisecond)
}
