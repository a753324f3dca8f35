package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsValue(t *testing.T) {
	rt := NewRuntime(2, nil)
	defer rt.Close()

	v, err := Execute(context.Background(), rt, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Execute(context.Background(), rt, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestExecuteRecoversPanic(t *testing.T) {
	rt := NewRuntime(1, nil)
	defer rt.Close()

	_, err := Execute(context.Background(), rt, func(ctx context.Context) (int, error) {
		panic("engine exploded")
	})
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "engine exploded", perr.Value)
	assert.NotEmpty(t, perr.Stack)

	// The worker survives the panic
	v, err := Execute(context.Background(), rt, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, int64(1), rt.Stats().TasksPanicked)
}

func TestExecuteRunsOnWorkers(t *testing.T) {
	rt := NewRuntime(4, nil)
	defer rt.Close()

	var running, peak atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Execute(context.Background(), rt, func(ctx context.Context) (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				<-release
				running.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return peak.Load() == 4 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	assert.Eventually(t, func() bool { return rt.Stats().TasksCompleted == 4 }, time.Second, 5*time.Millisecond)
}

func TestExecuteIgnoresCancellation(t *testing.T) {
	rt := NewRuntime(1, nil)
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := Execute(ctx, rt, func(ctx context.Context) (string, error) {
		return "finished", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "finished", v)
}

func TestCloseRejectsNewTasks(t *testing.T) {
	rt := NewRuntime(1, nil)
	rt.Close()
	rt.Close()

	_, err := Execute(context.Background(), rt, func(ctx context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrRuntimeClosed)
	assert.Zero(t, rt.Stats().ActiveWorkers)
}
