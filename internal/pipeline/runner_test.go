package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/providers"
)

func TestRunExecutesStagesInOrder(t *testing.T) {
	var order []string
	stages := []Stage{
		{Name: "fetch", Run: func(context.Context) error { order = append(order, "fetch"); return nil }},
		{Name: "build", Run: func(context.Context) error { order = append(order, "build"); return nil }},
		{Name: "publish", Run: func(context.Context) error { order = append(order, "publish"); return nil }},
	}

	progress, err := NewRunner(time.Second).Run(context.Background(), stages)
	require.NoError(t, err)
	require.Equal(t, []string{"fetch", "build", "publish"}, order)
	require.Equal(t, []string{"fetch", "build", "publish"}, progress.Completed)
	require.Empty(t, progress.Failed)
}

func TestRunStopsAtFirstFailureAndReportsProgress(t *testing.T) {
	boom := errors.New("boom")
	var ranLast bool
	stages := []Stage{
		{Name: "fetch", Run: func(context.Context) error { return nil }},
		{Name: "build", Run: func(context.Context) error { return boom }},
		{Name: "publish", Run: func(context.Context) error { ranLast = true; return nil }},
	}

	progress, err := NewRunner(time.Second).Run(context.Background(), stages)
	require.Error(t, err)
	require.True(t, errors.Is(err, boom))
	require.False(t, ranLast)
	require.Equal(t, []string{"fetch"}, progress.Completed)
	require.Equal(t, "build", progress.Failed)
}

func TestRunEnforcesStageDeadline(t *testing.T) {
	stages := []Stage{
		{Name: "slow", Run: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		}},
	}

	start := time.Now()
	_, err := NewRunner(20 * time.Millisecond).Run(context.Background(), stages)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Less(t, time.Since(start), time.Second)
}

func TestShouldBackOffOnlyForExhausted(t *testing.T) {
	require.True(t, ShouldBackOff(errors.Wrap(providers.ErrExhausted, "registry")))
	require.False(t, ShouldBackOff(errors.Wrap(providers.ErrRecoverable, "portcalls")))
	require.False(t, ShouldBackOff(errors.New("other")))
}

func TestForEachBoundsParallelismAndCancelsOnError(t *testing.T) {
	var inFlight, peak int32
	keys := []string{"a", "b", "c", "d", "e", "f"}

	err := ForEach(context.Background(), keys, 2, func(ctx context.Context, key string) error {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	boom := errors.New("boom")
	err = ForEach(context.Background(), keys, 2, func(ctx context.Context, key string) error {
		if key == "b" {
			return boom
		}
		return nil
	})
	require.True(t, errors.Is(err, boom))
}
