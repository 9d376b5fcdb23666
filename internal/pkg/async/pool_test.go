package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/pkg/async"
)

func TestPoolExecute(t *testing.T) {
	pool := async.NewPool(2)

	var running, peak atomic.Int32
	task := func(name string, value int) async.Task {
		return async.Task{Name: name, Execute: func(ctx context.Context) (any, error) {
			now := running.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return value, nil
		}}
	}

	results := pool.Execute(context.Background(), []async.Task{
		task("a", 1), task("b", 2), task("c", 3), task("d", 4), task("e", 5),
	})

	require.Len(t, results, 5)
	assert.Equal(t, 3, results["c"].Data)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	t.Run("pool can be reused", func(t *testing.T) {
		again := pool.Execute(context.Background(), []async.Task{task("x", 9)})
		assert.Equal(t, 9, again["x"].Data)
	})
}

func TestPoolReportsErrorsAndPanics(t *testing.T) {
	pool := async.NewPool(4)
	boom := errors.New("boom")

	results := pool.Execute(context.Background(), []async.Task{
		{Name: "fails", Execute: func(ctx context.Context) (any, error) { return nil, boom }},
		{Name: "panics", Execute: func(ctx context.Context) (any, error) { panic("bad query") }},
		{Name: "ok", Execute: func(ctx context.Context) (any, error) { return "fine", nil }},
	})

	assert.ErrorIs(t, results["fails"].Err, boom)
	assert.ErrorContains(t, results["panics"].Err, "bad query")
	assert.NoError(t, results["ok"].Err)
}

func TestPoolStopsOnCancel(t *testing.T) {
	pool := async.NewPool(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results := pool.Execute(ctx, []async.Task{
		{Name: "slow", Execute: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	})

	if r, ok := results["slow"]; ok {
		assert.Error(t, r.Err)
	}
}

func TestPoolWithNoTasks(t *testing.T) {
	assert.Empty(t, async.NewPool(3).Execute(context.Background(), nil))
}
