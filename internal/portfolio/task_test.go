package portfolio

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_RunsImmediatelyAndRepeats(t *testing.T) {
	var runs atomic.Int32
	task := Every(context.Background(), 5*time.Millisecond, func(context.Context) { runs.Add(1) })

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	task.Cancel()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestEvery_StopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := Every(ctx, time.Hour, func(context.Context) {})
	cancel()

	select {
	case <-task.done:
	case <-time.After(time.Second):
		t.Fatal("task did not stop")
	}
	task.Cancel()
}
