package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	t.Run("执行全部任务", func(t *testing.T) {
		p := NewWorkerPool(4, 128, nil)
		p.Start(context.Background())

		var (
			count int32
			wg    sync.WaitGroup
		)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			require.True(t, p.TrySubmit(func() {
				defer wg.Done()
				atomic.AddInt32(&count, 1)
			}))
		}
		wg.Wait()
		p.Stop()

		assert.Equal(t, int32(100), count)
	})

	t.Run("panic不会终止工作协程", func(t *testing.T) {
		p := NewWorkerPool(1, 4, nil)
		p.Start(context.Background())

		done := make(chan struct{})
		require.True(t, p.TrySubmit(func() { panic("boom") }))
		require.True(t, p.TrySubmit(func() { close(done) }))
		<-done
		p.Stop()
	})

	t.Run("停止后拒绝任务", func(t *testing.T) {
		p := NewWorkerPool(1, 1, nil)
		p.Start(context.Background())
		p.Stop()
		p.Stop()

		assert.False(t, p.TrySubmit(func() {}))
	})

	t.Run("Stop执行完已排队的任务", func(t *testing.T) {
		p := NewWorkerPool(1, 8, nil)
		p.Start(context.Background())

		gate := make(chan struct{})
		var count int32
		require.True(t, p.TrySubmit(func() {
			<-gate
			atomic.AddInt32(&count, 1)
		}))
		for i := 0; i < 5; i++ {
			require.True(t, p.TrySubmit(func() { atomic.AddInt32(&count, 1) }))
		}

		stopped := make(chan struct{})
		go func() {
			p.Stop()
			close(stopped)
		}()
		close(gate)
		<-stopped

		assert.Equal(t, int32(6), atomic.LoadInt32(&count))
	})

	t.Run("队列满时TrySubmit立即返回", func(t *testing.T) {
		p := NewWorkerPool(1, 1, nil)
		// 未启动，队列只能容纳一个任务
		assert.True(t, p.TrySubmit(func() {}))
		assert.False(t, p.TrySubmit(func() {}))
	})
}
