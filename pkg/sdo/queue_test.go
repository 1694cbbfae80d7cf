package sdo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueueRunsOneItemAtATime verifies items never overlap: each start
// appends "start" to a shared trace and its completion appends "end",
// so the trace must alternate start/end. The items are pushed from
// concurrent goroutines, so their submission order is not fixed and is
// not checked.
func TestQueueRunsOneItemAtATime(t *testing.T) {
	q := newQueue()
	const n = 20

	var mu sync.Mutex
	var trace []string
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := q.push(func() *TransferCtx {
				mu.Lock()
				trace = append(trace, "start")
				mu.Unlock()

				t := &TransferCtx{done: make(chan struct{}), active: true}
				go func() {
					time.Sleep(time.Millisecond)
					mu.Lock()
					trace = append(trace, "end")
					mu.Unlock()
					t.finish(transferResult{value: i})
				}()
				return t
			})
			_, _ = ctx.wait()
		}()
	}
	wg.Wait()

	require.Len(t, trace, 2*n)
	for i := 0; i < len(trace); i += 2 {
		assert.Equal(t, "start", trace[i])
		assert.Equal(t, "end", trace[i+1])
	}
}

// TestQueueBothWaitersObserveCompletion exercises the exact shape the
// engine relies on: the original push() caller and the queue's own
// progression goroutine both call wait() on the same TransferCtx.
func TestQueueBothWaitersObserveCompletion(t *testing.T) {
	q := newQueue()
	ctx := q.push(func() *TransferCtx {
		t := &TransferCtx{done: make(chan struct{}), active: true}
		go t.finish(transferResult{value: 42})
		return t
	})

	value, err := ctx.wait()
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	// A second, independent wait on the same context must also succeed
	// rather than block forever.
	value2, err2 := ctx.wait()
	require.NoError(t, err2)
	assert.Equal(t, 42, value2)
}
