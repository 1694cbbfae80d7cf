package sdo

import "sync"

// startFunc performs the side effect of actually beginning a transfer
// (building the TransferCtx, registering it in the owning FSM's
// transfer index, and sending the initiate frame) and returns the
// context the caller will wait on. It runs only once the item reaches
// the head of its peer's Queue.
type startFunc func() *TransferCtx

type queueItem struct {
	start startFunc
	ready chan *TransferCtx
}

// Queue is a per-peer FIFO of pending transfer thunks. At most one is
// active ("pending") at a time; on completion the next item starts.
// Submission order is preserved, and only one transfer per peer is ever
// in flight.
type Queue struct {
	mu      sync.Mutex
	pending bool
	items   []*queueItem
}

func newQueue() *Queue {
	return &Queue{}
}

// push appends start to the queue and returns once it is this item's
// turn to run, i.e. once start has actually been invoked. The caller
// then calls TransferCtx.wait on the returned context to block for
// completion.
func (q *Queue) push(start startFunc) *TransferCtx {
	item := &queueItem{start: start, ready: make(chan *TransferCtx, 1)}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.pop()
	return <-item.ready
}

// pop starts the head of the queue if idle, and arranges for the next
// item to start once the current transfer resolves, rejects, or aborts.
func (q *Queue) pop() {
	q.mu.Lock()
	if q.pending || len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.pending = true
	q.mu.Unlock()

	ctx := item.start()
	item.ready <- ctx

	go func() {
		ctx.wait()
		q.mu.Lock()
		q.pending = false
		q.mu.Unlock()
		q.pop()
	}()
}
