package stream

import (
	"sync"
)

// resultSlot is a reserved position in a session's output order. It is
// completed exactly once with the text to deliver.
type resultSlot struct {
	final bool
	done  chan string
}

func (r *resultSlot) complete(text string) {
	r.done <- text
}

// orderedQueue delivers completed slots in reservation order. Reservation
// never blocks and the queue is unbounded; a single goroutine runs the
// delivery loop.
type orderedQueue struct {
	mu    sync.Mutex
	slots []*resultSlot

	wake chan struct{}
	quit chan struct{}
}

func newOrderedQueue() *orderedQueue {
	return &orderedQueue{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

func (q *orderedQueue) reserve(final bool) *resultSlot {
	slot := &resultSlot{
		final: final,
		done:  make(chan string, 1),
	}

	q.mu.Lock()
	q.slots = append(q.slots, slot)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return slot
}

// pending returns the number of reserved slots not yet delivered
func (q *orderedQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.slots)
}

// run waits for the head slot, hands its event to deliver, and repeats
// until stop is called. Slots still pending at stop are discarded.
func (q *orderedQueue) run(deliver func(Event)) {
	for {
		q.mu.Lock()
		if len(q.slots) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}
		head := q.slots[0]
		q.mu.Unlock()

		select {
		case text := <-head.done:
			q.mu.Lock()
			q.slots[0] = nil
			q.slots = q.slots[1:]
			q.mu.Unlock()

			select {
			case <-q.quit:
				return
			default:
			}

			deliver(Event{Text: text, Final: head.final})
		case <-q.quit:
			return
		}
	}
}

func (q *orderedQueue) stop() {
	close(q.quit)
}
