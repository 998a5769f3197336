package batch

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// QueueProgress is the queue-level notification payload, emitted after every
// entry transition.
type QueueProgress struct {
	Completed int
	Total     int
}

// EntryTransition is the per-entry notification payload.
type EntryTransition struct {
	ID     string
	Status Status
	// Err carries the compute failure when Status is StatusFailed.
	Err error
}

// event pairs the two notification payloads captured atomically at transition
// time.
type event struct {
	entry EntryTransition
	queue QueueProgress
}

// notifier delivers events to the caller's callbacks in transition order on a
// dedicated goroutine, so a slow or panicking observer can never stall the
// scheduler or corrupt group state.
type notifier struct {
	onEntry func(EntryTransition)
	onQueue func(QueueProgress)

	mu       sync.Mutex
	queue    []event
	draining bool
}

// publish enqueues events and starts the drain goroutine if none is running.
func (n *notifier) publish(events ...event) {
	if n.onEntry == nil && n.onQueue == nil {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, events...)
	if !n.draining && len(n.queue) > 0 {
		n.draining = true
		go n.drain()
	}
	n.mu.Unlock()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.draining = false
			n.mu.Unlock()
			return
		}
		ev := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.deliver(ev)
	}
}

// deliver invokes both callbacks, entry first. Observer panics are logged and
// swallowed; notifications are best-effort side effects.
func (n *notifier) deliver(ev event) {
	if n.onEntry != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warn().Interface("panic", r).Str("entry", ev.entry.ID).Msg("Entry notification callback panicked")
				}
			}()
			n.onEntry(ev.entry)
		}()
	}
	if n.onQueue != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warn().Interface("panic", r).Msg("Queue notification callback panicked")
				}
			}()
			n.onQueue(ev.queue)
		}()
	}
}
