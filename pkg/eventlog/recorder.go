package eventlog

import (
	"context"
	"sync"

	"focal/pkg/eventbus"
)

// Recorder drains a bus subscription into the journal on a background
// goroutine. Append failures are counted, not fatal: a full disk must not
// stall reconciliation.
type Recorder struct {
	log *Log
	bus *eventbus.Bus
	ch  <-chan eventbus.Event

	mu      sync.Mutex
	dropped int

	done chan struct{}
}

// NewRecorder subscribes to bus and starts recording into log. Stop the
// recorder before closing the log.
func NewRecorder(log *Log, bus *eventbus.Bus) *Recorder {
	r := &Recorder{
		log:  log,
		bus:  bus,
		ch:   bus.Subscribe(),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for evt := range r.ch {
		if err := r.log.Append(context.Background(), evt); err != nil {
			r.mu.Lock()
			r.dropped++
			r.mu.Unlock()
		}
	}
}

// Dropped returns the number of events that failed to persist.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stop unsubscribes from the bus and waits for the drain goroutine to
// finish flushing buffered events.
func (r *Recorder) Stop() {
	r.bus.Unsubscribe(r.ch)
	<-r.done
}
