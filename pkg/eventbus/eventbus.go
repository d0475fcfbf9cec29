// Package eventbus provides the typed publish/subscribe channel used to
// announce context lifecycle and reconciliation milestones to observers.
// Subscribers receive events on buffered channels; emitting never blocks,
// and a subscriber that falls behind loses events rather than stalling the
// reconciliation path.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event topic.
type Kind string

// Event kinds. The four update_* kinds trace one reconciliation pass;
// render_finished is always emitted before update_finished for the same
// pass. The repository kinds announce pooled context state changes.
const (
	KindUpdateScheduled      Kind = "update_scheduled"
	KindUpdateBegun          Kind = "update_begun"
	KindRenderFinished       Kind = "render_finished"
	KindUpdateFinished       Kind = "update_finished"
	KindRepositoryUpdated    Kind = "repository_updated"
	KindWorkdirOrHeadChanged Kind = "workdir_or_head_changed"
	KindRepositoryDestroyed  Kind = "repository_destroyed"
)

// Event is a single bus message. Seq is a monotonic per-bus sequence number;
// events for one workdir are delivered in the order its state changed.
type Event struct {
	ID      uuid.UUID
	Seq     uint64
	Kind    Kind
	Workdir string
	Time    time.Time
}

// subscriberBuffer is the per-subscriber channel depth. Deep enough to absorb
// a full reconciliation burst without drops.
const subscriberBuffer = 64

// Bus fans events out to subscriber channels. Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool

	seq     atomic.Uint64
	nowFunc func() time.Time
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{nowFunc: time.Now}
}

// Subscribe registers a new subscriber and returns its receive channel. The
// channel is closed by Unsubscribe or Close.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown channels
// are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	if ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if (<-chan Event)(sub) == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Emit publishes an event of the given kind for workdir (empty for events
// not tied to a directory). Delivery is non-blocking: a subscriber with a
// full buffer misses the event. Emit on a closed bus is a no-op.
func (b *Bus) Emit(kind Kind, workdirPath string) {
	evt := Event{
		ID:      uuid.New(),
		Seq:     b.seq.Add(1),
		Kind:    kind,
		Workdir: workdirPath,
		Time:    b.nowFunc(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub <- evt:
		default: // subscriber buffer full, drop
		}
	}
}

// Close shuts the bus down and closes every subscriber channel. Further
// Emit and Subscribe calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
