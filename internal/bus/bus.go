package bus

import (
	"fmt"
	"sync"

	applogger "TrendPulse/pkg/logger"
)

// Handler consumes one message. Handlers must not block; indicator and
// regime math runs inline during dispatch, so end-to-end latency is the
// sum of subscriber costs for a kind.
type Handler func(Message)

type subscriber struct {
	id int
	fn Handler
}

// Bus is an in-process publish/subscribe router. Dispatch is synchronous
// and in registration order per kind; delivery order across kinds is not
// guaranteed. The bus keeps no history, so late subscribers must request
// initial state from the owning component.
type Bus struct {
	mu     sync.Mutex
	subs   map[Kind][]subscriber
	nextID int
	closed bool
	log    *applogger.Logger
}

// New creates a Bus. The logger may be nil.
func New(log *applogger.Logger) *Bus {
	return &Bus{subs: make(map[Kind][]subscriber), log: log}
}

// Register subscribes fn to messages of the given kind and returns an
// unsubscribe function. Unsubscribing twice is a no-op.
func (b *Bus) Register(kind Kind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[kind]
		for i, s := range list {
			if s.id == id {
				b.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Send dispatches msg synchronously to every handler registered for its
// kind at the time of the call. A panicking handler is recovered and
// logged; it never prevents delivery to subsequent handlers or corrupts
// the publisher's control flow. Sends after Close are dropped.
func (b *Bus) Send(msg Message) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	list := b.subs[msg.Kind()]
	// Snapshot so handlers can register/unsubscribe during dispatch.
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, s := range snapshot {
		b.dispatch(s, msg)
	}
}

func (b *Bus) dispatch(s subscriber, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			if b.log != nil {
				b.log.Error("bus handler panic",
					applogger.String("kind", string(msg.Kind())),
					applogger.String("from", msg.Sender()),
					applogger.Error(fmt.Errorf("%v", r)))
			}
		}
	}()
	s.fn(msg)
}

// Close stops accepting further sends. In-flight dispatch completes.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
