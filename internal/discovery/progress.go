package discovery

import (
	"sync"
	"time"
)

// ProgressEvent is one stage transition of a running scan.
type ProgressEvent struct {
	ScanID    string    `json:"scan_id"`
	UserID    string    `json:"user_id"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressBus fans scan progress out to subscribers. Slow subscribers drop
// events rather than stall the pipeline.
type ProgressBus struct {
	mu   sync.RWMutex
	subs map[int]chan ProgressEvent
	next int
}

func NewProgressBus() *ProgressBus {
	return &ProgressBus{subs: make(map[int]chan ProgressEvent)}
}

// Subscribe returns a buffered event channel and a cancel func that closes it.
func (b *ProgressBus) Subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan ProgressEvent, 16)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *ProgressBus) Publish(ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
