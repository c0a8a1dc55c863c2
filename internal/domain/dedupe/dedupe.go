// Package dedupe tracks submission ids so a resent entry is stored once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 10_000

// Deduper records seen submission ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a submission whose write failed can be retried.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of remembered ids.
	Size() int64
}

// inMemoryDeduper remembers ids in insertion order. Bounded mode forgets the
// oldest id first; maxSize <= 0 keeps every id.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.seen, d.order.Remove(oldest).(string))
		}
	}
	d.seen[id] = d.order.PushBack(id)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
