package gateway

import "sync"

// Unauthorized is published after the backend rejected a credential and the
// session for Key was cleared. LoginPath is where controllers should navigate.
type Unauthorized struct {
	Key       string
	Path      string
	LoginPath string
}

// Bus fans Unauthorized events out to subscribers synchronously, in
// subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Unauthorized)
	order  []int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Unauthorized))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Unauthorized)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Unauthorized) {
	b.mu.RLock()
	fns := make([]func(Unauthorized), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
