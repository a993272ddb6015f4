package store

import "sync"

type EventKind int

const (
	EventChanged EventKind = iota
	EventRollback
	EventSession
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventRollback:
		return "rollback"
	case EventSession:
		return "session"
	}
	return "unknown"
}

// Event tells subscribers which slice changed. Rollback events carry the
// persistence error that caused them.
type Event struct {
	Kind  EventKind
	Slice string
	ID    string
	Err   error
}

// Slice names
const (
	SliceProfile      = "profile"
	SliceProperties   = "properties"
	SliceDetails      = "details"
	SliceFeatures     = "features"
	SliceEnhancements = "enhancements"
	SliceInspections  = "inspections"
	SliceSession      = "session"
)

type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func newHub() *hub {
	return &hub{subs: make(map[int]func(Event))}
}

func (h *hub) subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// publish calls subscribers outside the lock so they may read the store.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
