package address

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs only the last function scheduled within the delay window.
type Debouncer struct {
	delay time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Lookup debounces keystroke-driven searches. Results for a query are
// delivered only if no newer query was issued while it was in flight.
type Lookup struct {
	provider Provider
	debounce *Debouncer

	mu  sync.Mutex
	seq uint64
}

func NewLookup(provider Provider, delay time.Duration) *Lookup {
	return &Lookup{provider: provider, debounce: NewDebouncer(delay)}
}

// Suggest schedules a search for query and calls deliver with its result.
func (l *Lookup) Suggest(ctx context.Context, query string, deliver func([]Suggestion, error)) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	l.debounce.Do(func() {
		out, err := l.provider.Search(ctx, query)
		l.mu.Lock()
		latest := seq == l.seq
		l.mu.Unlock()
		if latest {
			deliver(out, err)
		}
	})
}

// Stop drops any pending search.
func (l *Lookup) Stop() {
	l.mu.Lock()
	l.seq++
	l.mu.Unlock()
	l.debounce.Cancel()
}
