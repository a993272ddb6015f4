package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"listingdesk/storage"
)

type gatewayCall struct {
	Op         string
	Collection string
	Rows       int
	Filter     storage.Filter
}

// memGateway is an in-memory storage.Gateway. Mutations wait on gate when
// it is set and fail with failWith when it is set.
type memGateway struct {
	mu       sync.Mutex
	tables   map[string][]storage.Record
	calls    []gatewayCall
	seq      int
	gate     chan struct{}
	failWith error
}

func newMemGateway() *memGateway {
	return &memGateway{tables: make(map[string][]storage.Record)}
}

func (g *memGateway) seed(collection string, rows ...storage.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		g.tables[collection] = append(g.tables[collection], normalize(r))
	}
}

func (g *memGateway) rows(collection string) []storage.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]storage.Record(nil), g.tables[collection]...)
}

func (g *memGateway) count(op, collection string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op && c.Collection == collection {
			n++
		}
	}
	return n
}

func (g *memGateway) lastCall(op string) gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].Op == op {
			return g.calls[i]
		}
	}
	return gatewayCall{}
}

func (g *memGateway) setFail(err error) {
	g.mu.Lock()
	g.failWith = err
	g.mu.Unlock()
}

func (g *memGateway) wait(ctx context.Context) error {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failWith
}

func (g *memGateway) record(op, collection string, rows int, filter storage.Filter) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{Op: op, Collection: collection, Rows: rows, Filter: filter})
	g.mu.Unlock()
}

func (g *memGateway) Insert(ctx context.Context, collection string, records ...storage.Record) ([]storage.Record, error) {
	g.record("insert", collection, len(records), nil)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]storage.Record, 0, len(records))
	for _, r := range records {
		r = normalize(r)
		if _, ok := r["id"]; !ok && collection != storage.CollectionDetails {
			g.seq++
			r["id"] = fmt.Sprintf("%s-%d", collection, g.seq)
		}
		if collection == storage.CollectionProperties {
			r["created_at"] = fmt.Sprintf("2025-01-01T00:00:%02dZ", g.seq%60)
		}
		g.tables[collection] = append(g.tables[collection], r)
		out = append(out, storage.Merge(r, nil))
	}
	return out, nil
}

func (g *memGateway) Update(ctx context.Context, collection string, filter storage.Filter, patch storage.Record) ([]storage.Record, error) {
	g.record("update", collection, 0, filter)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	patch = normalize(patch)
	var out []storage.Record
	for i, r := range g.tables[collection] {
		if matches(r, filter) {
			g.tables[collection][i] = storage.Merge(r, patch)
			out = append(out, g.tables[collection][i])
		}
	}
	return out, nil
}

func (g *memGateway) Delete(ctx context.Context, collection string, filter storage.Filter) error {
	g.record("delete", collection, 0, filter)
	if err := g.wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.tables[collection][:0:0]
	for _, r := range g.tables[collection] {
		if !matches(r, filter) {
			kept = append(kept, r)
		}
	}
	g.tables[collection] = kept
	return nil
}

func (g *memGateway) Select(ctx context.Context, collection string, filter storage.Filter, order ...storage.Order) ([]storage.Record, error) {
	g.record("select", collection, 0, filter)
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []storage.Record
	for _, r := range g.tables[collection] {
		if matches(r, filter) {
			out = append(out, storage.Merge(r, nil))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range order {
			a, b := fmt.Sprint(out[i][o.Column]), fmt.Sprint(out[j][o.Column])
			if a == b {
				continue
			}
			if o.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
	return out, nil
}

func matches(r storage.Record, filter storage.Filter) bool {
	for _, c := range filter {
		v := fmt.Sprint(r[c.Column])
		switch c.Op {
		case "in":
			found := false
			for _, want := range c.Values {
				if v == want {
					found = true
				}
			}
			if !found {
				return false
			}
		default:
			if v != fmt.Sprint(c.Value) {
				return false
			}
		}
	}
	return true
}

// normalize round-trips through JSON so stored values look like decoded
// responses.
func normalize(r storage.Record) storage.Record {
	data, _ := json.Marshal(r)
	var out storage.Record
	_ = json.Unmarshal(data, &out)
	if out == nil {
		out = storage.Record{}
	}
	return out
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string]int
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string]int)}
}

func (m *memObjects) Upload(ctx context.Context, bucket, p string, body io.Reader, contentType string) (string, error) {
	data, _ := io.ReadAll(body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+p] = len(data)
	return "https://cdn.test/storage/v1/object/public/" + bucket + "/" + p, nil
}

func (m *memObjects) Remove(ctx context.Context, bucket string, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, bucket+"/"+p)
	}
	return nil
}

func (m *memObjects) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectEntry
	for k, size := range m.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix+"/") {
			out = append(out, storage.ObjectEntry{Path: strings.TrimPrefix(k, bucket+"/"), Size: int64(size)})
		}
	}
	return out, nil
}

func (m *memObjects) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type memSessions struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSessions() *memSessions {
	return &memSessions{data: make(map[string][]byte)}
}

func (m *memSessions) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memSessions) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memSessions) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// panicGateway fails the test on any network use.
type panicGateway struct{}

func (panicGateway) Insert(context.Context, string, ...storage.Record) ([]storage.Record, error) {
	panic("unexpected gateway call")
}

func (panicGateway) Update(context.Context, string, storage.Filter, storage.Record) ([]storage.Record, error) {
	panic("unexpected gateway call")
}

func (panicGateway) Delete(context.Context, string, storage.Filter) error {
	panic("unexpected gateway call")
}

func (panicGateway) Select(context.Context, string, storage.Filter, ...storage.Order) ([]storage.Record, error) {
	panic("unexpected gateway call")
}
