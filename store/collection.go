package store

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"listingdesk/logging"
	"listingdesk/storage"
)

const tempPrefix = "tmp-"

// IsTemp reports whether id was assigned locally and not yet persisted.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// collection is the optimistic sync engine shared by every slice. Local
// state changes synchronously; the gateway call runs on its own goroutine
// and is undone if it fails.
type collection[T any] struct {
	name     string
	table    string
	idColumn string
	tempIDs  bool
	prepend  bool
	omit     []string
	less     func(a, b T) bool
	idOf     func(T) string
	setID    func(*T, string)
	tidy     func(*T)

	gw   storage.Gateway
	emit func(Event)

	mu    sync.RWMutex
	items []T
}

func (c *collection[T]) all() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

func (c *collection[T]) where(keep func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []T
	for _, item := range c.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) indexLocked(id string) int {
	for i, item := range c.items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}

func (c *collection[T]) sortLocked() {
	if c.less == nil {
		return
	}
	sort.SliceStable(c.items, func(i, j int) bool {
		return c.less(c.items[i], c.items[j])
	})
}

func (c *collection[T]) changed(id string) {
	c.emit(Event{Kind: EventChanged, Slice: c.name, ID: id})
}

func (c *collection[T]) rolledBack(id string, err error) {
	logging.Warnf("Store: %s %s rolled back: %v", c.name, id, err)
	c.emit(Event{Kind: EventRollback, Slice: c.name, ID: id, Err: err})
}

// setAll replaces the entire local collection.
func (c *collection[T]) setAll(items []T) {
	c.mu.Lock()
	c.items = slices.Clone(items)
	c.sortLocked()
	c.mu.Unlock()
	c.changed("")
}

// replaceWhere swaps the records matching scope for items. Temporary records
// are kept so in-flight creates can still reconcile.
func (c *collection[T]) replaceWhere(scope func(T) bool, items []T) {
	c.mu.Lock()
	next := make([]T, 0, len(c.items)+len(items))
	var pending []T
	for _, item := range c.items {
		switch {
		case !scope(item):
			next = append(next, item)
		case IsTemp(c.idOf(item)):
			pending = append(pending, item)
		}
	}
	if c.prepend {
		next = append(append(pending, items...), next...)
	} else {
		next = append(append(next, items...), pending...)
	}
	c.items = next
	c.sortLocked()
	c.mu.Unlock()
	c.changed("")
}

// dropWhere removes every record matching scope, temporary ones included.
func (c *collection[T]) dropWhere(scope func(T) bool) {
	c.mu.Lock()
	n := len(c.items)
	c.items = slices.DeleteFunc(slices.Clone(c.items), scope)
	dropped := n != len(c.items)
	c.mu.Unlock()
	if dropped {
		c.changed("")
	}
}

// upsertLocal merges patch into the matching record. No-op when absent.
func (c *collection[T]) upsertLocal(id string, patch storage.Record) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	next, err := merge(c.items[i], patch)
	if err != nil {
		c.mu.Unlock()
		logging.Warnf("Store: %s %s: bad local patch: %v", c.name, id, err)
		return false
	}
	items := slices.Clone(c.items)
	items[i] = next
	c.items = items
	c.sortLocked()
	c.mu.Unlock()
	c.changed(id)
	return true
}

func (c *collection[T]) fetch(ctx context.Context, filter storage.Filter, scope func(T) bool, order ...storage.Order) error {
	rows, err := c.gw.Select(ctx, c.table, filter, order...)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", c.name, err)
	}
	items, err := storage.DecodeAll[T](rows)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	if c.tidy != nil {
		for i := range items {
			c.tidy(&items[i])
		}
	}
	c.replaceWhere(scope, items)
	return nil
}

func (c *collection[T]) create(ctx context.Context, draft T) *Op {
	id := c.idOf(draft)
	if c.tempIDs {
		id = tempPrefix + uuid.NewString()
		c.setID(&draft, id)
	}

	record, err := storage.Encode(draft)
	if err != nil {
		return failedOp(fmt.Errorf("encode %s: %w", c.name, err))
	}
	if c.tempIDs {
		delete(record, c.idColumn)
	}
	for _, col := range c.omit {
		delete(record, col)
	}

	c.mu.Lock()
	if !c.tempIDs && c.indexLocked(id) >= 0 {
		c.mu.Unlock()
		return failedOp(fmt.Errorf("%s %s: %w", c.name, id, ErrExists))
	}
	if c.prepend {
		c.items = append([]T{draft}, c.items...)
	} else {
		c.items = append(slices.Clone(c.items), draft)
	}
	c.sortLocked()
	c.mu.Unlock()
	c.changed(id)

	op := newOp(id)
	go func() {
		persisted, err := c.insert(ctx, record)
		if err != nil {
			err = fmt.Errorf("create %s: %w", c.name, err)
			c.dropLocal(id)
			c.rolledBack(id, err)
			op.finish("", err)
			return
		}

		newID := c.idOf(persisted)
		if !c.swapLocal(id, persisted) && c.tempIDs {
			// Removed locally while the insert was in flight.
			if err := c.gw.Delete(ctx, c.table, storage.Filter{storage.Eq(c.idColumn, newID)}); err != nil {
				logging.Warnf("Store: %s %s: orphan delete failed: %v", c.name, newID, err)
			}
		}
		op.finish(newID, nil)
	}()
	return op
}

func (c *collection[T]) insert(ctx context.Context, record storage.Record) (T, error) {
	var persisted T
	rows, err := c.gw.Insert(ctx, c.table, record)
	if err != nil {
		return persisted, err
	}
	if len(rows) == 0 {
		return persisted, errEmptyResponse
	}
	if err = storage.Decode(rows[0], &persisted); err == nil && c.tidy != nil {
		c.tidy(&persisted)
	}
	return persisted, err
}

// swapLocal replaces the record with id by persisted at the same position.
func (c *collection[T]) swapLocal(id string, persisted T) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	items := slices.Delete(slices.Clone(c.items), i, i+1)
	if j := indexOf(items, c.idOf, c.idOf(persisted)); j >= 0 {
		// A fetch already brought the persisted row in.
		items[j] = persisted
	} else {
		items = slices.Insert(items, i, persisted)
	}
	c.items = items
	c.sortLocked()
	c.mu.Unlock()
	c.changed(c.idOf(persisted))
	return true
}

func (c *collection[T]) dropLocal(id string) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.items = slices.Delete(slices.Clone(c.items), i, i+1)
	c.mu.Unlock()
	c.changed(id)
}

// modify builds a patch from the current record under the lock, applies it
// locally and persists the same partial patch.
func (c *collection[T]) modify(ctx context.Context, id string, build func(cur T) (storage.Record, error)) *Op {
	if IsTemp(id) {
		return failedOp(fmt.Errorf("%s %s: %w", c.name, id, ErrPending))
	}

	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return failedOp(fmt.Errorf("%s %s: %w", c.name, id, ErrNotFound))
	}
	cur := c.items[i]
	patch, err := build(cur)
	if err != nil {
		c.mu.Unlock()
		return failedOp(err)
	}
	if len(patch) == 0 {
		c.mu.Unlock()
		op := newOp(id)
		op.finish(id, nil)
		return op
	}
	prior, err := storage.Encode(cur)
	if err == nil {
		cur, err = merge(cur, patch)
	}
	var written storage.Record
	if err == nil {
		written, err = storage.Encode(cur)
	}
	if err != nil {
		c.mu.Unlock()
		return failedOp(fmt.Errorf("patch %s %s: %w", c.name, id, err))
	}
	items := slices.Clone(c.items)
	items[i] = cur
	c.items = items
	c.sortLocked()
	c.mu.Unlock()
	c.changed(id)

	op := newOp(id)
	go func() {
		_, err := c.gw.Update(ctx, c.table, storage.Filter{storage.Eq(c.idColumn, id)}, patch)
		if err != nil {
			err = fmt.Errorf("update %s %s: %w", c.name, id, err)
			c.revert(id, patch, prior, written)
			c.rolledBack(id, err)
		}
		op.finish(id, err)
	}()
	return op
}

func (c *collection[T]) update(ctx context.Context, id string, patch storage.Record) *Op {
	return c.modify(ctx, id, func(T) (storage.Record, error) {
		return patch, nil
	})
}

// revert restores each patched field to its prior value, skipping fields a
// later edit has already changed again.
func (c *collection[T]) revert(id string, patch, prior, written storage.Record) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	cur, err := storage.Encode(c.items[i])
	if err != nil {
		c.mu.Unlock()
		return
	}
	restore := storage.Record{}
	for k := range patch {
		if reflect.DeepEqual(cur[k], written[k]) {
			restore[k] = prior[k]
		}
	}
	if len(restore) == 0 {
		c.mu.Unlock()
		return
	}
	next, err := merge(c.items[i], restore)
	if err != nil {
		c.mu.Unlock()
		return
	}
	items := slices.Clone(c.items)
	items[i] = next
	c.items = items
	c.sortLocked()
	c.mu.Unlock()
	c.changed(id)
}

// remove drops the record locally, deletes it remotely and then runs after.
// A failed delete puts the record back where it was.
func (c *collection[T]) remove(ctx context.Context, id string, after func(context.Context, T)) *Op {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return failedOp(fmt.Errorf("%s %s: %w", c.name, id, ErrNotFound))
	}
	item := c.items[i]
	c.items = slices.Delete(slices.Clone(c.items), i, i+1)
	c.mu.Unlock()
	c.changed(id)

	op := newOp(id)
	if IsTemp(id) {
		op.finish(id, nil)
		return op
	}

	go func() {
		err := c.gw.Delete(ctx, c.table, storage.Filter{storage.Eq(c.idColumn, id)})
		if err != nil {
			err = fmt.Errorf("remove %s %s: %w", c.name, id, err)
			c.restoreAt(i, item)
			c.rolledBack(id, err)
			op.finish(id, err)
			return
		}
		if after != nil {
			after(ctx, item)
		}
		op.finish(id, nil)
	}()
	return op
}

func (c *collection[T]) restoreAt(i int, item T) {
	c.mu.Lock()
	if c.indexLocked(c.idOf(item)) >= 0 {
		c.mu.Unlock()
		return
	}
	if i > len(c.items) {
		i = len(c.items)
	}
	c.items = slices.Insert(slices.Clone(c.items), i, item)
	c.sortLocked()
	c.mu.Unlock()
	c.changed(c.idOf(item))
}

func indexOf[T any](items []T, idOf func(T) string, id string) int {
	for i, item := range items {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}

// merge applies a column patch to a record through its json tags.
func merge[T any](item T, patch storage.Record) (T, error) {
	var out T
	rec, err := storage.Encode(item)
	if err != nil {
		return out, err
	}
	err = storage.Decode(storage.Merge(rec, patch), &out)
	return out, err
}
