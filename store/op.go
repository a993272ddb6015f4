package store

import "sync"

// Op tracks the persistence half of an optimistic mutation. The local change
// is already visible when the Op is returned.
type Op struct {
	done chan struct{}
	once sync.Once
	err  error
	id   string
}

func newOp(id string) *Op {
	return &Op{done: make(chan struct{}), id: id}
}

func failedOp(err error) *Op {
	op := newOp("")
	op.finish("", err)
	return op
}

func (o *Op) finish(id string, err error) {
	o.once.Do(func() {
		if id != "" {
			o.id = id
		}
		o.err = err
		close(o.done)
	})
}

// Done is closed once the backing store has answered.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the op settles and returns its error. A non-nil error
// means the local change was rolled back.
func (o *Op) Wait() error {
	<-o.done
	return o.err
}

// Err returns the settled error, or nil while still in flight.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// ID blocks until the op settles and returns the record id. For creates this
// is the persisted id on success.
func (o *Op) ID() string {
	<-o.done
	return o.id
}
