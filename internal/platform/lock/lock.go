package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the wait budget.
var ErrTimeout = errors.New("lock: wait timeout")

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func(ctx context.Context) error

// Locker grants exclusive access per key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
	Backend() string
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Entries are dropped once no holder or
// waiter references them.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
	wait time.Duration
}

// NewLocal returns a keyed mutex. wait <= 0 means wait until ctx is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{keys: map[string]*entry{}, wait: wait}
}

func (l *Local) Backend() string { return "local" }

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e := l.ref(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	case <-timeout:
		l.unref(key)
		return nil, ErrTimeout
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-e.ch
			l.unref(key)
		})
		return nil
	}, nil
}

// Len reports how many keys are currently tracked.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *Local) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.keys, key)
	}
}

// SessionKey namespaces assessment locks.
func SessionKey(assessmentID string) string {
	return "diagnosis:session:" + assessmentID
}
