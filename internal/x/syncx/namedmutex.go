package syncx

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// UnlockFunc is a function used to unlock a previously locked mutex.
type UnlockFunc func()

// MutexNamespace is a set of named, context-aware mutexes.
//
// A mutex exists only while it is held or waited upon.
type MutexNamespace struct {
	m       sync.Mutex
	mutexes map[string]*namedMutex
}

type namedMutex struct {
	sem  *semaphore.Weighted
	refs int // guarded by MutexNamespace.m
}

// Lock acquires an exclusive lock on the mutex with the given name.
//
// It returns an unlock function which must be called to unlock the mutex. The
// unlock function is idempotent.
func (ns *MutexNamespace) Lock(ctx context.Context, n string) (UnlockFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := ns.ref(n)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		ns.unref(n, m)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.sem.Release(1)
			ns.unref(n, m)
		})
	}, nil
}

func (ns *MutexNamespace) ref(n string) *namedMutex {
	ns.m.Lock()
	defer ns.m.Unlock()

	if ns.mutexes == nil {
		ns.mutexes = map[string]*namedMutex{}
	}

	m, ok := ns.mutexes[n]
	if !ok {
		m = &namedMutex{sem: semaphore.NewWeighted(1)}
		ns.mutexes[n] = m
	}

	m.refs++

	return m
}

func (ns *MutexNamespace) unref(n string, m *namedMutex) {
	ns.m.Lock()
	defer ns.m.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(ns.mutexes, n)
	}
}
