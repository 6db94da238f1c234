package syncx

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// writerWeight is the semaphore weight held by a writer. Each reader holds a
// weight of one, so a writer excludes every reader and every other writer.
const writerWeight = 1 << 30

// RWMutex is a context-aware read/write mutex.
//
// Waiters are served in FIFO order, so a pending call to Lock() prevents later
// calls to RLock() from succeeding until the writer has had its turn.
type RWMutex struct {
	once sync.Once
	sem  *semaphore.Weighted
}

// Lock acquires an exclusive lock on the mutex.
//
// It blocks until the mutex is acquired, or ctx is canceled.
func (m *RWMutex) Lock(ctx context.Context) error {
	return m.acquire(ctx, writerWeight)
}

// Unlock releases the mutex.
//
// It panics if the mutex is not currently locked with Lock().
func (m *RWMutex) Unlock() {
	m.semaphore().Release(writerWeight)
}

// RLock acquires a shared lock on the mutex.
//
// It blocks until the mutex is acquired, or ctx is canceled.
func (m *RWMutex) RLock(ctx context.Context) error {
	return m.acquire(ctx, 1)
}

// RUnlock releases a shared lock on the mutex.
//
// It panics if the mutex is not currently locked with RLock().
func (m *RWMutex) RUnlock() {
	m.semaphore().Release(1)
}

func (m *RWMutex) acquire(ctx context.Context, n int64) error {
	// Acquire() may succeed with an already-canceled context if the semaphore
	// has room.
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.semaphore().Acquire(ctx, n)
}

func (m *RWMutex) semaphore() *semaphore.Weighted {
	m.once.Do(func() {
		m.sem = semaphore.NewWeighted(writerWeight)
	})

	return m.sem
}
