// Package dlock provides a distributed try-lock for cluster-wide singleton
// coordination. Correctness must hold across service instances, so backends
// are store-level primitives (Postgres session advisory locks, Redis NX
// keys), never process-local mutexes.
package dlock

import "context"

// Lock is a held singleton lock. Release must be called on every exit path,
// including failures.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out non-blocking singleton locks keyed by a 64-bit key.
// A false result from TryAcquire is a normal outcome, not an error.
type Locker interface {
	TryAcquire(ctx context.Context, key int64) (Lock, bool, error)
}
