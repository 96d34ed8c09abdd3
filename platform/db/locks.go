package db

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
)

// Singleton advisory-lock keys. These live in their own range so they can
// never collide with hashed fine-grained keys, whose top bits come from FNV.
const (
	// LockKeyReplanWorker elects the replanning worker leader for one cycle.
	// Transaction-scoped: released automatically on commit or rollback.
	LockKeyReplanWorker int64 = 7201

	// LockKeyRoutePlanner guards "is a plan run already in flight".
	// Session-scoped: held across the solver round-trip and released
	// explicitly on every exit path.
	LockKeyRoutePlanner int64 = 7202
)

// AdvisoryKey hashes an arbitrary string into a namespaced 64-bit advisory
// lock key. The namespace keeps phone locks and event-id locks in disjoint
// keyspaces.
func AdvisoryKey(namespace, value string) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return int64(h.Sum64())
}

// AcquireXactLock blocks until the transaction-scoped advisory lock for key
// is held by tx. The lock is released automatically when tx ends.
func AcquireXactLock(ctx context.Context, tx pgx.Tx, key int64) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}

// TryXactLock attempts the transaction-scoped advisory lock for key without
// blocking. A false result is a normal outcome, not an error.
func TryXactLock(ctx context.Context, tx pgx.Tx, key int64) (bool, error) {
	var acquired bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, key).Scan(&acquired); err != nil {
		return false, err
	}
	return acquired, nil
}
