package dlock

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocker implements Locker with session-scoped advisory locks. The
// lock is bound to a dedicated pooled connection, which is pinned for the
// whole hold so the session stays alive across the solver round-trip.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

// NewPostgresLocker creates a Postgres-backed locker.
func NewPostgresLocker(pool *pgxpool.Pool) *PostgresLocker {
	return &PostgresLocker{pool: pool}
}

var _ Locker = (*PostgresLocker)(nil)

type postgresLock struct {
	conn *pgxpool.Conn
	key  int64
}

// TryAcquire attempts pg_try_advisory_lock on a dedicated connection.
func (l *PostgresLocker) TryAcquire(ctx context.Context, key int64) (Lock, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	return &postgresLock{conn: conn, key: key}, true, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
func (pl *postgresLock) Release(ctx context.Context) error {
	defer pl.conn.Release()
	_, err := pl.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, pl.key)
	return err
}
