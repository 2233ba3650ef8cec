package lock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgLocker implements Locker with Postgres session advisory locks. Each
// acquisition pins one pool connection for the lifetime of the lock so
// the session holding the lock is the session that releases it.
type pgLocker struct {
	pool *pgxpool.Pool
}

// NewPostgresLocker creates an advisory-lock backed Locker.
func NewPostgresLocker(pool *pgxpool.Pool) Locker {
	return &pgLocker{pool: pool}
}

// lockKey maps a resource name onto the advisory lock keyspace. FNV-64a
// is stable across processes, which is all the key needs to be.
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (l *pgLocker) Acquire(ctx context.Context, name string) (ReleaseFunc, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock %q: %w", name, err)
	}

	key := lockKey(name)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire advisory lock %q: %w", name, err)
	}

	return l.releaseFunc(conn, name, key), nil
}

func (l *pgLocker) TryAcquire(ctx context.Context, name string) (ReleaseFunc, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock %q: %w", name, err)
	}

	key := lockKey(name)
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to try advisory lock %q: %w", name, err)
	}
	if !acquired {
		conn.Release()
		return nil, fmt.Errorf("lock %q: %w", name, ErrLockHeld)
	}

	return l.releaseFunc(conn, name, key), nil
}

func (l *pgLocker) releaseFunc(conn *pgxpool.Conn, name string, key int64) ReleaseFunc {
	return func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			return fmt.Errorf("failed to release advisory lock %q: %w", name, err)
		}
		return nil
	}
}
