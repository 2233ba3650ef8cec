// Package lock provides a named mutual-exclusion primitive used by the
// daily-import driver. The lock is a whole-system guard independent of
// the run ledger's uniqueness constraint: it stops two driver invocations
// from racing at all, while the ledger still prevents duplicate logical
// imports if the lock is bypassed.
package lock

import (
	"context"
	"errors"
)

// ErrLockHeld is returned by TryAcquire when another session holds the
// named resource.
var ErrLockHeld = errors.New("named lock is held by another session")

// ReleaseFunc releases a previously acquired lock.
type ReleaseFunc func(ctx context.Context) error

// Locker is a session-scoped advisory lock keyed by a resource name.
type Locker interface {
	// Acquire blocks until the named resource is held or ctx is done.
	Acquire(ctx context.Context, name string) (ReleaseFunc, error)

	// TryAcquire returns ErrLockHeld immediately if the resource is taken.
	TryAcquire(ctx context.Context, name string) (ReleaseFunc, error)
}
