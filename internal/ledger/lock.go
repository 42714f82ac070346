package ledger

import "context"

// Unlock releases locks obtained from a Locker. Calling it more than once is safe.
type Unlock func()

// Locker serializes balance mutations per account id.
type Locker interface {
	// Lock blocks until every key is held or ctx is done. Implementations
	// acquire keys in a canonical order so overlapping calls cannot deadlock.
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}
