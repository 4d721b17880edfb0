package discovery

import "context"

// Source produces the set of endpoints visible at a root location.
// Implementations must be safe for concurrent use and idempotent for
// unchanged inputs: scanning the same unchanged root twice yields the
// same endpoint set in the same order.
type Source interface {
	// Scan walks the root and returns every discovered endpoint, sorted
	// by path template. Failures on individual route definitions are
	// logged and skipped; Scan errors only when the root itself is
	// unreadable.
	Scan(ctx context.Context) ([]Endpoint, error)

	// Root identifies the scanned location, for logging.
	Root() string
}
