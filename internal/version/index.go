package version

import "context"

// Index persists version documents and the per-symbol version-number
// counter. Implementations must make NextVersionNumber atomic across
// concurrent writers to the same symbol.
type Index interface {
	// NextVersionNumber atomically reserves and returns the next version
	// number for symbol, starting at 1. Numbers are strictly increasing
	// but not gap-free: a writer that reserves a number and then fails
	// before Insert leaves a gap.
	NextVersionNumber(ctx context.Context, symbol string) (int64, error)

	// CurrentCounter returns the counter's present value without advancing
	// it (0 if symbol has never reserved a number). Used by fsck to detect
	// drift without mutating state.
	CurrentCounter(ctx context.Context, symbol string) (int64, error)

	// AdvanceCounterTo raises the counter to at least n, a no-op if it is
	// already >= n. Used by fsck to repair CounterDrift.
	AdvanceCounterTo(ctx context.Context, symbol string, n int64) error

	// Insert durably records v. This is the single step after which v
	// becomes visible to readers: a reader sees either a full version or
	// no version at all.
	Insert(ctx context.Context, v Version) error

	// Read resolves asOf to a single version. Returns
	// chronoerr.ErrNoDataFound if no version matches.
	Read(ctx context.Context, symbol string, asOf AsOf) (Version, error)

	// ListVersions returns every version of symbol, ascending by number.
	ListVersions(ctx context.Context, symbol string) ([]Version, error)

	// DeleteVersion removes one version document. Callers are
	// responsible for releasing the version's segments first (or
	// accepting the orphan, recoverable by fsck).
	DeleteVersion(ctx context.Context, symbol string, number int64) error

	// ListSymbols returns every distinct symbol with at least one version.
	ListSymbols(ctx context.Context) ([]string, error)

	// MaxVersionNumber returns the highest version_number ever inserted
	// for symbol, independent of the counter document. Used by fsck to
	// detect a counter that has fallen behind.
	MaxVersionNumber(ctx context.Context, symbol string) (int64, error)
}
