// Package config persists the hub's control-plane defaults.
//
// Store is not data-plane state: it never touches libraries, versions,
// segments, or chunks. It remembers the defaults hub.New loads at startup,
// so an operator's quota/grace-period/segment-size tuning survives a
// process restart even though the libraries themselves live in MongoDB.
package config

import "context"

// Store persists and loads the hub's bootstrap defaults.
type Store interface {
	// Load reads the bootstrap config. Returns nil if none has been saved.
	Load(ctx context.Context) (*Config, error)

	// Save persists cfg, replacing whatever was saved before.
	Save(ctx context.Context, cfg *Config) error
}

// Config is the hub's bootstrap configuration: the defaults new libraries
// are initialized with absent an explicit `initialize_library` override.
type Config struct {
	// DefaultQuotaBytes is the storage quota new libraries start with.
	// Zero means unlimited (quota.Unlimited).
	DefaultQuotaBytes int64

	// DefaultGracePeriodSeconds is library.Options.PruneGracePeriod for new
	// version-store libraries, in seconds.
	DefaultGracePeriodSeconds int64

	// DefaultSegmentTargetSize is chunking's target segment size in bytes
	// for new version-store libraries.
	DefaultSegmentTargetSize int

	// DefaultTickTargetRowCount is tickstore's target rows-per-chunk for
	// new tick libraries grouped by row count rather than calendar period.
	DefaultTickTargetRowCount int

	// Libraries records every library the hub has initialized. hub.New
	// reads only the defaults back; it does not recreate the registry from
	// this list, so a restarted hub starts with no libraries registered.
	Libraries []LibraryConfig
}

// LibraryConfig is one entry of Config.Libraries.
type LibraryConfig struct {
	Name string
	Kind string // "version", "tick", or "toplevel", matching hub.Kind.String()
}
