package config

import "context"

// DefaultConfig returns the bootstrap configuration for first-run: no
// libraries yet, unlimited quota, and the package defaults for grace
// period and segment sizing.
func DefaultConfig() *Config {
	return &Config{
		DefaultGracePeriodSeconds: 600,
		DefaultSegmentTargetSize:  2 << 20,
		DefaultTickTargetRowCount: 100_000,
	}
}

// Bootstrap writes the default configuration to store if none exists yet.
// Call this when Load returns nil.
func Bootstrap(ctx context.Context, store Store) error {
	existing, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return store.Save(ctx, DefaultConfig())
}
