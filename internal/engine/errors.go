package engine

import "github.com/bundlewrap/blockwart/internal/deps"

// ConfigurationError and ItemDependencyError are raised by the dependency
// resolver during preparation; aliased here so callers outside
// internal/deps can name them as the engine's own error taxonomy without
// an extra import.
type ConfigurationError = deps.ConfigurationError
type ItemDependencyError = deps.ItemDependencyError
