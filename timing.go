// FILE: modconf/timing.go
package modconf

import "time"

// Core timing constants for production use.
// These define the fundamental timing behavior of the registry.
const (
	DefaultDebounce      = 500 * time.Millisecond // File change coalescence period
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration for watcher-triggered reloads
)
