// Package observability lets a binary attach metrics or tracing to the
// degradation stack without the library packages importing a backend.
//
// Three hook categories exist, each with a no-op default:
//   - DegradeHooks: one event pair per pipeline invocation
//   - SweepHooks: one event pair per external super-resolution run
//   - CacheHooks: sweep result cache hits, misses and writes
//
// Register replacements once at startup, before any work begins:
//
//	func main() {
//	    observability.SetDegradeHooks(&promDegradeHooks{})
//	    // ... run application
//	}
//
// Library code emits events through the getters:
//
//	observability.Degrade().OnDegradeStart(ctx, size, kind, strategy)
//	// ... degrade ...
//	observability.Degrade().OnDegradeComplete(ctx, size, kind, strategy, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Degrade Hooks
// =============================================================================

// DegradeHooks receives events from the degradation pipeline. size is
// formatted WxH and strategy is the consistency strategy name.
type DegradeHooks interface {
	OnDegradeStart(ctx context.Context, size, kind, strategy string)
	OnDegradeComplete(ctx context.Context, size, kind, strategy string, duration time.Duration, err error)
}

// =============================================================================
// Sweep Hooks
// =============================================================================

// SweepHooks receives events from the external process runner.
type SweepHooks interface {
	// OnPointStart records the launch of one sweep point.
	OnPointStart(ctx context.Context, point string)

	// OnPointComplete records its exit. exitCode is -1 when the process
	// never started.
	OnPointComplete(ctx context.Context, point string, exitCode int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopDegradeHooks is a no-op implementation of DegradeHooks.
type NoopDegradeHooks struct{}

func (NoopDegradeHooks) OnDegradeStart(context.Context, string, string, string) {}
func (NoopDegradeHooks) OnDegradeComplete(context.Context, string, string, string, time.Duration, error) {
}

// NoopSweepHooks is a no-op implementation of SweepHooks.
type NoopSweepHooks struct{}

func (NoopSweepHooks) OnPointStart(context.Context, string)                        {}
func (NoopSweepHooks) OnPointComplete(context.Context, string, int, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	degradeHooks DegradeHooks = NoopDegradeHooks{}
	sweepHooks   SweepHooks   = NoopSweepHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	hooksMu      sync.RWMutex
)

// SetDegradeHooks registers custom degrade hooks. Nil is ignored.
func SetDegradeHooks(h DegradeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		degradeHooks = h
	}
}

// SetSweepHooks registers custom sweep hooks. Nil is ignored.
func SetSweepHooks(h SweepHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sweepHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Degrade returns the registered degrade hooks.
func Degrade() DegradeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return degradeHooks
}

// Sweep returns the registered sweep hooks.
func Sweep() SweepHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sweepHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	degradeHooks = NoopDegradeHooks{}
	sweepHooks = NoopSweepHooks{}
	cacheHooks = NoopCacheHooks{}
}
