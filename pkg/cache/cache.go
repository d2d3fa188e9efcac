// Package cache stores results that are expensive to recompute: finished
// sweep points (so a re-run skips them) and degraded images served over HTTP.
//
// Backends implement [Cache]:
//   - [FileCache]: JSON entries under the XDG cache directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for sweeps spread over machines
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer] so that every part of the input that changes the
// result is hashed into the key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the value and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Close() error
}

// DegradeKeyOpts are the request parameters that affect a degraded image.
type DegradeKeyOpts struct {
	Size          int     `json:"size"`
	Kind          string  `json:"kind"`
	Intensity     float64 `json:"intensity"`
	Mean          float64 `json:"mean,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Strategy      string  `json:"strategy"`
	BaseSize      int     `json:"base_size"`
	Alpha         float64 `json:"alpha"`
	MedianKernel  int     `json:"median,omitempty"`
	OutputSize    int     `json:"output_size,omitempty"`
	Interpolation string  `json:"interp,omitempty"`
	Seed          uint64  `json:"seed"`
}

// Keyer builds cache keys.
type Keyer interface {
	// SweepKey identifies one external process run by its full argument vector.
	SweepKey(argv []string) string

	// DegradeKey identifies a degraded image by source hash and parameters.
	DegradeKey(imageHash string, opts DegradeKeyOpts) string
}

// DefaultKeyer hashes key parts with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SweepKey returns "sweep:<hash>".
func (DefaultKeyer) SweepKey(argv []string) string {
	return hashKey("sweep", argv)
}

// DegradeKey returns "degrade:<hash>". Unseeded requests should not be cached.
func (DefaultKeyer) DegradeKey(imageHash string, opts DegradeKeyOpts) string {
	return hashKey("degrade", imageHash, opts)
}
