// Package cli implements the grainscale command-line interface.
//
// # Commands
//
//   - degrade: noise, median filter and upscale one image or a folder
//   - batch: degrade one image at several resolutions under a consistency
//     strategy and write a comparison strip
//   - sweep: run an external super-resolution model over a parameter grid
//   - serve: HTTP API for single-image degradation
//   - runs: browse the run ledger
//   - cache: inspect or clear the sweep result cache
//
// All commands accept --verbose (-v) for debug logging. --redis-url and
// --mongo-uri switch the cache and the run ledger to shared backends.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/pkg/buildinfo"
	"github.com/matzehuels/grainscale/pkg/cache"
	"github.com/matzehuels/grainscale/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName names the binary, the cache directory and the environment prefix.
const appName = "grainscale"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// runsDir is the ledger directory inside an output directory.
const runsDir = "runs"

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	redisURL string
	mongoURI string
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Resolution-consistent synthetic noise for super-resolution experiments",
		Long: `grainscale degrades clean images with synthetic noise at several resolutions
so that the noise looks the same at every size, and drives external
super-resolution models over the results.`,
		Version:      buildinfo.Resolved(),
		SilenceUsage: true,
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVar(&c.redisURL, "redis-url", os.Getenv("GRAINSCALE_REDIS_URL"),
		"Redis URL for the shared result cache (default: file cache)")
	root.PersistentFlags().StringVar(&c.mongoURI, "mongo-uri", os.Getenv("GRAINSCALE_MONGO_URI"),
		"MongoDB URI for the run ledger (default: JSON files in the output directory)")

	root.AddCommand(c.degradeCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.sweepCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Backends
// =============================================================================

// newCache returns the Redis cache when --redis-url is set, the file cache
// otherwise, and a null cache when disabled or no cache directory exists.
func (c *CLI) newCache(ctx context.Context, disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	if c.redisURL != "" {
		rc, err := cache.NewRedisCache(ctx, c.redisURL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// openLedger opens the run ledger: MongoDB when --mongo-uri is set,
// otherwise JSON files under outputDir/runs.
func (c *CLI) openLedger(ctx context.Context, outputDir string) (store.Store, error) {
	return store.Open(ctx, c.mongoURI, filepath.Join(outputDir, runsDir))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/grainscale/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
