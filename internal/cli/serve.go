package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/internal/server"
)

// serveOpts holds the serve command flags.
type serveOpts struct {
	addr     string
	maxBody  int64
	maxSize  int
	timeout  time.Duration
	cacheTTL time.Duration
	ns       string
	noCache  bool
}

func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve single-image degradation over HTTP",
		Long: `Serve starts an HTTP API. POST an image to /v1/degrade with the noise and
consistency parameters in the query string and the degraded PNG comes back.
Requests with a seed are cached (Redis with --redis-url, the file cache
otherwise).`,
		Example: `  grainscale serve --addr :8080
  curl --data-binary @cat.png -o out.png \
    'http://localhost:8080/v1/degrade?size=512&kind=gaussian&intensity=10&strategy=fixed_grain&seed=1'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := c.newCache(ctx, opts.noCache)
			if err != nil {
				return err
			}
			defer cache.Close()

			srv, err := server.New(server.Config{
				Addr:           opts.addr,
				MaxBodyBytes:   opts.maxBody,
				MaxSize:        opts.maxSize,
				Timeout:        opts.timeout,
				CacheTTL:       opts.cacheTTL,
				CacheNamespace: opts.ns,
			}, cache, c.Logger)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().Int64Var(&opts.maxBody, "max-body", server.DefaultMaxBodyBytes, "maximum upload size in bytes")
	cmd.Flags().IntVar(&opts.maxSize, "max-size", server.DefaultMaxSize, "largest accepted size, output_size or image side in pixels")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", server.DefaultTimeout, "per-request timeout")
	cmd.Flags().DurationVar(&opts.cacheTTL, "cache-ttl", server.DefaultCacheTTL, "lifetime of cached results (0 keeps them)")
	cmd.Flags().StringVar(&opts.ns, "cache-namespace", "", "prefix for cache keys")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable result caching")

	return cmd
}
