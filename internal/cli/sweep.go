package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/store"
	"github.com/matzehuels/grainscale/pkg/sweep"
)

func (c *CLI) sweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run an external super-resolution model over a parameter grid",
	}
	cmd.AddCommand(c.sweepRunCommand())
	cmd.AddCommand(c.sweepPrepareCommand())
	return cmd
}

// sweepRunOpts holds the "sweep run" flags.
type sweepRunOpts struct {
	config     string
	image      string
	outputRoot string
	python     string
	repeats    int
	refresh    bool
	noCache    bool
	noLedger   bool
}

func (c *CLI) sweepRunCommand() *cobra.Command {
	var opts sweepRunOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every point of a sweep config",
		Long: `Run launches the model once per point of the grid described by the config
(inputs × upscales × steps × decoder weights × color fix × seed modes ×
repeats). Each point writes to {output_root}/{mode}/base{res}_x{scale}/ and
its stdout and stderr go to log.txt there. A failing point is reported and
the sweep continues.

Points that already succeeded are skipped on re-runs; --refresh runs them
again.`,
		Example: `  grainscale sweep run -c sweep.toml
  grainscale sweep run -c sweep.toml --image cat_128.png --output-root cat_sweep`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return c.runSweep(cmd.Context(), cfg, opts.noCache, opts.noLedger)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "TOML sweep config (required)")
	cmd.Flags().StringVar(&opts.image, "image", "", "single input image (replaces the config inputs)")
	cmd.Flags().StringVarP(&opts.outputRoot, "output-root", "o", "", "output root directory")
	cmd.Flags().StringVar(&opts.python, "python", "", "python executable")
	cmd.Flags().IntVar(&opts.repeats, "repeats", 0, "runs per point")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "rerun points that already succeeded")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not record or skip finished points")
	cmd.Flags().BoolVar(&opts.noLedger, "no-ledger", false, "do not record the run")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (o *sweepRunOpts) load(cmd *cobra.Command) (sweep.Config, error) {
	cfg, err := sweep.LoadConfig(o.config)
	if err != nil {
		return cfg, err
	}
	fl := cmd.Flags()
	if fl.Changed("image") {
		cfg.Image = o.image
		cfg.Inputs = nil
	}
	if fl.Changed("output-root") {
		cfg.OutputRoot = o.outputRoot
	}
	if fl.Changed("python") {
		cfg.Python = o.python
	}
	if fl.Changed("repeats") {
		cfg.Repeats = o.repeats
	}
	if o.refresh {
		cfg.Refresh = true
	}
	return cfg, nil
}

func (c *CLI) runSweep(ctx context.Context, cfg sweep.Config, noCache, noLedger bool) error {
	cache, err := c.newCache(ctx, noCache)
	if err != nil {
		return err
	}
	defer cache.Close()

	var ledger store.Store
	if !noLedger {
		l, err := c.openLedger(ctx, cfg.OutputRoot)
		if err != nil {
			c.Logger.Warn("run ledger unavailable", "err", err)
		} else {
			ledger = l
			defer l.Close()
		}
	}

	runner, err := sweep.NewRunner(cfg, cache, c.Logger, ledger)
	if err != nil {
		return err
	}
	prog := newProgress(c.Logger)
	summary, err := runner.Run(ctx)
	if summary != nil && len(summary.Results) > 0 {
		fmt.Println(sweepTable(summary))
	}
	if err != nil {
		return err
	}
	counts := summary.Counts()
	prog.done(fmt.Sprintf("Sweep finished, %d points cached", summary.Cached()))
	printKeyValue("Run", summary.RunID)
	printKeyValue("Output", cfg.OutputRoot)
	for _, r := range summary.Filter(sweep.StatusFailed) {
		printError("%s exited with %d", r.Point.Name(), r.ExitCode)
		printFile(r.LogPath)
	}
	fmt.Println(countsLine(counts))

	if counts.Failed > 0 {
		return &errors.SubprocessError{ExitCode: summary.Filter(sweep.StatusFailed)[0].ExitCode}
	}
	return nil
}

// sweepPrepareOpts holds the "sweep prepare" flags.
type sweepPrepareOpts struct {
	output  string
	scales  []float64
	repeats int
}

func (c *CLI) sweepPrepareCommand() *cobra.Command {
	var opts sweepPrepareOpts

	cmd := &cobra.Command{
		Use:   "prepare [image]",
		Short: "Write downscaled copies of one image as a model input folder",
		Long: `Prepare writes Lanczos-downscaled copies of an image, repeats per scale,
as original_{i}.png and down_{scale}x_{i}.png. The output directory is
replaced.`,
		Example: `  grainscale sweep prepare cat.png -o inputs --scales 1,2,4 --repeats 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spin := newSpinnerWithContext(cmd.Context(), "Writing inputs...")
			spin.Start()
			paths, err := sweep.Prepare(args[0], opts.output, opts.scales, opts.repeats)
			if err != nil {
				spin.StopWithError("Prepare failed")
				return err
			}
			spin.StopWithSuccess(fmt.Sprintf("Wrote %d images", len(paths)))
			printFile(opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "temp_inputs", "output directory (replaced)")
	cmd.Flags().Float64SliceVar(&opts.scales, "scales", sweep.DefaultPrepareScales, "downscale factors (>= 1)")
	cmd.Flags().IntVar(&opts.repeats, "repeats", 5, "copies per scale")

	return cmd
}
