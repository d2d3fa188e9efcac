package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/raster"
	"github.com/matzehuels/grainscale/pkg/store"
)

// batchOpts holds the batch command flags. Only flags that were set
// override the config file.
type batchOpts struct {
	config        string
	noise         noiseFlags
	strategy      strategyFlags
	output        string
	tag           string
	sizes         []int
	interp        string
	displayInterp string
	displayHeight int
	median        int
	upscale       int
	seed          uint64
	workers       int
	noLedger      bool
}

func (c *CLI) batchCommand() *cobra.Command {
	var opts batchOpts

	cmd := &cobra.Command{
		Use:   "batch [image-or-dir]",
		Short: "Degrade one image at several resolutions with consistent noise",
		Long: `Batch degrades a clean image at every target size and writes
original_{size}.png, noisy_{size}.png and comparison_noisy.png.

The input is a single image, resampled to every size, or a directory with
one {tag}_{size} subfolder per size. Sizes whose source is missing are
skipped with a warning.

Consistency strategies:
  power_law           scale the noise parameter as (size/base)^alpha (default)
  fixed_grain         draw noise at base size and enlarge it with nearest neighbour
  matrix_repeat       draw one base-size tile and repeat it
  downscale_from_max  degrade the largest size once and downscale the result`,
		Example: `  grainscale batch brain.png --sizes 128,256,512 -k gaussian -n 10
  grainscale batch dataset/ --tag brain --fixed-grain --base-size 64
  grainscale batch --config batch.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, args)
			if err != nil {
				return err
			}
			return c.runBatch(cmd.Context(), cfg, opts.noLedger)
		},
	}

	opts.register(cmd)

	return cmd
}

// register adds the batch flags to cmd.
func (o *batchOpts) register(cmd *cobra.Command) {
	o.noise.register(cmd, batch.DefaultIntensity)
	o.strategy.register(cmd)
	cmd.Flags().StringVarP(&o.config, "config", "c", "", "TOML config file")
	cmd.Flags().StringVarP(&o.output, "output", "o", batch.DefaultOutputDir, "output directory")
	cmd.Flags().StringVar(&o.tag, "tag", "", "only use {tag}_{size} subfolders in directory mode")
	cmd.Flags().IntSliceVar(&o.sizes, "sizes", batch.DefaultSizes, "square target sizes")
	cmd.Flags().StringVar(&o.interp, "interp", string(raster.DefaultInterpolation),
		"resampling interpolation: nearest, bilinear, bicubic, lanczos")
	cmd.Flags().StringVar(&o.displayInterp, "display-interp", "",
		"comparison strip interpolation (default: nearest for grain strategies, else bicubic)")
	cmd.Flags().IntVar(&o.displayHeight, "display-height", 256, "comparison panel height")
	cmd.Flags().IntVar(&o.median, "median", 0, "median filter kernel, odd (0 disables)")
	cmd.Flags().IntVar(&o.upscale, "output-size", 0, "final square resample size (0 disables)")
	cmd.Flags().Uint64Var(&o.seed, "seed", 0, "random seed (0 draws a fresh one)")
	cmd.Flags().IntVarP(&o.workers, "workers", "j", 0, "parallel sizes (default: number of CPUs)")
	cmd.Flags().BoolVar(&o.noLedger, "no-ledger", false, "do not record the run")
}

// load builds the config: defaults, then the config file, then set flags.
func (o *batchOpts) load(cmd *cobra.Command, args []string) (batch.Config, error) {
	cfg := batch.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = batch.LoadConfig(o.config); err != nil {
			return cfg, err
		}
	}
	if len(args) == 1 {
		cfg.Input = args[0]
	}

	fl := cmd.Flags()
	o.noise.apply(cmd, &cfg.Noise)
	if err := o.strategy.apply(cmd, &cfg.Consistency); err != nil {
		return cfg, err
	}
	if fl.Changed("output") {
		cfg.OutputDir = o.output
	}
	if fl.Changed("tag") {
		cfg.Tag = o.tag
	}
	if fl.Changed("sizes") {
		cfg.Sizes = o.sizes
	}
	if fl.Changed("interp") {
		cfg.Degrade.Interpolation = raster.Interpolation(o.interp)
	}
	if fl.Changed("display-interp") {
		cfg.Display.Interpolation = raster.Interpolation(o.displayInterp)
	}
	if fl.Changed("display-height") {
		cfg.Display.Height = o.displayHeight
	}
	if fl.Changed("median") {
		cfg.Degrade.MedianKernel = o.median
	}
	if fl.Changed("output-size") {
		cfg.Degrade.OutputSize = o.upscale
	}
	if fl.Changed("seed") {
		cfg.Seed = o.seed
	}
	if fl.Changed("workers") {
		cfg.Workers = o.workers
	}
	if cfg.Input == "" {
		return cfg, errors.New(errors.ErrCodeInvalidInput, "an input image or directory is required")
	}
	return cfg, cfg.ValidateAndSetDefaults()
}

func (c *CLI) runBatch(ctx context.Context, cfg batch.Config, noLedger bool) error {
	var ledger store.Store
	if !noLedger {
		l, err := c.openLedger(ctx, cfg.OutputDir)
		if err != nil {
			c.Logger.Warn("run ledger unavailable", "err", err)
		} else {
			ledger = l
			defer l.Close()
		}
	}

	driver, err := batch.NewDriver(cfg, c.Logger, ledger)
	if err != nil {
		return err
	}
	prog := newProgress(c.Logger)
	report, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	counts := report.Counts()
	prog.done(fmt.Sprintf("Degraded %d of %d sizes", counts.Succeeded, len(report.Outcomes)))

	fmt.Println(batchTable(report))
	printKeyValue("Kind", string(report.Kind))
	printKeyValue("Strategy", report.Policy.String())
	printKeyValue("Run", report.RunID)
	if report.FellBack {
		printWarning("unknown noise kind %q, used %s", report.RequestedKind, report.Kind)
	}
	if report.Comparison != "" {
		printSuccess("Comparison written")
		printFile(report.Comparison)
	}
	fmt.Println(countsLine(counts))

	if counts.Succeeded == 0 {
		return errors.New(errors.ErrCodeImageLoad, "no size could be degraded")
	}
	return nil
}
