package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/degrade"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/raster"
)

const (
	defaultDegradeOutput    = "degraded_output"
	defaultDegradeIntensity = 5.0
	defaultMedianKernel     = 3
	defaultUpscaleSize      = 512
)

// noiseFlags are the noise options shared by degrade and batch.
type noiseFlags struct {
	kind      string
	strict    bool
	intensity float64
	mean      float64
	amount    float64
}

func (f *noiseFlags) register(cmd *cobra.Command, intensity float64) {
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "gaussian",
		"noise kind: gaussian, salt_pepper, uniform, speckle, poisson, rician, mixed")
	cmd.Flags().BoolVar(&f.strict, "strict-kind", false, "reject unknown noise kinds instead of falling back to gaussian")
	cmd.Flags().Float64VarP(&f.intensity, "intensity", "n", intensity,
		"primary noise parameter (std, half-width, variance or amount, by kind)")
	cmd.Flags().Float64Var(&f.mean, "mean", 0, "gaussian mean")
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "salt-and-pepper fraction of mixed noise")
}

// apply copies the flags that were set onto cfg, so unset flags keep the
// config file's values.
func (f *noiseFlags) apply(cmd *cobra.Command, cfg *batch.NoiseConfig) {
	fl := cmd.Flags()
	if fl.Changed("kind") {
		cfg.Kind = f.kind
	}
	if fl.Changed("strict-kind") {
		cfg.Strict = f.strict
	}
	if fl.Changed("intensity") {
		cfg.Intensity = f.intensity
	}
	if fl.Changed("mean") {
		cfg.Mean = f.mean
	}
	if fl.Changed("amount") {
		cfg.Amount = f.amount
	}
}

// strategyFlags select the consistency strategy. The boolean shorthands and
// --strategy may be combined only when they agree.
type strategyFlags struct {
	strategy         string
	downscaleFromMax bool
	fixedGrain       bool
	matrixRepeat     bool
	powerLaw         bool
	alpha            float64
	baseSize         int
}

func (f *strategyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "",
		"consistency strategy: downscale_from_max, fixed_grain, matrix_repeat, power_law (default)")
	cmd.Flags().BoolVar(&f.downscaleFromMax, "downscale-from-max", false, "degrade the largest size once and downscale it")
	cmd.Flags().BoolVar(&f.fixedGrain, "fixed-grain", false, "draw noise at a fixed grain size and enlarge it")
	cmd.Flags().BoolVar(&f.matrixRepeat, "matrix-repeat", false, "draw one noise tile and repeat it")
	cmd.Flags().BoolVar(&f.powerLaw, "power-law", false, "scale the noise parameter with resolution")
	cmd.Flags().Float64Var(&f.alpha, "alpha", consistency.DefaultAlpha, "power-law exponent")
	cmd.Flags().IntVar(&f.baseSize, "base-size", 0, "grain/tile size or power-law reference size")
}

// apply resolves the selected strategy onto p. Conflicting selections fail
// with CONFIGURATION_CONFLICT.
func (f *strategyFlags) apply(cmd *cobra.Command, p *consistency.Policy) error {
	var names []string
	if f.strategy != "" {
		names = append(names, f.strategy)
	}
	for _, sel := range []struct {
		on bool
		s  consistency.Strategy
	}{
		{f.downscaleFromMax, consistency.DownscaleFromMax},
		{f.fixedGrain, consistency.FixedGrain},
		{f.matrixRepeat, consistency.MatrixRepeat},
		{f.powerLaw, consistency.PowerLaw},
	} {
		if sel.on {
			names = append(names, string(sel.s))
		}
	}
	if len(names) > 0 {
		s, err := consistency.Select(names...)
		if err != nil {
			return err
		}
		if s != p.Strategy {
			p.BaseSize = 0
		}
		p.Strategy = s
	}
	if cmd.Flags().Changed("alpha") {
		p.Alpha = f.alpha
	}
	if f.baseSize != 0 {
		p.BaseSize = f.baseSize
	}
	p.SetDefaults()
	return p.Validate()
}

// degradeOpts holds the degrade command flags.
type degradeOpts struct {
	noise    noiseFlags
	strategy strategyFlags
	output   string
	size     int
	median   int
	upscale  int
	interp   string
	seed     uint64
	workers  int
}

func (c *CLI) degradeCommand() *cobra.Command {
	var opts degradeOpts

	cmd := &cobra.Command{
		Use:   "degrade [image-or-dir]",
		Short: "Add noise, median-filter and upscale one image or a folder",
		Long: `Degrade runs noise, median filter and upscale over one image or every
jpg/jpeg/png in a folder. Each stage is written to its own subfolder of the
output directory, keeping the source file name:

  noisy_{size}/  filtered_{size}/  upscaled_{output-size}/`,
		Example: `  grainscale degrade scans/ -k rician -n 5 -o out
  grainscale degrade brain.png --size 256 --median 0 --output-size 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := batch.DatasetConfig{
				Input:       args[0],
				OutputDir:   opts.output,
				Size:        opts.size,
				Noise:       batch.NoiseConfig{Kind: string(noise.Gaussian), Intensity: defaultDegradeIntensity},
				Consistency: consistency.DefaultPolicy(),
				Degrade: degrade.Options{
					Interpolation: raster.Interpolation(opts.interp),
					MedianKernel:  opts.median,
					OutputSize:    opts.upscale,
				},
				Seed:    opts.seed,
				Workers: opts.workers,
			}
			opts.noise.apply(cmd, &cfg.Noise)
			if err := opts.strategy.apply(cmd, &cfg.Consistency); err != nil {
				return err
			}
			return c.runDegrade(cmd.Context(), cfg)
		},
	}

	opts.noise.register(cmd, defaultDegradeIntensity)
	opts.strategy.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", defaultDegradeOutput, "output directory")
	cmd.Flags().IntVar(&opts.size, "size", 0, "square working size (default: keep each image's size)")
	cmd.Flags().IntVar(&opts.median, "median", defaultMedianKernel, "median filter kernel, odd (0 disables)")
	cmd.Flags().IntVar(&opts.upscale, "output-size", defaultUpscaleSize, "final square upscale size (0 disables)")
	cmd.Flags().StringVar(&opts.interp, "interp", string(raster.DefaultInterpolation),
		"interpolation: nearest, bilinear, bicubic, lanczos")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 draws a fresh one)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "parallel images (default: number of CPUs)")

	return cmd
}

func (c *CLI) runDegrade(ctx context.Context, cfg batch.DatasetConfig) error {
	prog := newProgress(c.Logger)
	report, err := batch.ProcessDataset(ctx, cfg, c.Logger)
	if err != nil {
		return err
	}
	counts := report.Counts()
	prog.done(fmt.Sprintf("Degraded %d images", counts.Succeeded))

	fmt.Println(datasetTable(report))
	printKeyValue("Noise", report.Params.Label(report.Kind))
	printKeyValue("Output", cfg.OutputDir)
	for _, f := range report.Files {
		if f.Status == batch.StatusOK {
			for _, out := range f.Outputs {
				c.Logger.Debug("wrote", "path", out)
			}
		}
	}
	if cfg.Size > 0 {
		for _, dir := range batch.StageDirs(cfg.Size, cfg.Degrade) {
			printFile(filepath.Join(cfg.OutputDir, dir) + string(filepath.Separator))
		}
	}
	fmt.Println(countsLine(counts))

	if counts.Succeeded == 0 && counts.Failed > 0 {
		return errors.New(errors.ErrCodeImageLoad, "no image could be processed")
	}
	return nil
}
