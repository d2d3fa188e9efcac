package batch

import (
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/degrade"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// Defaults used by DefaultConfig.
const (
	DefaultOutputDir = "noise_output"
	DefaultIntensity = 10.0
)

// DefaultSizes are the square target resolutions of a run.
var DefaultSizes = []int{128, 256, 512}

// NoiseConfig selects the distribution.
type NoiseConfig struct {
	// Kind is parsed leniently unless Strict is set: an unknown name falls
	// back to gaussian with a logged warning.
	Kind   string `toml:"kind" json:"kind"`
	Strict bool   `toml:"strict" json:"strict,omitempty"`

	// Intensity is the base value of the kind's primary parameter (see
	// noise.ParamsFor); under power_law it applies at the reference size.
	Intensity float64 `toml:"intensity" json:"intensity"`
	Mean      float64 `toml:"mean" json:"mean,omitempty"`

	// Amount overrides the salt-and-pepper fraction of mixed noise.
	Amount float64 `toml:"amount" json:"amount,omitempty"`
}

// DisplayConfig controls the comparison strip.
type DisplayConfig struct {
	Height int `toml:"height" json:"height"`

	// Interpolation for display copies. Empty picks nearest for grain-locked
	// strategies and bicubic otherwise.
	Interpolation raster.Interpolation `toml:"interpolation" json:"interpolation,omitempty"`
}

// Config is everything a batch run reads. It is passed to NewDriver; there
// is no package-level configuration.
type Config struct {
	// Input is a single image, or a directory of {tag}_{size} subfolders
	// each holding one candidate image.
	Input string `toml:"input" json:"input"`

	// Tag restricts directory mode to subfolders named exactly {tag}_{size}.
	Tag string `toml:"tag" json:"tag,omitempty"`

	OutputDir string `toml:"output_dir" json:"output_dir"`
	Sizes     []int  `toml:"sizes" json:"sizes"`

	Noise       NoiseConfig        `toml:"noise" json:"noise"`
	Consistency consistency.Policy `toml:"consistency" json:"consistency"`
	Degrade     degrade.Options    `toml:"degrade" json:"degrade"`
	Display     DisplayConfig      `toml:"display" json:"display"`

	// Seed drives every draw. Zero draws a fresh seed per size.
	Seed uint64 `toml:"seed" json:"seed,omitempty"`

	// Workers bounds parallel degradations. Ignored by downscale_from_max.
	Workers int `toml:"workers" json:"workers"`
}

// DefaultConfig returns the configuration LoadConfig starts from.
func DefaultConfig() Config {
	return Config{
		OutputDir: DefaultOutputDir,
		Sizes:     slices.Clone(DefaultSizes),
		Noise: NoiseConfig{
			Kind:      string(noise.Gaussian),
			Intensity: DefaultIntensity,
		},
		Consistency: consistency.DefaultPolicy(),
		Degrade:     degrade.Options{Interpolation: raster.DefaultInterpolation},
		Display:     DisplayConfig{Height: 256},
		Workers:     runtime.NumCPU(),
	}
}

// LoadConfig decodes a TOML file over DefaultConfig. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.ErrCodeInvalidConfig,
			"unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ValidateAndSetDefaults fills zero values and validates every option before
// any image is read. Sizes are sorted ascending and deduplicated. It is
// idempotent.
func (c *Config) ValidateAndSetDefaults() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "input path is required")
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if err := errors.ValidateOutputDir(c.OutputDir); err != nil {
		return err
	}
	if err := errors.ValidateTag(c.Tag); err != nil {
		return err
	}

	if len(c.Sizes) == 0 {
		c.Sizes = slices.Clone(DefaultSizes)
	}
	for _, s := range c.Sizes {
		if err := errors.ValidateDimension(s, s); err != nil {
			return err
		}
	}
	slices.Sort(c.Sizes)
	c.Sizes = slices.Compact(c.Sizes)

	if c.Noise.Kind == "" {
		c.Noise.Kind = string(noise.Gaussian)
	}
	if err := errors.ValidateNonNegative("intensity", c.Noise.Intensity); err != nil {
		return err
	}
	kind, _, err := c.ResolveKind()
	if err != nil {
		return err
	}
	if err := c.BaseParams(kind).Validate(kind); err != nil {
		return err
	}

	c.Consistency.SetDefaults()
	if err := c.Consistency.Validate(); err != nil {
		return err
	}
	if err := c.Degrade.ValidateAndSetDefaults(); err != nil {
		return err
	}

	if c.Display.Height <= 0 {
		c.Display.Height = 256
	}
	if c.Display.Interpolation != "" {
		interp, err := raster.ParseInterpolation(string(c.Display.Interpolation))
		if err != nil {
			return err
		}
		c.Display.Interpolation = interp
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return nil
}

// ResolveKind returns the noise kind and whether the lenient fallback was used.
func (c *Config) ResolveKind() (noise.Kind, bool, error) {
	return noise.ResolveKind(c.Noise.Kind, c.Noise.Strict)
}

// BaseParams maps the noise settings onto kind's parameters.
func (c *Config) BaseParams(kind noise.Kind) noise.Params {
	return c.Noise.Params(kind)
}

// Params maps Intensity, Mean and Amount onto kind's parameters.
func (n NoiseConfig) Params(kind noise.Kind) noise.Params {
	p := noise.ParamsFor(kind, n.Intensity)
	if kind == noise.Gaussian || kind == noise.Mixed {
		p.Mean = n.Mean
	}
	if kind == noise.Mixed && n.Amount > 0 {
		p.Amount = n.Amount
	}
	return p
}

// DisplayInterpolation resolves the display resampling kind.
func (c *Config) DisplayInterpolation() raster.Interpolation {
	if c.Display.Interpolation != "" {
		return c.Display.Interpolation
	}
	return c.Consistency.DisplayInterpolation()
}
