package sweep

import (
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Seed modes.
const (
	SeedFixed  = "fixed"
	SeedRandom = "random"
)

// RandomSeed is passed to the model when the seed mode is random; the model
// then picks its own seed.
const RandomSeed = -1

// Defaults used by DefaultConfig.
const (
	DefaultPython     = "python3"
	DefaultScript     = "scripts/sr_val_ddpm_text_T_vqganfin_oldcanvas.py"
	DefaultOutputRoot = "sweep_output"
	DefaultSeed       = 42
	DefaultPrecision  = "full"
	TempInputDir      = "temp_input"
	LogFile           = "log.txt"
)

// DefaultUpscales covers 1x to 5x in half steps.
var DefaultUpscales = []float64{1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0, 4.5, 5.0}

// Input is one base-resolution input directory.
type Input struct {
	Base int    `toml:"base" json:"base"`
	Dir  string `toml:"dir" json:"dir"`
}

// Config describes the external model and the parameter grid to sweep.
type Config struct {
	// Python runs Script. Empty runs Script directly.
	Python string `toml:"python" json:"python"`
	Script string `toml:"script" json:"script"`

	// WorkDir is the process working directory, usually the model checkout.
	WorkDir string `toml:"work_dir" json:"work_dir,omitempty"`

	ModelConfig     string `toml:"model_config" json:"model_config,omitempty"`
	Checkpoint      string `toml:"checkpoint" json:"checkpoint,omitempty"`
	VQGANCheckpoint string `toml:"vqgan_checkpoint" json:"vqgan_checkpoint,omitempty"`

	// Inputs are directories of clean images per base resolution. Image
	// selects single-image mode instead; the two are exclusive.
	Inputs []Input `toml:"inputs" json:"inputs,omitempty"`
	Image  string  `toml:"image" json:"image,omitempty"`

	Upscales       []float64 `toml:"upscales" json:"upscales"`
	Steps          []int     `toml:"steps" json:"steps"`
	DecoderWeights []float64 `toml:"decoder_weights" json:"decoder_weights"`
	ColorFix       []string  `toml:"color_fix" json:"color_fix"`
	SeedModes      []string  `toml:"seed_modes" json:"seed_modes"`
	Seed           int       `toml:"seed" json:"seed"`
	Repeats        int       `toml:"repeats" json:"repeats"`
	Samples        int       `toml:"samples" json:"samples"`
	Precision      string    `toml:"precision" json:"precision"`

	// ExtraArgs are appended verbatim to every command line.
	ExtraArgs []string `toml:"extra_args" json:"extra_args,omitempty"`

	OutputRoot string `toml:"output_root" json:"output_root"`

	// Refresh reruns points that already succeeded.
	Refresh bool `toml:"refresh" json:"refresh,omitempty"`
}

// DefaultConfig returns the configuration LoadConfig starts from.
func DefaultConfig() Config {
	return Config{
		Python:         DefaultPython,
		Script:         DefaultScript,
		Upscales:       slices.Clone(DefaultUpscales),
		Steps:          []int{50},
		DecoderWeights: []float64{0.5},
		ColorFix:       []string{"wavelet"},
		SeedModes:      []string{SeedFixed},
		Seed:           DefaultSeed,
		Repeats:        1,
		Samples:        1,
		Precision:      DefaultPrecision,
		OutputRoot:     DefaultOutputRoot,
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
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return cfg, errors.New(errors.ErrCodeInvalidConfig,
			"unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ValidateAndSetDefaults fills empty grid axes with their defaults and
// checks the rest. It is idempotent.
func (c *Config) ValidateAndSetDefaults() error {
	if c.Script == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "script is required")
	}
	if c.Image == "" && len(c.Inputs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "either image or inputs is required")
	}
	if c.Image != "" && len(c.Inputs) > 0 {
		return errors.New(errors.ErrCodeConfigurationConflict, "image and inputs are mutually exclusive")
	}
	seen := make(map[int]bool, len(c.Inputs))
	for _, in := range c.Inputs {
		if err := errors.ValidateDimension(in.Base, in.Base); err != nil {
			return err
		}
		if in.Dir == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "input for base %d has no dir", in.Base)
		}
		if seen[in.Base] {
			return errors.New(errors.ErrCodeInvalidConfig, "duplicate input for base %d", in.Base)
		}
		seen[in.Base] = true
	}
	slices.SortFunc(c.Inputs, func(a, b Input) int { return a.Base - b.Base })

	if c.OutputRoot == "" {
		c.OutputRoot = DefaultOutputRoot
	}
	if err := errors.ValidateOutputDir(c.OutputRoot); err != nil {
		return err
	}

	def := DefaultConfig()
	if len(c.Upscales) == 0 {
		c.Upscales = def.Upscales
	}
	for _, s := range c.Upscales {
		if s <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "upscale must be positive, got %g", s)
		}
	}
	if len(c.Steps) == 0 {
		c.Steps = def.Steps
	}
	for _, s := range c.Steps {
		if s <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "steps must be positive, got %d", s)
		}
	}
	if len(c.DecoderWeights) == 0 {
		c.DecoderWeights = def.DecoderWeights
	}
	for _, w := range c.DecoderWeights {
		if err := errors.ValidateProbability("decoder weight", w); err != nil {
			return err
		}
	}
	if len(c.ColorFix) == 0 {
		c.ColorFix = def.ColorFix
	}
	if len(c.SeedModes) == 0 {
		c.SeedModes = def.SeedModes
	}
	for _, m := range c.SeedModes {
		if m != SeedFixed && m != SeedRandom {
			return errors.New(errors.ErrCodeInvalidConfig,
				"unknown seed mode %q (valid: %s, %s)", m, SeedFixed, SeedRandom)
		}
	}
	if c.Repeats <= 0 {
		c.Repeats = 1
	}
	if c.Samples <= 0 {
		c.Samples = 1
	}
	if c.Precision == "" {
		c.Precision = DefaultPrecision
	}
	return nil
}
