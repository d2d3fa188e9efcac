package consistency

import (
	"strings"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Strategy is one of the closed set of consistency strategies.
type Strategy string

// Supported strategies.
const (
	DownscaleFromMax Strategy = "downscale_from_max"
	FixedGrain       Strategy = "fixed_grain"
	MatrixRepeat     Strategy = "matrix_repeat"
	PowerLaw         Strategy = "power_law"
)

// DefaultStrategy is used when no strategy is requested.
const DefaultStrategy = PowerLaw

// Strategies lists every strategy in display order.
var Strategies = []Strategy{DownscaleFromMax, FixedGrain, MatrixRepeat, PowerLaw}

var strategyAliases = map[string]Strategy{
	"downscale":  DownscaleFromMax,
	"max":        DownscaleFromMax,
	"grain":      FixedGrain,
	"repeat":     MatrixRepeat,
	"tile":       MatrixRepeat,
	"power":      PowerLaw,
	"perceptual": PowerLaw,
}

// ParseStrategy converts a name into a Strategy. Matching is
// case-insensitive; dashes are read as underscores.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, st := range Strategies {
		if string(st) == name {
			return st, nil
		}
	}
	if st, ok := strategyAliases[name]; ok {
		return st, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig,
		"unknown consistency strategy %q (must be one of: %s)", s, strategyList())
}

// Select resolves the single strategy for a run from every place one can be
// requested (config file, flags). Empty names are ignored and repeats of the
// same strategy are fine. Two different strategies are a
// CONFIGURATION_CONFLICT. With nothing requested, DefaultStrategy is returned.
func Select(names ...string) (Strategy, error) {
	var chosen Strategy
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		st, err := ParseStrategy(name)
		if err != nil {
			return "", err
		}
		if chosen != "" && chosen != st {
			return "", errors.New(errors.ErrCodeConfigurationConflict,
				"consistency strategies %s and %s are mutually exclusive; select exactly one", chosen, st)
		}
		chosen = st
	}
	if chosen == "" {
		return DefaultStrategy, nil
	}
	return chosen, nil
}

// GrainLocked reports whether the strategy draws planes at a base resolution
// and expands them.
func (s Strategy) GrainLocked() bool {
	return s == FixedGrain || s == MatrixRepeat
}

// Parallel reports whether sizes can be degraded independently.
// DownscaleFromMax derives every output from one shared noisy image.
func (s Strategy) Parallel() bool {
	return s != DownscaleFromMax
}

func strategyList() string {
	names := make([]string, len(Strategies))
	for i, s := range Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
