package consistency

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// Defaults applied by SetDefaults.
const (
	DefaultGrainSize     = 128 // long side of the base field for grain-locked strategies
	DefaultReferenceSize = 256 // size at which PowerLaw uses the base intensity
	DefaultAlpha         = 0.6
)

// Policy is the consistency strategy for one run plus the parameters it reads.
type Policy struct {
	Strategy Strategy `json:"strategy" toml:"strategy"`

	// BaseSize is the grain base (FixedGrain, MatrixRepeat) or the reference
	// size (PowerLaw). Zero selects the strategy default.
	BaseSize int `json:"base_size,omitempty" toml:"base_size"`

	// Alpha is the PowerLaw exponent: 0 disables scaling, 1 is linear.
	Alpha float64 `json:"alpha" toml:"alpha"`
}

// DefaultPolicy returns power-law scaling with alpha 0.6 around 256px.
func DefaultPolicy() Policy {
	return Policy{Strategy: PowerLaw, BaseSize: DefaultReferenceSize, Alpha: DefaultAlpha}
}

// SetDefaults fills a zero strategy and base size.
func (p *Policy) SetDefaults() {
	if p.Strategy == "" {
		p.Strategy = DefaultStrategy
	}
	if p.BaseSize == 0 {
		if p.Strategy.GrainLocked() {
			p.BaseSize = DefaultGrainSize
		} else {
			p.BaseSize = DefaultReferenceSize
		}
	}
}

// Validate checks the policy before any field is generated.
func (p Policy) Validate() error {
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	if p.BaseSize <= 0 && p.Strategy != DownscaleFromMax {
		return errors.New(errors.ErrCodeInvalidConfig, "base size must be positive, got %d", p.BaseSize)
	}
	if p.Strategy == PowerLaw {
		if err := errors.ValidateNonNegative("alpha", p.Alpha); err != nil {
			return err
		}
	}
	return nil
}

// String describes the policy, e.g. "power_law(base=256, alpha=0.60)".
func (p Policy) String() string {
	switch p.Strategy {
	case PowerLaw:
		return fmt.Sprintf("%s(base=%d, alpha=%.2f)", p.Strategy, p.BaseSize, p.Alpha)
	case FixedGrain, MatrixRepeat:
		return fmt.Sprintf("%s(base=%d)", p.Strategy, p.BaseSize)
	}
	return string(p.Strategy)
}

// Factor returns the intensity multiplier at size:
// (long side / BaseSize)^Alpha under PowerLaw, 1 otherwise.
func (p Policy) Factor(size raster.Size) float64 {
	if p.Strategy != PowerLaw || p.BaseSize <= 0 {
		return 1
	}
	return math.Pow(float64(size.LongSide())/float64(p.BaseSize), p.Alpha)
}

// EffectiveParams returns the parameters actually used at size.
func (p Policy) EffectiveParams(kind noise.Kind, params noise.Params, size raster.Size) noise.Params {
	f := p.Factor(size)
	if f == 1 {
		return params
	}
	return params.Scale(kind, f)
}

// DisplayInterpolation is the resampling used for comparison copies:
// nearest keeps expanded grain blocky, everything else is bicubic.
func (p Policy) DisplayInterpolation() raster.Interpolation {
	if p.Strategy.GrainLocked() {
		return raster.Nearest
	}
	return raster.Bicubic
}

// BaseShape returns the height and width of the base field drawn for a
// height×width target. Non grain-locked strategies draw at the target.
func (p Policy) BaseShape(height, width int) (int, int) {
	switch p.Strategy {
	case FixedGrain:
		return grainShape(height, width, p.BaseSize)
	case MatrixRepeat:
		k := repeatFactor(height, width, p.BaseSize)
		return ceilDiv(height, k), ceilDiv(width, k)
	}
	return height, width
}

// Planes draws the noise planes for a height×width×channels target under
// the policy. Grain-locked strategies draw at BaseShape and expand; the
// rest draw at the target. Models with no planes (poisson) return nil.
func (p Policy) Planes(m noise.Model, rng *rand.Rand, height, width, channels int) []*noise.Field {
	bh, bw := p.BaseShape(height, width)
	planes := m.Draw(rng, bh, bw, channels)
	if bh == height && bw == width {
		return planes
	}
	for i, f := range planes {
		switch p.Strategy {
		case FixedGrain:
			planes[i] = ExpandNearest(f, height, width)
		case MatrixRepeat:
			planes[i] = Repeat(f, repeatFactor(height, width, p.BaseSize), height, width)
		}
	}
	return planes
}

// grainShape puts base on the long side and scales the short side by the
// aspect ratio. Neither side exceeds the target.
func grainShape(height, width, base int) (int, int) {
	if base <= 0 {
		return height, width
	}
	var bh, bw int
	if width >= height {
		bw = base
		bh = int(float64(base) * float64(height) / float64(width))
	} else {
		bh = base
		bw = int(float64(base) * float64(width) / float64(height))
	}
	return clamp(bh, 1, height), clamp(bw, 1, width)
}

// repeatFactor is floor(long side / base), at least 1.
func repeatFactor(height, width, base int) int {
	if base <= 0 {
		return 1
	}
	return max(1, max(height, width)/base)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
