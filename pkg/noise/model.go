package noise

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// Model draws and applies one noise distribution.
type Model interface {
	// Kind returns the distribution this model implements.
	Kind() Kind

	// Draw samples the perturbation planes for a height×width×channels array.
	// Models whose perturbation depends on pixel values return nil.
	Draw(rng *rand.Rand, height, width, channels int) []*Field

	// Perturb combines img with planes shaped like img (as returned by Draw,
	// possibly expanded from a smaller base) and returns the clipped result.
	// img is not modified.
	Perturb(img *raster.Image, planes []*Field, rng *rand.Rand) (*raster.Image, error)
}

// NewModel validates p for kind and returns the matching Model.
func NewModel(kind Kind, p Params) (Model, error) {
	if err := p.Validate(kind); err != nil {
		return nil, err
	}
	switch kind {
	case Gaussian:
		return gaussianModel{p}, nil
	case Uniform:
		return uniformModel{p}, nil
	case SaltPepper:
		return saltPepperModel{p}, nil
	case Speckle:
		return speckleModel{p}, nil
	case Poisson:
		return poissonModel{}, nil
	case Rician:
		return ricianModel{p}, nil
	case Mixed:
		return mixedModel{p}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidNoiseKind, "unknown noise kind %q", kind)
}

// Apply perturbs img with planes drawn at img's own resolution.
func Apply(img *raster.Image, kind Kind, p Params, rng *rand.Rand) (*raster.Image, error) {
	m, err := NewModel(kind, p)
	if err != nil {
		return nil, err
	}
	return m.Perturb(img, m.Draw(rng, img.Height, img.Width, img.Channels), rng)
}

// NewRand returns a PCG-backed generator. A zero seed draws a random one,
// so unseeded runs never repeat; stream separates generators sharing a seed.
func NewRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// =============================================================================
// Models
// =============================================================================

type gaussianModel struct{ p Params }

func (gaussianModel) Kind() Kind { return Gaussian }

func (m gaussianModel) Draw(rng *rand.Rand, h, w, c int) []*Field {
	return []*Field{NewField(h, w, c).fill(normal(m.p.Mean, m.p.Std, rng))}
}

func (gaussianModel) Perturb(img *raster.Image, planes []*Field, _ *rand.Rand) (*raster.Image, error) {
	if err := checkPlanes(img, planes, img.Channels); err != nil {
		return nil, err
	}
	return add(img, planes[0]), nil
}

type uniformModel struct{ p Params }

func (uniformModel) Kind() Kind { return Uniform }

func (m uniformModel) Draw(rng *rand.Rand, h, w, c int) []*Field {
	d := distuv.Uniform{Min: m.p.Low, Max: m.p.High, Src: rng}
	return []*Field{NewField(h, w, c).fill(d.Rand)}
}

func (uniformModel) Perturb(img *raster.Image, planes []*Field, _ *rand.Rand) (*raster.Image, error) {
	if err := checkPlanes(img, planes, img.Channels); err != nil {
		return nil, err
	}
	return add(img, planes[0]), nil
}

// saltPepperModel marks locations, not samples: its single plane has one
// channel holding +1 (white), -1 (black) or 0 (untouched).
type saltPepperModel struct{ p Params }

func (saltPepperModel) Kind() Kind { return SaltPepper }

func (m saltPepperModel) Draw(rng *rand.Rand, h, w, _ int) []*Field {
	return []*Field{saltPepperField(rng, h, w, m.p.Amount)}
}

func (saltPepperModel) Perturb(img *raster.Image, planes []*Field, _ *rand.Rand) (*raster.Image, error) {
	if err := checkPlanes(img, planes, 1); err != nil {
		return nil, err
	}
	out := img.Clone()
	impulse(out, planes[0])
	return out, nil
}

type speckleModel struct{ p Params }

func (speckleModel) Kind() Kind { return Speckle }

func (m speckleModel) Draw(rng *rand.Rand, h, w, c int) []*Field {
	return []*Field{NewField(h, w, c).fill(normal(0, m.p.Var, rng))}
}

func (speckleModel) Perturb(img *raster.Image, planes []*Field, _ *rand.Rand) (*raster.Image, error) {
	if err := checkPlanes(img, planes, img.Channels); err != nil {
		return nil, err
	}
	out := img.Clone()
	for i, v := range img.Pix {
		out.Pix[i] = clip(float64(v) * (1 + planes[0].Values[i]))
	}
	return out, nil
}

type ricianModel struct{ p Params }

func (ricianModel) Kind() Kind { return Rician }

func (m ricianModel) Draw(rng *rand.Rand, h, w, c int) []*Field {
	return []*Field{
		NewField(h, w, c).fill(normal(0, m.p.Std, rng)),
		NewField(h, w, c).fill(normal(0, m.p.Std, rng)),
	}
}

func (ricianModel) Perturb(img *raster.Image, planes []*Field, _ *rand.Rand) (*raster.Image, error) {
	if err := checkPlanes(img, planes, img.Channels, img.Channels); err != nil {
		return nil, err
	}
	out := img.Clone()
	re, im := planes[0].Values, planes[1].Values
	for i, v := range img.Pix {
		out.Pix[i] = clip(math.Hypot(float64(v)+re[i], im[i]))
	}
	return out, nil
}

// mixedModel is gaussian noise followed by salt-and-pepper.
type mixedModel struct{ p Params }

func (mixedModel) Kind() Kind { return Mixed }

func (m mixedModel) Draw(rng *rand.Rand, h, w, c int) []*Field {
	return []*Field{
		NewField(h, w, c).fill(normal(m.p.Mean, m.p.Std, rng)),
		saltPepperField(rng, h, w, m.p.Amount),
	}
}

func (mixedModel) Perturb(img *raster.Image, planes []*Field, _ *rand.Rand) (*raster.Image, error) {
	if err := checkPlanes(img, planes, img.Channels, 1); err != nil {
		return nil, err
	}
	out := add(img, planes[0])
	impulse(out, planes[1])
	return out, nil
}

// poissonModel quantizes to the power-of-two level count covering the
// distinct values present, draws shot noise per sample, and rescales.
type poissonModel struct{}

func (poissonModel) Kind() Kind { return Poisson }

func (poissonModel) Draw(*rand.Rand, int, int, int) []*Field { return nil }

func (poissonModel) Perturb(img *raster.Image, _ []*Field, rng *rand.Rand) (*raster.Image, error) {
	levels := PoissonLevels(img)
	out := img.Clone()
	d := distuv.Poisson{Src: rng}
	for i, v := range img.Pix {
		d.Lambda = float64(v) / 255 * levels
		var k float64
		if d.Lambda > 0 {
			k = d.Rand()
		}
		out.Pix[i] = clip(k / levels * 255)
	}
	return out, nil
}

// PoissonLevels returns 2^ceil(log2(n)) for the n distinct sample values in img.
func PoissonLevels(img *raster.Image) float64 {
	var seen [256]bool
	n := 0
	for _, v := range img.Pix {
		if !seen[v] {
			seen[v] = true
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return math.Pow(2, math.Ceil(math.Log2(float64(n))))
}

// =============================================================================
// Helpers
// =============================================================================

func normal(mu, sigma float64, rng *rand.Rand) func() float64 {
	d := distuv.Normal{Mu: mu, Sigma: sigma, Src: rng}
	return d.Rand
}

// saltPepperField marks amount/2 of the h×w locations white and another
// amount/2 black, sampled with replacement. Black is written second, so a
// location drawn for both ends up black.
func saltPepperField(rng *rand.Rand, h, w int, amount float64) *Field {
	f := NewField(h, w, 1)
	n := int(amount * float64(h*w) * 0.5)
	for _, mark := range []float64{1, -1} {
		for i := 0; i < n; i++ {
			f.Values[rng.IntN(h)*w+rng.IntN(w)] = mark
		}
	}
	return f
}

func add(img *raster.Image, f *Field) *raster.Image {
	out := img.Clone()
	for i, v := range img.Pix {
		out.Pix[i] = clip(float64(v) + f.Values[i])
	}
	return out
}

// impulse writes white or black across all channels wherever the
// one-channel location plane is non-zero.
func impulse(img *raster.Image, f *Field) {
	c := img.Channels
	for loc, mark := range f.Values {
		var v uint8
		switch {
		case mark > 0:
			v = 255
		case mark < 0:
			v = 0
		default:
			continue
		}
		for ch := 0; ch < c; ch++ {
			img.Pix[loc*c+ch] = v
		}
	}
}

// checkPlanes verifies that planes match img's resolution and carry the
// expected channel counts, in order.
func checkPlanes(img *raster.Image, planes []*Field, channels ...int) error {
	if len(planes) != len(channels) {
		return errors.New(errors.ErrCodeInternal, "expected %d noise planes, got %d", len(channels), len(planes))
	}
	for i, f := range planes {
		if f == nil || f.Height != img.Height || f.Width != img.Width || f.Channels != channels[i] {
			return errors.New(errors.ErrCodeInternal, "noise plane %d does not match image %dx%dx%d",
				i, img.Height, img.Width, channels[i])
		}
	}
	return nil
}

// clip saturates to [0, 255] and truncates toward zero.
func clip(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
