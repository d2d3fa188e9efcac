// Package degrade produces one degraded image at one target resolution.
//
// A [Pipeline] runs, in order:
//
//  1. Resample the clean image to the target size.
//  2. Draw the noise planes under the request's consistency policy.
//  3. Perturb the resampled image with the noise model.
//  4. Median-smooth the noisy image (when MedianKernel > 1).
//  5. Resample to the canonical output size (when OutputSize > 0).
//
// Under the downscale-from-maximum strategy the caller degrades the largest
// size once and obtains every smaller size from [Pipeline.Derive], which
// resamples the stage-4 image of that shared result instead of drawing new
// noise.
//
//	p, err := degrade.New(degrade.Options{Interpolation: raster.Bicubic}, logger)
//	res, err := p.Degrade(ctx, clean, raster.Square(256), degrade.Request{
//	    Policy: consistency.DefaultPolicy(),
//	    Kind:   noise.Gaussian,
//	    Params: noise.Params{Std: 10},
//	    Rand:   noise.NewRand(seed, 256),
//	})
package degrade

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/observability"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// =============================================================================
// Options
// =============================================================================

// Options configures the optional pipeline stages.
type Options struct {
	// Interpolation is used for steps 1 and 5 and for Derive.
	Interpolation raster.Interpolation `json:"interpolation,omitempty" toml:"interpolation"`

	// MedianKernel enables step 4 when greater than 1. Must be odd.
	MedianKernel int `json:"median_kernel,omitempty" toml:"median_kernel"`

	// OutputSize enables step 5: a square resample to this side length.
	OutputSize int `json:"output_size,omitempty" toml:"output_size"`
}

// ValidateAndSetDefaults fills defaults and rejects invalid values.
func (o *Options) ValidateAndSetDefaults() error {
	interp, err := raster.ParseInterpolation(string(o.Interpolation))
	if err != nil {
		return err
	}
	o.Interpolation = interp
	if o.MedianKernel < 0 || (o.MedianKernel > 1 && o.MedianKernel%2 == 0) {
		return errors.New(errors.ErrCodeInvalidConfig,
			"median kernel must be odd and positive, got %d", o.MedianKernel)
	}
	if o.OutputSize < 0 {
		return errors.New(errors.ErrCodeInvalidDimension,
			"output size must be positive, got %d", o.OutputSize)
	}
	return nil
}

// =============================================================================
// Request / Result
// =============================================================================

// Request is one degradation call. Params are the base (reference)
// parameters; the policy derives the effective ones per size.
type Request struct {
	Policy consistency.Policy
	Kind   noise.Kind
	Params noise.Params

	// Rand drives every draw of this call. Nil draws from a random seed.
	Rand *rand.Rand
}

// Result holds the output and the intermediate images of each stage.
type Result struct {
	// Size is the target resolution of steps 1 to 4.
	Size raster.Size

	// Clean is the step 1 output (nil for derived results). Noisy is step 3;
	// Smoothed is step 4 (Noisy when disabled); Image is the final output
	// (Smoothed when step 5 is disabled).
	Clean    *raster.Image
	Noisy    *raster.Image
	Smoothed *raster.Image
	Image    *raster.Image

	// Params are the effective parameters applied at Size.
	Params noise.Params

	// DerivedFrom is the source size when the result came from Derive.
	DerivedFrom raster.Size

	Duration time.Duration
}

// Derived reports whether the result was resampled from another result.
func (r *Result) Derived() bool {
	return r.DerivedFrom != raster.Size{}
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline is safe for concurrent use; each call owns its arrays.
type Pipeline struct {
	opts   Options
	logger *log.Logger
}

// New validates opts and returns a pipeline. A nil logger discards output.
func New(opts Options, logger *log.Logger) (*Pipeline, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Pipeline{opts: opts, logger: logger}, nil
}

// Options returns the validated options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Degrade runs steps 1 to 5 for one target size. The policy (with defaults
// filled) and kind are validated before any array is allocated. clean is not
// modified.
func (p *Pipeline) Degrade(ctx context.Context, clean *raster.Image, target raster.Size, req Request) (res *Result, err error) {
	policy := req.Policy
	policy.SetDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	effective := policy.EffectiveParams(req.Kind, req.Params, target)
	model, err := noise.NewModel(req.Kind, effective)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	hooks := observability.Degrade()
	hooks.OnDegradeStart(ctx, target.String(), string(req.Kind), string(policy.Strategy))
	defer func() {
		hooks.OnDegradeComplete(ctx, target.String(), string(req.Kind), string(policy.Strategy), time.Since(start), err)
	}()

	rng := req.Rand
	if rng == nil {
		rng = noise.NewRand(0, uint64(target.LongSide()))
	}

	resampled, err := raster.Resize(clean, target, p.opts.Interpolation)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	if policy.Strategy.GrainLocked() && req.Kind == noise.Poisson {
		p.logger.Debug("poisson noise depends on pixel values, drawing at target",
			"size", target, "strategy", policy.Strategy)
	}
	planes := policy.Planes(model, rng, resampled.Height, resampled.Width, resampled.Channels)
	noisy, err := model.Perturb(resampled, planes, rng)
	if err != nil {
		return nil, fmt.Errorf("perturb: %w", err)
	}

	res = &Result{Size: target, Clean: resampled, Noisy: noisy, Params: effective}
	if err := p.finish(res, noisy); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	p.logger.Debug("degraded",
		"size", target,
		"kind", req.Kind,
		"strategy", policy.Strategy,
		"params", effective.Label(req.Kind),
		"duration", res.Duration)
	return res, nil
}

// Derive produces the result at target by resampling from's stage-4 image.
// No noise is drawn, so the output is a deterministic function of from.
func (p *Pipeline) Derive(from *Result, target raster.Size) (*Result, error) {
	if from == nil || from.Smoothed == nil {
		return nil, errors.New(errors.ErrCodeInternal, "derive needs a completed source result")
	}
	start := time.Now()
	derived, err := raster.Resize(from.Smoothed, target, p.opts.Interpolation)
	if err != nil {
		return nil, fmt.Errorf("derive: %w", err)
	}
	res := &Result{
		Size:        target,
		Noisy:       derived,
		Params:      from.Params,
		DerivedFrom: from.Size,
	}
	// Smoothing already happened at the source size.
	res.Smoothed = derived
	if err := p.resampleOutput(res); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	p.logger.Debug("derived", "size", target, "from", from.Size, "duration", res.Duration)
	return res, nil
}

// finish runs steps 4 and 5.
func (p *Pipeline) finish(res *Result, noisy *raster.Image) error {
	res.Smoothed = noisy
	if p.opts.MedianKernel > 1 {
		smoothed, err := raster.Median(noisy, p.opts.MedianKernel)
		if err != nil {
			return fmt.Errorf("smooth: %w", err)
		}
		res.Smoothed = smoothed
	}
	return p.resampleOutput(res)
}

func (p *Pipeline) resampleOutput(res *Result) error {
	res.Image = res.Smoothed
	if p.opts.OutputSize <= 0 {
		return nil
	}
	out, err := raster.Resize(res.Smoothed, raster.Square(p.opts.OutputSize), p.opts.Interpolation)
	if err != nil {
		return fmt.Errorf("output resample: %w", err)
	}
	res.Image = out
	return nil
}
