// Package batch runs the degradation pipeline over a set of target
// resolutions and assembles the comparison strip.
//
// A [Driver] is built from an explicit [Config]. [Driver.Run] discovers the
// clean source for every size, degrades each one, writes
// original_{size}.png and noisy_{size}.png, and renders
// comparison_noisy.png from whatever succeeded. Missing or unreadable
// sources are skipped with a warning; a failing size never aborts the
// others. The returned [Report] lists successes, skips and failures.
//
// Under downscale_from_max the largest available size is degraded once and
// every smaller size is derived from it, sequentially. All other strategies
// degrade sizes in parallel, bounded by Config.Workers.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/grainscale/pkg/compare"
	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/degrade"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/raster"
	"github.com/matzehuels/grainscale/pkg/store"
)

// ComparisonFile is the name of the strip written to the output directory.
const ComparisonFile = "comparison_noisy.png"

// Driver owns one configuration and runs it.
type Driver struct {
	cfg      Config
	kind     noise.Kind
	fellBack bool
	pipeline *degrade.Pipeline
	logger   *log.Logger
	ledger   store.Store
}

// NewDriver validates cfg. A nil logger uses log.Default(); a nil ledger
// disables run records.
func NewDriver(cfg Config, logger *log.Logger, ledger store.Store) (*Driver, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	kind, fellBack, err := cfg.ResolveKind()
	if err != nil {
		return nil, err
	}
	p, err := degrade.New(cfg.Degrade, logger)
	if err != nil {
		return nil, err
	}
	return &Driver{
		cfg:      cfg,
		kind:     kind,
		fellBack: fellBack,
		pipeline: p,
		logger:   logger,
		ledger:   ledger,
	}, nil
}

// Config returns the validated configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// job is the per-size work item. Each job is touched by one goroutine.
type job struct {
	size    int
	clean   *raster.Image
	outcome *Outcome
	result  *degrade.Result
}

// Run executes the batch. The error is non-nil only for run-level problems
// (bad input path, cancellation, unwritable comparison); per-size problems
// are reported in the Report.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	kind, fellBack := d.kind, d.fellBack
	if fellBack {
		d.logger.Warn("unknown noise kind, using fallback", "kind", d.cfg.Noise.Kind, "fallback", kind)
	}
	params := d.cfg.BaseParams(kind)

	report := &Report{
		RunID:         uuid.NewString(),
		RequestedKind: d.cfg.Noise.Kind,
		Kind:          kind,
		FellBack:      fellBack,
		Policy:        d.cfg.Consistency,
		Params:        params,
		OutputDir:     d.cfg.OutputDir,
		Outcomes:      make([]Outcome, len(d.cfg.Sizes)),
		Started:       start,
	}

	inputs, err := Discover(d.cfg.Input, d.cfg.Tag, d.cfg.Sizes)
	if err != nil {
		return nil, err
	}
	jobs := d.load(inputs, report)

	d.logger.Info("degrading",
		"sizes", len(jobs),
		"kind", kind,
		"policy", d.cfg.Consistency,
		"base", params.Label(kind))

	req := degrade.Request{Policy: d.cfg.Consistency, Kind: kind, Params: params}
	if d.cfg.Consistency.Strategy == consistency.DownscaleFromMax {
		err = d.runDerived(ctx, jobs, req)
	} else {
		err = d.runParallel(ctx, jobs, req)
	}
	if err != nil {
		return report, err
	}

	if err := d.writeComparison(report, jobs); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	counts := report.Counts()
	d.logger.Info("batch complete",
		"ok", counts.Succeeded,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
		"duration", report.Duration)
	d.record(ctx, report)
	return report, nil
}

// load reads the clean source for every size. A single input is read once
// and shared read-only across sizes.
func (d *Driver) load(inputs *Inputs, report *Report) []*job {
	var shared *raster.Image
	var sharedErr error
	if inputs.Single != "" {
		shared, sharedErr = raster.Load(inputs.Single)
	}

	var jobs []*job
	for i, size := range d.cfg.Sizes {
		o := &report.Outcomes[i]
		o.Size = size
		o.Source = inputs.Path(size)

		var clean *raster.Image
		var err error
		switch {
		case inputs.Single != "":
			clean, err = shared, sharedErr
		case o.Source == "":
			err = inputs.Missing[size]
		default:
			clean, err = raster.Load(o.Source)
		}
		if err != nil {
			o.Status = StatusSkipped
			o.Error = err.Error()
			d.logger.Warn("skipping size", "size", size, "path", o.Source, "err", err)
			continue
		}
		jobs = append(jobs, &job{size: size, clean: clean, outcome: o})
	}
	return jobs
}

// runParallel degrades every job independently.
func (d *Driver) runParallel(ctx context.Context, jobs []*job, req degrade.Request) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := req
			r.Rand = noise.NewRand(d.cfg.Seed, uint64(j.size))
			res, err := d.pipeline.Degrade(gctx, j.clean, raster.Square(j.size), r)
			d.finish(j, res, err)
			return nil
		})
	}
	return g.Wait()
}

// runDerived degrades the largest size and derives the rest from it. When
// the largest fails, the next largest becomes the source.
func (d *Driver) runDerived(ctx context.Context, jobs []*job, req degrade.Request) error {
	var source *degrade.Result
	for i := len(jobs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		j := jobs[i]
		if source == nil {
			r := req
			r.Rand = noise.NewRand(d.cfg.Seed, uint64(j.size))
			res, err := d.pipeline.Degrade(ctx, j.clean, raster.Square(j.size), r)
			d.finish(j, res, err)
			if err == nil {
				source = res
			}
			continue
		}
		res, err := d.pipeline.Derive(source, raster.Square(j.size))
		if err == nil {
			res.Clean, err = raster.Resize(j.clean, res.Size, d.cfg.Degrade.Interpolation)
		}
		d.finish(j, res, err)
	}
	return nil
}

// finish records the outcome of one size and writes its images.
func (d *Driver) finish(j *job, res *degrade.Result, err error) {
	o := j.outcome
	if err == nil {
		err = d.writeOutputs(j, res)
	}
	if err != nil {
		o.Status = StatusFailed
		o.Error = err.Error()
		d.logger.Warn("size failed", "size", j.size, "err", err)
		return
	}

	j.result = res
	o.Status = StatusOK
	o.Params = res.Params
	o.Duration = res.Duration
	if res.Derived() {
		o.DerivedFrom = res.DerivedFrom.Width
		o.Label = "from " + strconv.Itoa(res.DerivedFrom.Width) + " " + res.Params.Label(d.kind)
	} else {
		o.Label = res.Params.Label(d.kind)
	}
	d.logger.Debug("wrote size", "size", j.size, "noisy", o.Noisy, "label", o.Label)
}

func (d *Driver) writeOutputs(j *job, res *degrade.Result) error {
	o := j.outcome
	original := filepath.Join(d.cfg.OutputDir, fmt.Sprintf("original_%d.png", j.size))
	noisy := filepath.Join(d.cfg.OutputDir, fmt.Sprintf("noisy_%d.png", j.size))
	if err := raster.Save(original, res.Clean); err != nil {
		return fmt.Errorf("write %s: %w", original, err)
	}
	if err := raster.Save(noisy, res.Image); err != nil {
		return fmt.Errorf("write %s: %w", noisy, err)
	}
	o.Original, o.Noisy = original, noisy
	return nil
}

// writeComparison renders the strip from successful sizes in ascending order.
func (d *Driver) writeComparison(report *Report, jobs []*job) error {
	var panels []compare.Panel
	for _, j := range jobs {
		if j.result == nil {
			continue
		}
		panels = append(panels, compare.Panel{
			Size:    raster.Square(j.size),
			Image:   j.result.Image,
			Caption: j.outcome.Label,
		})
	}
	if len(panels) == 0 {
		d.logger.Warn("no size succeeded, comparison not written")
		return nil
	}

	artifact, err := compare.Build(panels, compare.Options{
		Height:        d.cfg.Display.Height,
		Interpolation: d.cfg.DisplayInterpolation(),
	})
	if err != nil {
		return fmt.Errorf("comparison: %w", err)
	}
	path := filepath.Join(d.cfg.OutputDir, ComparisonFile)
	if err := artifact.Save(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	report.Comparison = path
	report.Panels = len(panels)
	return nil
}

// record stores the report in the ledger. Failures are logged, not returned.
func (d *Driver) record(ctx context.Context, report *Report) {
	if d.ledger == nil {
		return
	}
	rec, err := store.NewRecord(report.RunID, store.KindBatch, report.Counts(), report)
	if err == nil {
		err = d.ledger.Save(ctx, rec)
	}
	if err != nil {
		d.logger.Warn("run record not saved", "run", report.RunID, "err", err)
		return
	}
	d.logger.Debug("run recorded", "run", report.RunID)
}
