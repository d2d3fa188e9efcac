// Package sweep drives an external super-resolution model over a grid of
// inputs and parameters.
//
// The model is a black box: one process per [Point], taking a directory of
// images and writing results to an output directory. The [Runner] captures
// each process's stdout and stderr to log.txt in that directory, records
// the exit status, and never lets one failing point stop the rest.
//
// Successful points are remembered in a [cache.Cache] keyed by the full
// argument vector, so re-running a sweep only launches what is new or what
// failed. Config.Refresh disables the skip.
package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/grainscale/pkg/cache"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/observability"
	"github.com/matzehuels/grainscale/pkg/raster"
	"github.com/matzehuels/grainscale/pkg/store"
)

const cacheKeyType = "sweep"

// Runner executes sweeps.
type Runner struct {
	cfg    Config
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
	ledger store.Store
}

// NewRunner validates cfg. A nil cache disables skipping of finished
// points, a nil logger uses log.Default() and a nil ledger disables run
// records.
func NewRunner(cfg Config, c cache.Cache, logger *log.Logger, ledger store.Store) (*Runner, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		cfg:    cfg,
		cache:  c,
		keyer:  cache.NewDefaultKeyer(),
		logger: logger,
		ledger: ledger,
	}, nil
}

// Config returns the validated configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// cachedPoint is the cache entry for a finished point.
type cachedPoint struct {
	Dir         string    `json:"dir"`
	CompletedAt time.Time `json:"completed_at"`
}

// Run executes every point sequentially. The returned error is non-nil
// only for run-level problems: an unusable output root, a missing single
// image, or cancellation. Per-point failures are in the Summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), OutputRoot: r.cfg.OutputRoot, Started: start}

	if err := os.MkdirAll(r.cfg.OutputRoot, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create output root %s", r.cfg.OutputRoot)
	}

	inputs, err := r.inputs(summary)
	if err != nil {
		return nil, err
	}
	points := Points(r.cfg, inputs)
	r.logger.Info("sweep", "points", len(points), "output", r.cfg.OutputRoot)

	for i, p := range points {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		r.logger.Info("running", "point", p.Name(), "n", fmt.Sprintf("%d/%d", i+1, len(points)))
		res, err := r.runPoint(ctx, p)
		summary.Results = append(summary.Results, res)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}
	summary.Duration = time.Since(start)

	counts := summary.Counts()
	r.logger.Info("sweep complete",
		"ok", counts.Succeeded,
		"cached", summary.Cached(),
		"skipped", counts.Skipped,
		"failed", counts.Failed,
		"elapsed", summary.Duration.Round(time.Millisecond))

	r.record(ctx, summary)
	return summary, nil
}

// inputs resolves the input directories. In single-image mode the image is
// copied into temp_input, since the model only accepts a directory, and its
// long side is the base resolution. Missing input directories are recorded
// as skipped.
func (r *Runner) inputs(summary *Summary) ([]Input, error) {
	if r.cfg.Image != "" {
		size, err := raster.Probe(r.cfg.Image)
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(r.cfg.OutputRoot, TempInputDir)
		if err := copyInto(r.cfg.Image, dir); err != nil {
			return nil, err
		}
		return []Input{{Base: size.LongSide(), Dir: dir}}, nil
	}

	var inputs []Input
	for _, in := range r.cfg.Inputs {
		info, err := os.Stat(in.Dir)
		if err != nil || !info.IsDir() {
			r.logger.Warn("input dir missing, skipping", "base", in.Base, "path", in.Dir)
			summary.Results = append(summary.Results, Result{
				Point:  Point{Base: in.Base, Input: in.Dir},
				Status: StatusSkipped,
				Error:  "input directory not found",
			})
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// copyInto copies src into dir, keeping its name. An existing copy is kept.
func copyInto(src, dir string) (err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeImageLoad, err, "open %s", src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dst)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// runPoint executes one point. The error is non-nil only on cancellation.
func (r *Runner) runPoint(ctx context.Context, p Point) (Result, error) {
	outDir, err := filepath.Abs(filepath.Join(r.cfg.OutputRoot, p.Dir))
	if err != nil {
		return Result{Point: p, Status: StatusFailed, ExitCode: -1, Error: err.Error()}, nil
	}
	argv := Command(r.cfg, p, outDir)
	key := r.keyer.SweepKey(argv)
	logPath := filepath.Join(outDir, LogFile)
	res := Result{Point: p, LogPath: logPath}

	if !r.cfg.Refresh && r.finished(ctx, key, logPath) {
		r.logger.Info("already done, skipping", "point", p.Name())
		res.Status = StatusCached
		return res, nil
	}

	hooks := observability.Sweep()
	hooks.OnPointStart(ctx, p.Name())
	start := time.Now()
	exitCode, err := r.exec(ctx, argv, outDir, logPath)
	res.Duration = time.Since(start)
	res.ExitCode = exitCode
	hooks.OnPointComplete(ctx, p.Name(), exitCode, res.Duration)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Status = StatusFailed
			res.Error = ctxErr.Error()
			return res, ctxErr
		}
		res.Status = StatusFailed
		res.Error = err.Error()
		r.logger.Warn("point failed", "point", p.Name(), "exit_code", exitCode, "log", logPath, "err", err)
		return res, nil
	}

	res.Status = StatusOK
	r.remember(ctx, key, p)
	return res, nil
}

// exec runs argv with stdout and stderr written to logPath. A non-zero exit
// returns a *errors.SubprocessError; a process that never started reports
// exit code -1.
func (r *Runner) exec(ctx context.Context, argv []string, outDir, logPath string) (int, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return -1, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", outDir)
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return -1, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", logPath)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	r.logger.Debug("exec", "argv", argv, "dir", cmd.Dir)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), &errors.SubprocessError{ExitCode: exitErr.ExitCode(), LogPath: logPath}
		}
		fmt.Fprintf(logFile, "failed to start: %v\n", err)
		return -1, errors.Wrap(errors.ErrCodeSubprocessFailure, err, "start %s", argv[0])
	}
	return 0, nil
}

// finished reports whether key is cached and the point's log still exists.
func (r *Runner) finished(ctx context.Context, key, logPath string) bool {
	hooks := observability.Cache()
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache read failed", "err", err)
		return false
	}
	if !ok {
		hooks.OnCacheMiss(ctx, cacheKeyType)
		return false
	}
	var entry cachedPoint
	if err := json.Unmarshal(data, &entry); err != nil {
		hooks.OnCacheMiss(ctx, cacheKeyType)
		return false
	}
	if _, err := os.Stat(logPath); err != nil {
		hooks.OnCacheMiss(ctx, cacheKeyType)
		return false
	}
	hooks.OnCacheHit(ctx, cacheKeyType)
	return true
}

func (r *Runner) remember(ctx context.Context, key string, p Point) {
	data, err := json.Marshal(cachedPoint{Dir: p.Dir, CompletedAt: time.Now().UTC()})
	if err != nil {
		r.logger.Warn("cache write skipped", "point", p.Name(), "err", err)
		return
	}
	if err := r.cache.Set(ctx, key, data, 0); err != nil {
		r.logger.Warn("cache write skipped", "point", p.Name(), "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
}

func (r *Runner) record(ctx context.Context, summary *Summary) {
	if r.ledger == nil {
		return
	}
	rec, err := store.NewRecord(summary.RunID, store.KindSweep, summary.Counts(), summary)
	if err == nil {
		err = r.ledger.Save(ctx, rec)
	}
	if err != nil {
		r.logger.Warn("run record not saved", "run", summary.RunID, "err", err)
	}
}
