package batch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/degrade"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/raster"
	"github.com/matzehuels/grainscale/pkg/store"
)

// Dataset output subfolder prefixes.
const (
	NoisyPrefix    = "noisy_"
	FilteredPrefix = "filtered_"
	UpscaledPrefix = "upscaled_"
)

// DatasetConfig degrades every image of a folder at one size.
type DatasetConfig struct {
	// Input is an image file or a directory of images.
	Input     string
	OutputDir string

	// Size is the square working size. Zero keeps each image's own size.
	Size int

	Noise       NoiseConfig
	Consistency consistency.Policy
	Degrade     degrade.Options
	Seed        uint64
	Workers     int
}

// FileOutcome is the result for one dataset image.
type FileOutcome struct {
	Name    string   `json:"name"`
	Status  Status   `json:"status"`
	Outputs []string `json:"outputs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// DatasetReport lists every image of a dataset run.
type DatasetReport struct {
	Kind     noise.Kind    `json:"kind"`
	FellBack bool          `json:"fell_back,omitempty"`
	Params   noise.Params  `json:"params"`
	Files    []FileOutcome `json:"files"`
	Duration time.Duration `json:"duration"`
}

// Counts totals the file outcomes.
func (r *DatasetReport) Counts() store.Counts {
	var c store.Counts
	for _, f := range r.Files {
		switch f.Status {
		case StatusOK:
			c.Succeeded++
		case StatusFailed:
			c.Failed++
		default:
			c.Skipped++
		}
	}
	return c
}

// ListImages returns the jpg/jpeg/png files of dir in lexical order, or
// input itself when it is a file.
func ListImages(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "input %s", input)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", input)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && raster.IsSourceImage(e.Name()) {
			files = append(files, filepath.Join(input, e.Name()))
		}
	}
	return files, nil
}

// ProcessDataset runs noise, median filter and upscale over every image of
// cfg.Input, writing each stage under OutputDir as noisy_{size}/,
// filtered_{size}/ and upscaled_{output}/ with the source file name and a
// .png extension. The filter and upscale folders are written only when the
// stage is enabled. An unreadable image is logged and recorded as failed.
func ProcessDataset(ctx context.Context, cfg DatasetConfig, logger *log.Logger) (*DatasetReport, error) {
	start := time.Now()
	if logger == nil {
		logger = log.Default()
	}
	if err := errors.ValidateOutputDir(cfg.OutputDir); err != nil {
		return nil, err
	}
	if cfg.Size < 0 {
		return nil, errors.New(errors.ErrCodeInvalidDimension, "size must be positive, got %d", cfg.Size)
	}
	if cfg.Noise.Kind == "" {
		cfg.Noise.Kind = string(noise.Gaussian)
	}
	kind, fellBack, err := noise.ResolveKind(cfg.Noise.Kind, cfg.Noise.Strict)
	if err != nil {
		return nil, err
	}
	if fellBack {
		logger.Warn("unknown noise kind, using fallback", "kind", cfg.Noise.Kind, "fallback", kind)
	}
	params := cfg.Noise.Params(kind)
	if err := params.Validate(kind); err != nil {
		return nil, err
	}
	cfg.Consistency.SetDefaults()
	if err := cfg.Consistency.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := degrade.New(cfg.Degrade, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	files, err := ListImages(cfg.Input)
	if err != nil {
		return nil, err
	}
	logger.Info("processing dataset",
		"images", len(files),
		"kind", kind,
		"param", params.Label(kind),
		"median", pipeline.Options().MedianKernel,
		"output", pipeline.Options().OutputSize)

	report := &DatasetReport{Kind: kind, FellBack: fellBack, Params: params, Files: make([]FileOutcome, len(files))}
	req := degrade.Request{Policy: cfg.Consistency, Kind: kind, Params: params}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := req
			r.Rand = noise.NewRand(cfg.Seed, uint64(i)+1)
			out := processFile(gctx, pipeline, path, cfg, r)
			if out.Status == StatusFailed {
				logger.Warn("image failed", "path", path, "err", out.Error)
			} else {
				logger.Debug("processed", "path", path)
			}
			report.Files[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

func processFile(ctx context.Context, p *degrade.Pipeline, path string, cfg DatasetConfig, req degrade.Request) FileOutcome {
	out := FileOutcome{Name: filepath.Base(path)}
	fail := func(err error) FileOutcome {
		out.Status = StatusFailed
		out.Error = err.Error()
		return out
	}

	clean, err := raster.Load(path)
	if err != nil {
		return fail(err)
	}
	target := clean.Size()
	if cfg.Size > 0 {
		target = raster.Square(cfg.Size)
	}
	res, err := p.Degrade(ctx, clean, target, req)
	if err != nil {
		return fail(err)
	}

	name := strings.TrimSuffix(out.Name, filepath.Ext(out.Name)) + ".png"
	tag := strconv.Itoa(target.LongSide())
	opts := p.Options()
	stages := []struct {
		dir string
		img *raster.Image
		on  bool
	}{
		{NoisyPrefix + tag, res.Noisy, true},
		{FilteredPrefix + tag, res.Smoothed, opts.MedianKernel > 1},
		{UpscaledPrefix + strconv.Itoa(opts.OutputSize), res.Image, opts.OutputSize > 0},
	}
	for _, s := range stages {
		if !s.on {
			continue
		}
		dst := filepath.Join(cfg.OutputDir, s.dir, name)
		if err := raster.Save(dst, s.img); err != nil {
			return fail(errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", dst))
		}
		out.Outputs = append(out.Outputs, dst)
	}
	out.Status = StatusOK
	return out
}

// StageDirs returns the subfolders ProcessDataset writes for the given
// working size, in pipeline order.
func StageDirs(size int, opts degrade.Options) []string {
	tag := strconv.Itoa(size)
	dirs := []string{NoisyPrefix + tag}
	if opts.MedianKernel > 1 {
		dirs = append(dirs, FilteredPrefix+tag)
	}
	if opts.OutputSize > 0 {
		dirs = append(dirs, UpscaledPrefix+strconv.Itoa(opts.OutputSize))
	}
	return dirs
}
