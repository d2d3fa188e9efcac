package sweep

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Point is one external model invocation.
type Point struct {
	Base          int     `json:"base"`
	Input         string  `json:"input"`
	Upscale       float64 `json:"upscale"`
	Steps         int     `json:"steps"`
	DecoderWeight float64 `json:"decoder_weight"`
	ColorFix      string  `json:"color_fix"`
	SeedMode      string  `json:"seed_mode"`
	Seed          int     `json:"seed"`
	Repeat        int     `json:"repeat"`

	// Dir is the point's output directory relative to the output root.
	Dir string `json:"dir"`
}

// Name is the point's directory with forward slashes, used in logs.
func (p Point) Name() string {
	return filepath.ToSlash(p.Dir)
}

// FormatScale prints a scale factor with at least one decimal, so 2 prints
// as "2.0" and 2.5 as "2.5".
func FormatScale(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ResolutionDir names the directory for a base resolution and upscale,
// with the decimal point replaced: base256_x2p0.
func ResolutionDir(base int, scale float64) string {
	return strings.ReplaceAll(fmt.Sprintf("base%d_x%s", base, FormatScale(scale)), ".", "p")
}

func paramsDir(steps int, w float64, colorFix string) string {
	return fmt.Sprintf("steps_%d_dec_%s_color_%s", steps, FormatScale(w), colorFix)
}

// Points enumerates the grid of cfg over the given inputs in a fixed
// order: seed mode, base, upscale, steps, decoder weight, color fix,
// repeat. The steps/decoder/color segment appears in Dir only when one of
// those axes has more than one value; run_{i} only when Repeats > 1.
func Points(cfg Config, inputs []Input) []Point {
	varied := len(cfg.Steps) > 1 || len(cfg.DecoderWeights) > 1 || len(cfg.ColorFix) > 1

	var points []Point
	for _, mode := range cfg.SeedModes {
		seed := cfg.Seed
		if mode == SeedRandom {
			seed = RandomSeed
		}
		for _, in := range inputs {
			for _, scale := range cfg.Upscales {
				for _, steps := range cfg.Steps {
					for _, w := range cfg.DecoderWeights {
						for _, cf := range cfg.ColorFix {
							for i := range cfg.Repeats {
								parts := []string{mode, ResolutionDir(in.Base, scale)}
								if varied {
									parts = append(parts, paramsDir(steps, w, cf))
								}
								if cfg.Repeats > 1 {
									parts = append(parts, fmt.Sprintf("run_%d", i))
								}
								points = append(points, Point{
									Base:          in.Base,
									Input:         in.Dir,
									Upscale:       scale,
									Steps:         steps,
									DecoderWeight: w,
									ColorFix:      cf,
									SeedMode:      mode,
									Seed:          seed,
									Repeat:        i,
									Dir:           filepath.Join(parts...),
								})
							}
						}
					}
				}
			}
		}
	}
	return points
}

// Command builds the argument vector for p. outDir is the absolute output
// directory of the point. Model paths left empty in cfg are omitted.
func Command(cfg Config, p Point, outDir string) []string {
	var argv []string
	if cfg.Python != "" {
		argv = append(argv, cfg.Python)
	}
	argv = append(argv, cfg.Script)
	for _, opt := range []struct{ flag, value string }{
		{"--config", cfg.ModelConfig},
		{"--ckpt", cfg.Checkpoint},
		{"--vqgan_ckpt", cfg.VQGANCheckpoint},
	} {
		if opt.value != "" {
			argv = append(argv, opt.flag, opt.value)
		}
	}
	argv = append(argv,
		"--init-img", p.Input,
		"--outdir", outDir,
		"--ddpm_steps", strconv.Itoa(p.Steps),
		"--dec_w", FormatScale(p.DecoderWeight),
		"--seed", strconv.Itoa(p.Seed),
		"--n_samples", strconv.Itoa(cfg.Samples),
		"--colorfix_type", p.ColorFix,
		"--upscale", FormatScale(p.Upscale),
		"--precision", cfg.Precision,
	)
	return append(argv, cfg.ExtraArgs...)
}
