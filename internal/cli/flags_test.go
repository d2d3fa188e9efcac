package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
)

func parsed(t *testing.T, args []string, register func(*cobra.Command)) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	register(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd
}

func TestStrategyFlagsApply(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		want      consistency.Strategy
		wantBase  int
		wantAlpha float64
		wantCode  errors.Code
	}{
		{"default", nil, consistency.PowerLaw, 256, 0.6, ""},
		{"shorthand", []string{"--fixed-grain"}, consistency.FixedGrain, 128, 0.6, ""},
		{"alias", []string{"--strategy", "tile"}, consistency.MatrixRepeat, 128, 0.6, ""},
		{"agreeing selections", []string{"--strategy", "fixed_grain", "--fixed-grain"}, consistency.FixedGrain, 128, 0.6, ""},
		{"base size", []string{"--fixed-grain", "--base-size", "64"}, consistency.FixedGrain, 64, 0.6, ""},
		{"alpha", []string{"--alpha", "1"}, consistency.PowerLaw, 256, 1, ""},
		{"downscale", []string{"--downscale-from-max"}, consistency.DownscaleFromMax, 256, 0.6, ""},
		{"conflict", []string{"--strategy", "power_law", "--matrix-repeat"}, "", 0, 0, errors.ErrCodeConfigurationConflict},
		{"two shorthands", []string{"--fixed-grain", "--downscale-from-max"}, "", 0, 0, errors.ErrCodeConfigurationConflict},
		{"unknown", []string{"--strategy", "wavelet"}, "", 0, 0, errors.ErrCodeInvalidConfig},
		{"negative alpha", []string{"--alpha", "-0.5"}, "", 0, 0, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f strategyFlags
			cmd := parsed(t, tt.args, f.register)
			p := consistency.DefaultPolicy()

			err := f.apply(cmd, &p)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if p.Strategy != tt.want || p.BaseSize != tt.wantBase || p.Alpha != tt.wantAlpha {
				t.Errorf("policy = %+v, want %s base=%d alpha=%v", p, tt.want, tt.wantBase, tt.wantAlpha)
			}
		})
	}
}

func TestNoiseFlagsKeepUnsetValues(t *testing.T) {
	var f noiseFlags
	cmd := parsed(t, []string{"--intensity", "7"}, func(c *cobra.Command) { f.register(c, 10) })

	cfg := batch.NoiseConfig{Kind: string(noise.Rician), Intensity: 3, Mean: 1}
	f.apply(cmd, &cfg)

	want := batch.NoiseConfig{Kind: string(noise.Rician), Intensity: 7, Mean: 1}
	if cfg != want {
		t.Errorf("noise = %+v, want %+v", cfg, want)
	}
}

func TestBatchOptsLoad(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "batch.toml")
	err := os.WriteFile(conf, []byte(`
input = "brain.png"
sizes = [512, 128]
seed = 9

[noise]
kind = "speckle"
intensity = 0.05

[consistency]
strategy = "fixed_grain"
base_size = 32
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		pos      []string
		check    func(t *testing.T, cfg batch.Config)
		wantCode errors.Code
	}{
		{
			name: "config file only",
			args: []string{"--config", conf},
			check: func(t *testing.T, cfg batch.Config) {
				if cfg.Input != "brain.png" || !slices.Equal(cfg.Sizes, []int{128, 512}) || cfg.Seed != 9 {
					t.Errorf("cfg = %+v", cfg)
				}
				if cfg.Noise.Kind != "speckle" || cfg.Consistency.Strategy != consistency.FixedGrain || cfg.Consistency.BaseSize != 32 {
					t.Errorf("noise/policy = %+v / %+v", cfg.Noise, cfg.Consistency)
				}
			},
		},
		{
			name: "flags override the file",
			args: []string{"--config", conf, "--sizes", "64,32,64", "--seed", "1", "--median", "3"},
			pos:  []string{"cat.png"},
			check: func(t *testing.T, cfg batch.Config) {
				if cfg.Input != "cat.png" || !slices.Equal(cfg.Sizes, []int{32, 64}) || cfg.Seed != 1 {
					t.Errorf("cfg = %+v", cfg)
				}
				if cfg.Degrade.MedianKernel != 3 || cfg.Consistency.BaseSize != 32 {
					t.Errorf("degrade/policy = %+v / %+v", cfg.Degrade, cfg.Consistency)
				}
			},
		},
		{
			name: "strategy flag resets base size",
			args: []string{"--config", conf, "--matrix-repeat"},
			check: func(t *testing.T, cfg batch.Config) {
				if cfg.Consistency.Strategy != consistency.MatrixRepeat || cfg.Consistency.BaseSize != consistency.DefaultGrainSize {
					t.Errorf("policy = %+v", cfg.Consistency)
				}
			},
		},
		{
			name: "defaults without a file",
			pos:  []string{"cat.png"},
			check: func(t *testing.T, cfg batch.Config) {
				if cfg.Noise.Intensity != batch.DefaultIntensity || cfg.Consistency.Strategy != consistency.PowerLaw {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{name: "no input", wantCode: errors.ErrCodeInvalidInput},
		{name: "missing file", args: []string{"--config", filepath.Join(dir, "nope.toml")}, wantCode: errors.ErrCodeFileNotFound},
		{name: "bad median", args: []string{"--median", "2"}, pos: []string{"cat.png"}, wantCode: errors.ErrCodeInvalidConfig},
		{name: "strict kind", args: []string{"--kind", "pink", "--strict-kind"}, pos: []string{"cat.png"}, wantCode: errors.ErrCodeInvalidNoiseKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o batchOpts
			cmd := parsed(t, tt.args, func(c *cobra.Command) { o.register(c) })

			cfg, err := o.load(cmd, tt.pos)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
