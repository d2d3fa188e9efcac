package consistency

import (
	"math"
	"testing"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/raster"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  Strategy
		code  errors.Code
	}{
		{"nothing requested", nil, DefaultStrategy, ""},
		{"blank names ignored", []string{"", "  "}, DefaultStrategy, ""},
		{"single", []string{"fixed_grain"}, FixedGrain, ""},
		{"alias", []string{"tile"}, MatrixRepeat, ""},
		{"same twice", []string{"power_law", "power-law"}, PowerLaw, ""},
		{"conflict", []string{"fixed_grain", "downscale_from_max"}, "", errors.ErrCodeConfigurationConflict},
		{"unknown", []string{"bilateral"}, "", errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.names...)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Errorf("Select(%v) error = %v, want code %s", tt.names, err, tt.code)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Select(%v) = %q, %v; want %q", tt.names, got, err, tt.want)
			}
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"grain", Policy{Strategy: FixedGrain, BaseSize: 64}, false},
		{"downscale ignores base", Policy{Strategy: DownscaleFromMax}, false},
		{"zero base", Policy{Strategy: MatrixRepeat}, true},
		{"negative alpha", Policy{Strategy: PowerLaw, BaseSize: 256, Alpha: -1}, true},
		{"unknown strategy", Policy{Strategy: "blur", BaseSize: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	p := Policy{Strategy: FixedGrain}
	p.SetDefaults()
	if p.BaseSize != DefaultGrainSize {
		t.Errorf("grain base = %d, want %d", p.BaseSize, DefaultGrainSize)
	}

	var q Policy
	q.SetDefaults()
	if q.Strategy != DefaultStrategy || q.BaseSize != DefaultReferenceSize {
		t.Errorf("zero policy defaults = %+v", q)
	}
}

func TestPowerLawFactor(t *testing.T) {
	const baseStd = 10.0
	for _, alpha := range []float64{0, 0.5, 1} {
		p := Policy{Strategy: PowerLaw, BaseSize: 256, Alpha: alpha}
		for _, size := range []int{128, 256, 512, 1024} {
			got := p.EffectiveParams(noise.Gaussian, noise.Params{Std: baseStd}, raster.Square(size)).Std
			want := baseStd * math.Pow(float64(size)/256, alpha)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("alpha=%v size=%d: std = %v, want %v", alpha, size, got, want)
			}
			if alpha == 0 && got != baseStd {
				t.Errorf("alpha=0 should keep std constant, got %v at %d", got, size)
			}
		}
	}
}

func TestPowerLawLinear(t *testing.T) {
	p := Policy{Strategy: PowerLaw, BaseSize: 128, Alpha: 1}
	got := p.EffectiveParams(noise.Uniform, noise.Params{Low: -5, High: 5}, raster.Size{Width: 512, Height: 256})
	if got.Low != -20 || got.High != 20 {
		t.Errorf("linear scale on long side = %v..%v, want -20..20", got.Low, got.High)
	}
}

func TestOtherStrategiesKeepParams(t *testing.T) {
	params := noise.Params{Std: 7}
	for _, s := range []Strategy{DownscaleFromMax, FixedGrain, MatrixRepeat} {
		p := Policy{Strategy: s, BaseSize: 128, Alpha: 1}
		if got := p.EffectiveParams(noise.Gaussian, params, raster.Square(1024)); got != params {
			t.Errorf("%s changed params to %+v", s, got)
		}
	}
}

func TestBaseShape(t *testing.T) {
	tests := []struct {
		name         string
		policy       Policy
		h, w         int
		wantH, wantW int
	}{
		{"grain square", Policy{Strategy: FixedGrain, BaseSize: 128}, 512, 512, 128, 128},
		{"grain landscape", Policy{Strategy: FixedGrain, BaseSize: 128}, 256, 512, 64, 128},
		{"grain portrait", Policy{Strategy: FixedGrain, BaseSize: 128}, 512, 256, 128, 64},
		{"grain smaller target", Policy{Strategy: FixedGrain, BaseSize: 128}, 64, 64, 64, 64},
		{"repeat exact", Policy{Strategy: MatrixRepeat, BaseSize: 128}, 512, 512, 128, 128},
		{"repeat remainder", Policy{Strategy: MatrixRepeat, BaseSize: 128}, 515, 515, 129, 129},
		{"repeat below base", Policy{Strategy: MatrixRepeat, BaseSize: 128}, 100, 100, 100, 100},
		{"power law", DefaultPolicy(), 300, 200, 300, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, w := tt.policy.BaseShape(tt.h, tt.w)
			if h != tt.wantH || w != tt.wantW {
				t.Errorf("BaseShape(%d, %d) = %dx%d, want %dx%d", tt.h, tt.w, h, w, tt.wantH, tt.wantW)
			}
		})
	}
}

// assertBlocks checks that every complete k×k block of f holds one value per channel.
func assertBlocks(t *testing.T, f *noise.Field, k int) {
	t.Helper()
	for by := 0; by+k <= f.Height; by += k {
		for bx := 0; bx+k <= f.Width; bx += k {
			for c := 0; c < f.Channels; c++ {
				v := f.At(by, bx, c)
				for y := by; y < by+k; y++ {
					for x := bx; x < bx+k; x++ {
						if f.At(y, x, c) != v {
							t.Fatalf("block (%d,%d) channel %d not constant at (%d,%d)", by, bx, c, y, x)
						}
					}
				}
			}
		}
	}
}

func TestGrainLockedBlocksAreConstant(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		size   int
		k      int
	}{
		{"fixed grain x4", Policy{Strategy: FixedGrain, BaseSize: 128}, 512, 4},
		{"fixed grain x2", Policy{Strategy: FixedGrain, BaseSize: 64}, 128, 2},
		{"matrix repeat x4", Policy{Strategy: MatrixRepeat, BaseSize: 128}, 512, 4},
		{"matrix repeat cropped", Policy{Strategy: MatrixRepeat, BaseSize: 128}, 515, 4},
	}

	m, err := noise.NewModel(noise.Gaussian, noise.Params{Std: 20})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planes := tt.policy.Planes(m, noise.NewRand(11, 0), tt.size, tt.size, 3)
			if len(planes) != 1 {
				t.Fatalf("got %d planes, want 1", len(planes))
			}
			f := planes[0]
			if f.Height != tt.size || f.Width != tt.size || f.Channels != 3 {
				t.Fatalf("plane shape %dx%dx%d, want %dx%dx3", f.Height, f.Width, f.Channels, tt.size, tt.size)
			}
			assertBlocks(t, f, tt.k)
		})
	}
}

func TestPowerLawPlanesAreIndependentSamples(t *testing.T) {
	m, _ := noise.NewModel(noise.Gaussian, noise.Params{Std: 20})
	f := DefaultPolicy().Planes(m, noise.NewRand(2, 0), 64, 64, 1)[0]
	if f.At(0, 0, 0) == f.At(0, 1, 0) && f.At(0, 0, 0) == f.At(1, 0, 0) {
		t.Error("power-law plane looks expanded, want per-pixel draws")
	}
}

func TestPoissonHasNoPlanes(t *testing.T) {
	m, _ := noise.NewModel(noise.Poisson, noise.Params{})
	p := Policy{Strategy: FixedGrain, BaseSize: 32}
	if planes := p.Planes(m, noise.NewRand(1, 0), 128, 128, 1); planes != nil {
		t.Errorf("poisson planes = %v, want nil", planes)
	}
}

func TestExpandNearest(t *testing.T) {
	f := noise.NewField(2, 2, 1)
	copy(f.Values, []float64{1, 2, 3, 4})
	out := ExpandNearest(f, 4, 4)
	want := []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	for i, v := range want {
		if out.Values[i] != v {
			t.Fatalf("ExpandNearest values = %v, want %v", out.Values, want)
		}
	}
}

func TestRepeatCrops(t *testing.T) {
	f := noise.NewField(2, 2, 1)
	copy(f.Values, []float64{1, 2, 3, 4})
	out := Repeat(f, 2, 3, 3)
	want := []float64{
		1, 1, 2,
		1, 1, 2,
		3, 3, 4,
	}
	for i, v := range want {
		if out.Values[i] != v {
			t.Fatalf("Repeat values = %v, want %v", out.Values, want)
		}
	}
}

func TestDisplayInterpolation(t *testing.T) {
	if got := (Policy{Strategy: FixedGrain}).DisplayInterpolation(); got != raster.Nearest {
		t.Errorf("fixed grain display = %s, want nearest", got)
	}
	if got := DefaultPolicy().DisplayInterpolation(); got != raster.Bicubic {
		t.Errorf("power law display = %s, want bicubic", got)
	}
}
