package raster

import (
	"image"
	"strings"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Interpolation selects the resampling kernel.
type Interpolation string

// Supported interpolation kinds.
const (
	Nearest  Interpolation = "nearest"
	Bilinear Interpolation = "bilinear"
	Bicubic  Interpolation = "bicubic"
	Lanczos  Interpolation = "lanczos"
)

// DefaultInterpolation matches the bicubic resize used for clean inputs.
const DefaultInterpolation = Bicubic

// ValidInterpolations is the set of supported interpolation kinds.
var ValidInterpolations = map[Interpolation]bool{
	Nearest:  true,
	Bilinear: true,
	Bicubic:  true,
	Lanczos:  true,
}

// ParseInterpolation converts a name (case-insensitive) into an Interpolation.
// "cubic" and "linear" are accepted as aliases.
func ParseInterpolation(s string) (Interpolation, error) {
	switch v := Interpolation(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return DefaultInterpolation, nil
	case "cubic":
		return Bicubic, nil
	case "linear":
		return Bilinear, nil
	default:
		if ValidInterpolations[v] {
			return v, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput,
		"invalid interpolation: %q (must be one of: nearest, bilinear, bicubic, lanczos)", s)
}

// Resize resamples m to size. The channel count is preserved. Resizing to the
// current size returns a copy without touching the samples.
func Resize(m *Image, size Size, interp Interpolation) (*Image, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	if size == m.Size() {
		return m.Clone(), nil
	}

	src := m.ToImage()
	switch interp {
	case Lanczos:
		return fromImage(imaging.Resize(src, size.Width, size.Height, imaging.Lanczos), m.Channels), nil
	case Nearest, Bilinear, Bicubic, "":
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid interpolation: %q", interp)
	}

	rect := image.Rect(0, 0, size.Width, size.Height)
	var dst draw.Image
	if m.Channels == 1 {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewNRGBA(rect)
	}
	scaler(interp).Scale(dst, rect, src, src.Bounds(), draw.Src, nil)
	return fromImage(dst, m.Channels), nil
}

func scaler(interp Interpolation) draw.Scaler {
	switch interp {
	case Nearest:
		return draw.NearestNeighbor
	case Bilinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// Median applies a kernel×kernel median filter. A kernel of 0 or 1 is a no-op
// and returns a copy; even kernels are rejected.
func Median(m *Image, kernel int) (*Image, error) {
	if kernel <= 1 {
		return m.Clone(), nil
	}
	if kernel%2 == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "median kernel must be odd, got %d", kernel)
	}

	g := gift.New(gift.Median(kernel, false))
	src := m.ToImage()
	var dst draw.Image
	if m.Channels == 1 {
		dst = image.NewGray(g.Bounds(src.Bounds()))
	} else {
		dst = image.NewNRGBA(g.Bounds(src.Bounds()))
	}
	g.Draw(dst, src)
	return fromImage(dst, m.Channels), nil
}
