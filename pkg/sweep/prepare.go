package sweep

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// DefaultPrepareScales are the downscale factors Prepare uses by default.
var DefaultPrepareScales = []float64{1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0}

// Prepare writes Lanczos-downscaled copies of the image at src into dir,
// repeats copies per scale, so one model invocation can process every
// scale at once. Scale 1 is written as original_{i}.png and the rest as
// down_{scale}x_{i}.png, with i counting from 1. Downscaled sizes are
// truncated. dir is emptied first. The written paths are returned in order.
func Prepare(src, dir string, scales []float64, repeats int) ([]string, error) {
	if len(scales) == 0 {
		scales = DefaultPrepareScales
	}
	if repeats <= 0 {
		repeats = 1
	}
	if err := errors.ValidateOutputDir(dir); err != nil {
		return nil, err
	}
	img, err := raster.Load(src)
	if err != nil {
		return nil, err
	}

	// Validate every scale before touching dir.
	sizes := make([]raster.Size, len(scales))
	for i, s := range scales {
		if s < 1 {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "downscale factor must be >= 1, got %g", s)
		}
		size := raster.Size{Width: int(float64(img.Width) / s), Height: int(float64(img.Height) / s)}
		if err := size.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidDimension, err, "scale %g of %dx%d", s, img.Width, img.Height)
		}
		sizes[i] = size
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "clear %s", dir)
	}

	var paths []string
	for i, s := range scales {
		name := "original"
		resized := img
		if s != 1 {
			name = fmt.Sprintf("down_%sx", FormatScale(s))
			if resized, err = raster.Resize(img, sizes[i], raster.Lanczos); err != nil {
				return paths, err
			}
		}
		for n := 1; n <= repeats; n++ {
			path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", name, n))
			if err := raster.Save(path, resized); err != nil {
				return paths, errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
