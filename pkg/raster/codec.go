package raster

import (
	"bufio"
	"image"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/matzehuels/grainscale/pkg/errors"
)

// SourceExtensions are the extensions considered when discovering input images.
var SourceExtensions = []string{".jpg", ".jpeg", ".png"}

// IsSourceImage reports whether name has one of SourceExtensions (case-insensitive).
func IsSourceImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Decode reads an image from r.
func Decode(r io.Reader) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageLoad, err, "decode image")
	}
	return FromImage(img), nil
}

// Load opens and decodes the image at path. Missing and corrupt files both
// report ErrCodeImageLoad.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageLoad, err, "open %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageLoad, err, "decode %s", path)
	}
	return FromImage(img), nil
}

// Probe reads only the header of the image at path and returns its size.
func Probe(path string) (Size, error) {
	f, err := os.Open(path)
	if err != nil {
		return Size{}, errors.Wrap(errors.ErrCodeImageLoad, err, "open %s", path)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return Size{}, errors.Wrap(errors.ErrCodeImageLoad, err, "decode %s", path)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// EncodePNG writes m to w as a lossless PNG.
func EncodePNG(w io.Writer, m *Image) error {
	return png.Encode(w, m.ToImage())
}

// Save writes m to path as PNG, creating parent directories. The file is
// flushed and closed on every return path; a failing Close is reported.
func Save(path string, m *Image) error {
	return SaveImage(path, m.ToImage())
}

// SaveImage writes any image.Image to path as PNG.
func SaveImage(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := png.Encode(w, img); err != nil {
		return err
	}
	return w.Flush()
}
