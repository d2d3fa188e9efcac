// Package compare assembles the side-by-side comparison strip.
//
// Every panel is resampled to a common display height and annotated with its
// resolution and the effective noise parameter. Annotation is drawn on the
// display copy; the pipeline outputs passed in are never modified.
package compare

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// Defaults for Options.
const (
	DefaultHeight    = 256
	DefaultTextScale = 2
)

// Label baselines, in display pixels from the top-left corner.
const (
	labelX         = 10
	firstBaseline  = 30
	secondBaseline = 60
)

// Options controls the display copies.
type Options struct {
	Height        int
	Interpolation raster.Interpolation
	TextScale     int
}

func (o *Options) setDefaults() {
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Interpolation == "" {
		o.Interpolation = raster.Bicubic
	}
	if o.TextScale <= 0 {
		o.TextScale = DefaultTextScale
	}
}

// Panel is one entry of the strip.
type Panel struct {
	Size    raster.Size
	Image   *raster.Image
	Caption string // second label line, e.g. "std=12.3" or "from 512x512"
}

// Artifact is the ordered panel list and the strip rendered from it.
type Artifact struct {
	Panels []Panel
	Image  *image.NRGBA
}

// Build renders panels left to right in the given order.
func Build(panels []Panel, opts Options) (*Artifact, error) {
	if len(panels) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "comparison needs at least one panel")
	}
	opts.setDefaults()

	copies := make([]*image.NRGBA, len(panels))
	total := 0
	for i, p := range panels {
		c, err := displayCopy(p, opts)
		if err != nil {
			return nil, err
		}
		copies[i] = c
		total += c.Bounds().Dx()
	}

	strip := image.NewNRGBA(image.Rect(0, 0, total, opts.Height))
	x := 0
	for _, c := range copies {
		draw.Copy(strip, image.Pt(x, 0), c, c.Bounds(), draw.Src, nil)
		x += c.Bounds().Dx()
	}
	return &Artifact{Panels: panels, Image: strip}, nil
}

// Save writes the strip as PNG.
func (a *Artifact) Save(path string) error {
	return raster.SaveImage(path, a.Image)
}

// displayCopy resamples p to the display height, keeping its aspect ratio,
// and draws the two label lines.
func displayCopy(p Panel, opts Options) (*image.NRGBA, error) {
	if p.Image == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "panel %s has no image", p.Size)
	}
	w := max(1, p.Image.Width*opts.Height/p.Image.Height)
	resized, err := raster.Resize(p.Image, raster.Size{Width: w, Height: opts.Height}, opts.Interpolation)
	if err != nil {
		return nil, err
	}
	out := resized.ToNRGBA()
	drawLabel(out, labelX, firstBaseline, p.Size.String(), opts.TextScale)
	if p.Caption != "" {
		drawLabel(out, labelX, secondBaseline, p.Caption, opts.TextScale)
	}
	return out, nil
}

// drawLabel renders s in white with a one-pixel dark shadow, magnified by
// scale with nearest-neighbor so the bitmap font stays crisp.
func drawLabel(dst *image.NRGBA, x, baseline int, s string, scale int) {
	face := basicfont.Face7x13
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	w := font.MeasureString(face, s).Ceil() + 1
	h := m.Height.Ceil() + 1

	txt := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  txt,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(1, ascent+1),
	}
	d.DrawString(s)
	d.Src = image.White
	d.Dot = fixed.P(0, ascent)
	d.DrawString(s)

	top := baseline - ascent*scale
	r := image.Rect(x, top, x+w*scale, top+h*scale)
	draw.NearestNeighbor.Scale(dst, r, txt, txt.Bounds(), draw.Over, nil)
}
