package raster

import (
	"fmt"
	"image"
	"image/color"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Image is an H×W×C grid of 8-bit intensities, stored row-major.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// Size is a target resolution in pixels.
type Size struct {
	Width  int
	Height int
}

// Square returns an n×n size.
func Square(n int) Size {
	return Size{Width: n, Height: n}
}

// LongSide returns the larger of width and height.
func (s Size) LongSide() int {
	return max(s.Width, s.Height)
}

// Validate reports an InvalidDimension error for non-positive sizes.
func (s Size) Validate() error {
	return errors.ValidateDimension(s.Width, s.Height)
}

// String formats the size as WxH.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// New allocates a zeroed image. Channels must be 1 or 3.
func New(height, width, channels int) (*Image, error) {
	if err := errors.ValidateDimension(width, height); err != nil {
		return nil, err
	}
	if channels != 1 && channels != 3 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported channel count %d", channels)
	}
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
	}, nil
}

// Filled returns an image with every sample set to v.
func Filled(height, width, channels int, v uint8) (*Image, error) {
	m, err := New(height, width, channels)
	if err != nil {
		return nil, err
	}
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m, nil
}

// Size returns the image resolution.
func (m *Image) Size() Size {
	return Size{Width: m.Width, Height: m.Height}
}

// Locations returns the number of pixel locations (H×W).
func (m *Image) Locations() int {
	return m.Height * m.Width
}

// Offset returns the index of sample (y, x, c) in Pix.
func (m *Image) Offset(y, x, c int) int {
	return (y*m.Width+x)*m.Channels + c
}

// At returns sample (y, x, c).
func (m *Image) At(y, x, c int) uint8 {
	return m.Pix[m.Offset(y, x, c)]
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = make([]uint8, len(m.Pix))
	copy(out.Pix, m.Pix)
	return &out
}

// SameShape reports whether o has the same height, width and channel count.
func (m *Image) SameShape(o *Image) bool {
	return m.Height == o.Height && m.Width == o.Width && m.Channels == o.Channels
}

// Equal reports whether o has the same shape and samples.
func (m *Image) Equal(o *Image) bool {
	if !m.SameShape(o) {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts a decoded image. Gray sources keep one channel;
// all others become RGB.
func FromImage(src image.Image) *Image {
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		return fromImage(src, 1)
	}
	return fromImage(src, 3)
}

func fromImage(src image.Image, channels int) *Image {
	b := src.Bounds()
	m := &Image{
		Height:   b.Dy(),
		Width:    b.Dx(),
		Channels: channels,
		Pix:      make([]uint8, b.Dx()*b.Dy()*channels),
	}

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < m.Height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+m.Width*4]
			for x := 0; x < m.Width; x++ {
				p := row[x*4 : x*4+3]
				if channels == 1 {
					m.Pix[y*m.Width+x] = p[0]
					continue
				}
				copy(m.Pix[(y*m.Width+x)*3:], p)
			}
		}
		return m
	case *image.Gray:
		for y := 0; y < m.Height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+m.Width]
			for x, v := range row {
				if channels == 1 {
					m.Pix[y*m.Width+x] = v
					continue
				}
				i := (y*m.Width + x) * 3
				m.Pix[i], m.Pix[i+1], m.Pix[i+2] = v, v, v
			}
		}
		return m
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			if channels == 1 {
				g := color.GrayModel.Convert(c).(color.Gray)
				m.Pix[y*m.Width+x] = g.Y
				continue
			}
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			i := (y*m.Width + x) * 3
			m.Pix[i], m.Pix[i+1], m.Pix[i+2] = n.R, n.G, n.B
		}
	}
	return m
}

// ToImage returns an *image.Gray for one channel, otherwise an opaque *image.NRGBA.
func (m *Image) ToImage() image.Image {
	if m.Channels == 1 {
		g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
		copy(g.Pix, m.Pix)
		return g
	}
	return m.ToNRGBA()
}

// ToNRGBA returns an opaque RGBA copy; gray images are replicated to RGB.
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i := 0; i < m.Locations(); i++ {
		d := out.Pix[i*4 : i*4+4]
		if m.Channels == 1 {
			v := m.Pix[i]
			d[0], d[1], d[2] = v, v, v
		} else {
			copy(d, m.Pix[i*3:i*3+3])
		}
		d[3] = 0xff
	}
	return out
}
