package consistency

import "github.com/matzehuels/grainscale/pkg/noise"

// ExpandNearest resizes f to height×width by nearest-neighbor duplication:
// target (y, x) reads base (floor(y·bh/h), floor(x·bw/w)). No values are
// interpolated, so at an integer factor k every k×k block is constant.
func ExpandNearest(f *noise.Field, height, width int) *noise.Field {
	out := noise.NewField(height, width, f.Channels)
	c := f.Channels
	for y := 0; y < height; y++ {
		sy := y * f.Height / height
		for x := 0; x < width; x++ {
			sx := x * f.Width / width
			src := (sy*f.Width + sx) * c
			dst := (y*width + x) * c
			copy(out.Values[dst:dst+c], f.Values[src:src+c])
		}
	}
	return out
}

// Repeat tiles every cell of f into a k×k block and crops the result to
// height×width.
func Repeat(f *noise.Field, k, height, width int) *noise.Field {
	out := noise.NewField(height, width, f.Channels)
	c := f.Channels
	for y := 0; y < height; y++ {
		sy := min(y/k, f.Height-1)
		for x := 0; x < width; x++ {
			sx := min(x/k, f.Width-1)
			src := (sy*f.Width + sx) * c
			dst := (y*width + x) * c
			copy(out.Values[dst:dst+c], f.Values[src:src+c])
		}
	}
	return out
}
