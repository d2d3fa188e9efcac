package noise

// Field is a plane of per-sample perturbation values before clipping.
// Values are row-major with Channels values per location, matching the
// layout of raster.Image.
type Field struct {
	Height   int
	Width    int
	Channels int
	Values   []float64
}

// NewField allocates a zeroed field.
func NewField(height, width, channels int) *Field {
	return &Field{
		Height:   height,
		Width:    width,
		Channels: channels,
		Values:   make([]float64, height*width*channels),
	}
}

// At returns value (y, x, c).
func (f *Field) At(y, x, c int) float64 {
	return f.Values[(y*f.Width+x)*f.Channels+c]
}

// Set stores value (y, x, c).
func (f *Field) Set(y, x, c int, v float64) {
	f.Values[(y*f.Width+x)*f.Channels+c] = v
}

// fill draws every value from sample.
func (f *Field) fill(sample func() float64) *Field {
	for i := range f.Values {
		f.Values[i] = sample()
	}
	return f
}
