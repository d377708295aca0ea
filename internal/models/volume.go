package models

import (
	"fmt"
	"image"
)

// Volume represents a multi-channel microscopy volume
type Volume struct {
	// Data holds every sample as a 1D array ordered by channel, then slice,
	// then row, then column
	Data []float64

	// Width is the width of the volume in pixels
	Width int

	// Height is the height of the volume in pixels
	Height int

	// Channels is the number of acquisition channels
	Channels int

	// Slices is the number of Z positions
	Slices int

	// Name is the file name the volume was opened from, if any
	Name string

	closer func() error
}

// NewVolume allocates a zero-filled volume
func NewVolume(width, height, channels, slices int) *Volume {
	return &Volume{
		Data:     make([]float64, width*height*channels*slices),
		Width:    width,
		Height:   height,
		Channels: channels,
		Slices:   slices,
	}
}

// Index returns the position of sample (c, z, x, y) in Data. All
// coordinates are zero-based.
func (v *Volume) Index(c, z, x, y int) int {
	return ((c*v.Slices+z)*v.Height+y)*v.Width + x
}

// At returns the sample at (c, z, x, y)
func (v *Volume) At(c, z, x, y int) float64 {
	return v.Data[v.Index(c, z, x, y)]
}

// Set stores a sample at (c, z, x, y)
func (v *Volume) Set(c, z, x, y int, value float64) {
	v.Data[v.Index(c, z, x, y)] = value
}

// Plane returns the samples of one channel at one slice as a view into Data
func (v *Volume) Plane(c, z int) []float64 {
	start := v.Index(c, z, 0, 0)
	return v.Data[start : start+v.Width*v.Height]
}

// Bounds returns the spatial frame of the volume
func (v *Volume) Bounds() image.Rectangle {
	return image.Rect(0, 0, v.Width, v.Height)
}

// Validate checks that dimensions and data length agree
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Slices <= 0 || v.Channels < 0 {
		return fmt.Errorf("invalid volume dimensions %dx%d, %d channels, %d slices",
			v.Width, v.Height, v.Channels, v.Slices)
	}
	if len(v.Data) != v.Width*v.Height*v.Channels*v.Slices {
		return fmt.Errorf("volume data has %d samples, expected %d",
			len(v.Data), v.Width*v.Height*v.Channels*v.Slices)
	}
	return nil
}

// OnClose registers a release function run by Close. Image sources use it to
// tie file handles or decoder buffers to the lifetime of the volume.
func (v *Volume) OnClose(fn func() error) {
	v.closer = fn
}

// Close releases resources held on behalf of the volume. It is safe to call
// more than once.
func (v *Volume) Close() error {
	fn := v.closer
	v.closer = nil
	v.Data = nil
	if fn != nil {
		return fn()
	}
	return nil
}

// Raster is a single 2D plane of float samples in row-major order
type Raster struct {
	Width, Height int
	Pix           []float64
}

// NewRaster allocates a zero-filled raster
func NewRaster(width, height int) *Raster {
	return &Raster{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the sample at (x, y)
func (r *Raster) At(x, y int) float64 {
	return r.Pix[y*r.Width+x]
}

// Set stores a sample at (x, y)
func (r *Raster) Set(x, y int, value float64) {
	r.Pix[y*r.Width+x] = value
}

// Clone returns a deep copy of the raster
func (r *Raster) Clone() *Raster {
	out := &Raster{Width: r.Width, Height: r.Height, Pix: make([]float64, len(r.Pix))}
	copy(out.Pix, r.Pix)
	return out
}

// ChannelStack holds the Z-indexed planes of one channel
type ChannelStack struct {
	// Channel is the zero-based channel index in the source volume
	Channel int

	Planes []*Raster
}

// Width returns the width of the planes in the stack
func (s *ChannelStack) Width() int {
	if len(s.Planes) == 0 {
		return 0
	}
	return s.Planes[0].Width
}

// Height returns the height of the planes in the stack
func (s *ChannelStack) Height() int {
	if len(s.Planes) == 0 {
		return 0
	}
	return s.Planes[0].Height
}

// Panel is one labeled sub-image placed on a figure
type Panel struct {
	Image *image.RGBA
	Label string
}
