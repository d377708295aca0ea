// Package render converts rasters and composites to 8-bit RGB and draws
// panel labels.
package render

import (
	"image"
	"image/color"
	"math"

	"microfigure/internal/models"
	"microfigure/pkg/composite"
	"microfigure/pkg/filter"
)

// Options controls how single-channel panels are windowed
type Options struct {
	// AutoScale maps each raster's own min..max to black..white instead of
	// the fixed [Low, High] window
	AutoScale bool
	Low       float64
	High      float64
}

// DefaultOptions windows panels over [0, 255], the same range the composite
// channels use
func DefaultOptions() Options {
	return Options{Low: 0, High: 255}
}

// To8Bit maps v from the display range [low, high] to 0..255, rounding to
// nearest and saturating at both ends
func To8Bit(v, low, high float64) uint8 {
	if high <= low {
		if v > low {
			return 255
		}
		return 0
	}
	scaled := math.Floor((v-low)*255/(high-low) + 0.5)
	if scaled <= 0 || math.IsNaN(scaled) {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return uint8(scaled)
}

// GrayToRGB renders a single channel as grayscale RGB
func GrayToRGB(r *models.Raster, opts Options) *image.RGBA {
	low, high := opts.Low, opts.High
	if opts.AutoScale {
		s := filter.Statistics(r)
		low, high = s.Min, s.Max
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			g := To8Bit(r.At(x, y), low, high)
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

// CompositeToRGB renders the active channels of c through their color
// lookup tables and adds them, saturating at 255 per component
func CompositeToRGB(c *composite.Composite) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			var r, g, b int
			for _, ch := range c.Channels {
				if !ch.Active {
					continue
				}
				i := int(To8Bit(ch.Raster.At(x, y), ch.Low, ch.High))
				r += i * int(ch.Color.R) / 255
				g += i * int(ch.Color.G) / 255
				b += i * int(ch.Color.B) / 255
			}
			img.SetRGBA(x, y, color.RGBA{R: saturate(r), G: saturate(g), B: saturate(b), A: 255})
		}
	}
	return img
}

func saturate(v int) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}
