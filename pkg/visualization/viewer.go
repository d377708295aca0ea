// Package visualization writes inspection images of volumes and rendered
// panels while a figure is being built.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"microfigure/internal/models"
	"microfigure/pkg/render"
)

// Viewer extracts displayable planes from a volume
type Viewer struct {
	// vol is only read
	vol *models.Volume

	// low and high window the samples to black..white
	low  float64
	high float64
}

// NewViewer creates a viewer windowing samples over [0, 255]
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{vol: vol, low: 0, high: 255}
}

// SetWindow changes the display window
func (v *Viewer) SetWindow(low, high float64) {
	v.low, v.high = low, high
}

// AutoWindow sets the display window to the sample range of one channel
// across all slices. Channel is zero-based.
func (v *Viewer) AutoWindow(channel int) error {
	if channel < 0 || channel >= v.vol.Channels {
		return fmt.Errorf("channel %d out of range (volume has %d)", channel, v.vol.Channels)
	}
	low, high := floats.Min(v.vol.Plane(channel, 0)), floats.Max(v.vol.Plane(channel, 0))
	for z := 1; z < v.vol.Slices; z++ {
		plane := v.vol.Plane(channel, z)
		low = min(low, floats.Min(plane))
		high = max(high, floats.Max(plane))
	}
	v.SetWindow(low, high)
	return nil
}

// ExtractSlice extracts one plane of one channel as an 8-bit gray image.
// Channel and slice are zero-based.
func (v *Viewer) ExtractSlice(channel, z int) (image.Image, error) {
	if channel < 0 || channel >= v.vol.Channels {
		return nil, fmt.Errorf("channel %d out of range (volume has %d)", channel, v.vol.Channels)
	}
	if z < 0 || z >= v.vol.Slices {
		return nil, fmt.Errorf("slice %d out of range (volume has %d)", z, v.vol.Slices)
	}

	img := image.NewGray(image.Rect(0, 0, v.vol.Width, v.vol.Height))
	plane := v.vol.Plane(channel, z)
	for y := 0; y < v.vol.Height; y++ {
		for x := 0; x < v.vol.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: render.To8Bit(plane[y*v.vol.Width+x], v.low, v.high)})
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence saves every slice of channel into outputDir
func (v *Viewer) SaveSliceSequence(channel int, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for z := 0; z < v.vol.Slices; z++ {
		img, err := v.ExtractSlice(channel, z)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_c%d_%03d.jpg", channel+1, z+1))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SavePanels saves rendered panels into outputDir, numbered in figure order
func SavePanels(panels []models.Panel, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i, p := range panels {
		filename := filepath.Join(outputDir, fmt.Sprintf("%02d.jpg", i+1))
		if err := SaveSlice(p.Image, filename); err != nil {
			return fmt.Errorf("failed to save panel %q: %w", p.Label, err)
		}
	}
	return nil
}
