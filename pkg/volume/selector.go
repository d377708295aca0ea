// Package volume selects the slices and region of a volume that feed the
// figure pipeline, and separates the selection into channels.
package volume

import (
	"fmt"

	"microfigure/internal/models"
)

// Crop extracts the region from every channel and slice of v. A whole-volume
// region returns a copy of the full frame. The source volume is never
// modified.
func Crop(v *models.Volume, region models.Region) (*models.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	rect, err := region.Bounds(v.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve region: %w", err)
	}

	out := models.NewVolume(rect.Dx(), rect.Dy(), v.Channels, v.Slices)
	out.Name = v.Name
	for c := 0; c < v.Channels; c++ {
		for z := 0; z < v.Slices; z++ {
			for y := 0; y < out.Height; y++ {
				// Rows are contiguous in both volumes
				src := v.Index(c, z, rect.Min.X, rect.Min.Y+y)
				dst := out.Index(c, z, 0, y)
				copy(out.Data[dst:dst+out.Width], v.Data[src:src+out.Width])
			}
		}
	}
	return out, nil
}

// SelectSlice returns a single-slice volume holding plane z (one-based) of
// every channel. z is clamped into range.
func SelectSlice(v *models.Volume, z int) (*models.Volume, error) {
	z = models.ClampSlice(z, v.Slices)
	return SelectRange(v, z, z)
}

// SelectRange returns the slices start..end (one-based, inclusive) of every
// channel. The range is clamped the same way ProcessingParameters are.
func SelectRange(v *models.Volume, start, end int) (*models.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	start, end = models.ClampRange(start, end, v.Slices)
	depth := end - start + 1

	out := models.NewVolume(v.Width, v.Height, v.Channels, depth)
	out.Name = v.Name
	for c := 0; c < v.Channels; c++ {
		for z := 0; z < depth; z++ {
			copy(out.Plane(c, z), v.Plane(c, start-1+z))
		}
	}
	return out, nil
}
