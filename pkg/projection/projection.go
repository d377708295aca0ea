// Package projection collapses a channel's Z-stack into a single plane.
package projection

import (
	"errors"
	"fmt"

	"microfigure/internal/models"
)

// ErrEmptyStack is returned when there is nothing to project
var ErrEmptyStack = errors.New("projection: empty stack")

// MaxProjection returns, for every pixel, the brightest sample across planes
// start..end of stack (one-based, inclusive). The range is clamped to the
// stack depth.
func MaxProjection(stack *models.ChannelStack, start, end int) (*models.Raster, error) {
	if stack == nil || len(stack.Planes) == 0 {
		return nil, ErrEmptyStack
	}
	start, end = models.ClampRange(start, end, len(stack.Planes))

	first := stack.Planes[start-1]
	out := first.Clone()

	for z := start; z < end; z++ {
		plane := stack.Planes[z]
		if plane.Width != out.Width || plane.Height != out.Height {
			return nil, fmt.Errorf("projection: plane %d is %dx%d, expected %dx%d",
				z+1, plane.Width, plane.Height, out.Width, out.Height)
		}
		for i, v := range plane.Pix {
			if v > out.Pix[i] {
				out.Pix[i] = v
			}
		}
	}
	return out, nil
}

// MaxProjectionAll projects the whole stack
func MaxProjectionAll(stack *models.ChannelStack) (*models.Raster, error) {
	if stack == nil {
		return nil, ErrEmptyStack
	}
	return MaxProjection(stack, 1, len(stack.Planes))
}
