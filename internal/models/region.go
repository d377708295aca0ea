package models

import (
	"fmt"
	"image"
)

// RegionKind tells how a Region selects pixels
type RegionKind int

const (
	// WholeVolume selects the entire frame
	WholeVolume RegionKind = iota
	// Rectangle selects an axis-aligned rectangle
	Rectangle
	// Mask selects an arbitrary set of pixels
	Mask
)

// Region is a spatial region of interest. The zero value selects the whole
// volume.
type Region struct {
	Kind RegionKind

	// Rect is the selected rectangle for Rectangle regions
	Rect image.Rectangle

	// Pixels is the mask for Mask regions, in frame coordinates
	Pixels *image.Alpha
}

// RectRegion returns a rectangular region
func RectRegion(x, y, width, height int) Region {
	return Region{Kind: Rectangle, Rect: image.Rect(x, y, x+width, y+height)}
}

// MaskRegion returns a region selecting the non-transparent pixels of mask
func MaskRegion(mask *image.Alpha) Region {
	return Region{Kind: Mask, Pixels: mask}
}

// IsWhole reports whether the region selects the whole frame
func (r Region) IsWhole() bool {
	return r.Kind == WholeVolume
}

// Bounds returns the rectangle the region covers inside frame. Mask regions
// resolve to the bounding box of their selected pixels.
func (r Region) Bounds(frame image.Rectangle) (image.Rectangle, error) {
	var rect image.Rectangle
	switch r.Kind {
	case WholeVolume:
		return frame, nil
	case Rectangle:
		rect = r.Rect
	case Mask:
		if r.Pixels == nil {
			return image.Rectangle{}, fmt.Errorf("mask region has no pixels")
		}
		rect = maskBounds(r.Pixels)
	default:
		return image.Rectangle{}, fmt.Errorf("unknown region kind %d", r.Kind)
	}

	clipped := rect.Intersect(frame)
	if clipped.Empty() {
		return image.Rectangle{}, fmt.Errorf("region %v does not overlap frame %v", rect, frame)
	}
	return clipped, nil
}

// String renders the region for log lines
func (r Region) String() string {
	switch r.Kind {
	case Rectangle:
		return fmt.Sprintf("rect(%d,%d %dx%d)", r.Rect.Min.X, r.Rect.Min.Y, r.Rect.Dx(), r.Rect.Dy())
	case Mask:
		if r.Pixels == nil {
			return "mask(empty)"
		}
		b := maskBounds(r.Pixels)
		return fmt.Sprintf("mask(%d,%d %dx%d)", b.Min.X, b.Min.Y, b.Dx(), b.Dy())
	default:
		return "whole"
	}
}

func maskBounds(m *image.Alpha) image.Rectangle {
	var out image.Rectangle
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.AlphaAt(x, y).A == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if out.Empty() {
				out = px
			} else {
				out = out.Union(px)
			}
		}
	}
	return out
}
