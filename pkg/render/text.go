package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Text measures and draws panel labels with a fixed font face
type Text struct {
	Face  font.Face
	Color color.Color
}

// DefaultText draws white labels with the built-in 7x13 face
func DefaultText() *Text {
	return &Text{Face: basicfont.Face7x13, Color: color.White}
}

// Measure returns the advance width of s in pixels
func (t *Text) Measure(s string) int {
	return font.MeasureString(t.Face, s).Round()
}

// Draw renders s with its baseline starting at (x, y)
func (t *Text) Draw(dst draw.Image, s string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(t.Color),
		Face: t.Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
