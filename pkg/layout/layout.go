// Package layout arranges rendered panels and their labels on a single RGB
// canvas, in one row or in two stacked rows.
package layout

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"microfigure/internal/models"
)

// TextRenderer measures and draws label strings
type TextRenderer interface {
	Measure(s string) int
	Draw(dst xdraw.Image, s string, x, y int)
}

// Options holds the spacing of a figure
type Options struct {
	// Padding separates panels from each other and from the canvas edge
	Padding int

	// LabelSpace is the extra band reserved for labels on a single row
	LabelSpace int

	// RowLabelSpace is the label band above each row of a two-row figure
	RowLabelSpace int

	// LabelOffset lifts two-row labels above the panel top edge
	LabelOffset int

	Background color.RGBA
}

// DefaultOptions returns the spacing of the standard figure
func DefaultOptions() Options {
	return Options{
		Padding:       60,
		LabelSpace:    30,
		RowLabelSpace: 30,
		LabelOffset:   10,
		Background:    color.RGBA{A: 255},
	}
}

// Slot is the placement of one panel and its label
type Slot struct {
	Rect   image.Rectangle
	Label  string
	LabelX int
	LabelY int
}

// Plan is a fully resolved layout
type Plan struct {
	Width, Height int
	Slots         []Slot
}

// PlanSingleRow places panels left to right, vertically centered, with each
// label centered above the band
func PlanSingleRow(panels []models.Panel, opts Options, text TextRenderer) (Plan, error) {
	if err := checkPanels(panels); err != nil {
		return Plan{}, err
	}
	p := opts.Padding

	width := p
	maxH := 0
	for _, pn := range panels {
		b := pn.Image.Bounds()
		width += b.Dx() + p
		if b.Dy() > maxH {
			maxH = b.Dy()
		}
	}
	height := maxH + 2*p + opts.LabelSpace

	plan := Plan{Width: width, Height: height, Slots: make([]Slot, len(panels))}
	x := p
	for i, pn := range panels {
		b := pn.Image.Bounds()
		y := p + (height-2*p-b.Dy())/2
		plan.Slots[i] = Slot{
			Rect:   image.Rect(x, y, x+b.Dx(), y+b.Dy()),
			Label:  pn.Label,
			LabelX: x + floorDiv(b.Dx()-text.Measure(pn.Label), 2),
			LabelY: p / 2,
		}
		x += b.Dx() + p
	}
	return plan, nil
}

// PlanTwoRow places top panels in the first row and bottom panels in a
// second row shifted right by one panel width, so a bottom row with one
// fewer leading panel lines up under the top row's trailing panels.
func PlanTwoRow(top, bottom []models.Panel, opts Options, text TextRenderer) (Plan, error) {
	if err := checkPanels(top); err != nil {
		return Plan{}, fmt.Errorf("top row: %w", err)
	}
	if err := checkPanels(bottom); err != nil {
		return Plan{}, fmt.Errorf("bottom row: %w", err)
	}
	p := opts.Padding
	band := opts.RowLabelSpace

	topH := rowHeight(top)
	bottomH := rowHeight(bottom)

	plan := Plan{
		Height: topH + bottomH + 3*p + 2*band,
		Slots:  make([]Slot, 0, len(top)+len(bottom)),
	}

	x := p
	topY := p + band
	for _, pn := range top {
		b := pn.Image.Bounds()
		plan.Slots = append(plan.Slots, Slot{
			Rect:   image.Rect(x, topY, x+b.Dx(), topY+b.Dy()),
			Label:  pn.Label,
			LabelX: x + floorDiv(b.Dx()-text.Measure(pn.Label), 2),
			LabelY: topY - opts.LabelOffset,
		})
		x += b.Dx() + p
	}
	plan.Width = x

	x = p + bottom[0].Image.Bounds().Dx() + p
	bottomY := topY + topH + p + band
	for _, pn := range bottom {
		b := pn.Image.Bounds()
		plan.Slots = append(plan.Slots, Slot{
			Rect:   image.Rect(x, bottomY, x+b.Dx(), bottomY+b.Dy()),
			Label:  pn.Label,
			LabelX: x + floorDiv(b.Dx()-text.Measure(pn.Label), 2),
			LabelY: bottomY - opts.LabelOffset,
		})
		x += b.Dx() + p
	}
	if x > plan.Width {
		plan.Width = x
	}
	return plan, nil
}

// Render paints a plan onto a new canvas, copying every panel's pixels
func Render(plan Plan, panels []models.Panel, opts Options, text TextRenderer) (*image.RGBA, error) {
	if len(panels) != len(plan.Slots) {
		return nil, fmt.Errorf("layout has %d slots but %d panels were given", len(plan.Slots), len(panels))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, plan.Width, plan.Height))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(opts.Background), image.Point{}, xdraw.Src)

	for i, slot := range plan.Slots {
		src := panels[i].Image
		xdraw.Draw(canvas, slot.Rect, src, src.Bounds().Min, xdraw.Src)
		if slot.Label != "" {
			text.Draw(canvas, slot.Label, slot.LabelX, slot.LabelY)
		}
	}
	return canvas, nil
}

// SingleRow plans and renders a one-row figure
func SingleRow(panels []models.Panel, opts Options, text TextRenderer) (*image.RGBA, error) {
	plan, err := PlanSingleRow(panels, opts, text)
	if err != nil {
		return nil, err
	}
	return Render(plan, panels, opts, text)
}

// TwoRow plans and renders a two-row figure
func TwoRow(top, bottom []models.Panel, opts Options, text TextRenderer) (*image.RGBA, error) {
	plan, err := PlanTwoRow(top, bottom, opts, text)
	if err != nil {
		return nil, err
	}
	all := make([]models.Panel, 0, len(top)+len(bottom))
	all = append(all, top...)
	all = append(all, bottom...)
	return Render(plan, all, opts, text)
}

func checkPanels(panels []models.Panel) error {
	if len(panels) == 0 {
		return fmt.Errorf("no panels to lay out")
	}
	for i, pn := range panels {
		if pn.Image == nil || pn.Image.Bounds().Empty() {
			return fmt.Errorf("panel %d has no pixels", i+1)
		}
	}
	return nil
}

func rowHeight(panels []models.Panel) int {
	h := 0
	for _, pn := range panels {
		if d := pn.Image.Bounds().Dy(); d > h {
			h = d
		}
	}
	return h
}

// floorDiv divides rounding toward negative infinity, so labels wider than
// their panel are centered the same way on both sides
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
