package layout

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	xdraw "golang.org/x/image/draw"

	"microfigure/internal/models"
	"microfigure/pkg/render"
)

// fixedWidthText pretends every glyph is 8 pixels wide and records calls
type fixedWidthText struct {
	drawn []string
}

func (f *fixedWidthText) Measure(s string) int { return 8 * len(s) }

func (f *fixedWidthText) Draw(dst xdraw.Image, s string, x, y int) {
	f.drawn = append(f.drawn, s)
}

// createPanel creates a solid panel of the given size and shade
func createPanel(width, height int, shade uint8, label string) models.Panel {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = shade
		img.Pix[i+1] = shade
		img.Pix[i+2] = shade
		img.Pix[i+3] = 255
	}
	return models.Panel{Image: img, Label: label}
}

// TestSingleRowGeometry verifies canvas size and panel positions for equal panels
func TestSingleRowGeometry(t *testing.T) {
	w, h, p := 100, 80, 60
	opts := DefaultOptions()
	opts.Padding = p

	panels := []models.Panel{
		createPanel(w, h, 10, "Cyan"),
		createPanel(w, h, 20, "Far red"),
		createPanel(w, h, 30, "Red"),
		createPanel(w, h, 40, "Merged"),
	}

	plan, err := PlanSingleRow(panels, opts, &fixedWidthText{})
	if err != nil {
		t.Fatalf("PlanSingleRow failed: %v", err)
	}

	if plan.Width != 4*w+5*p {
		t.Errorf("Expected canvas width %d, got %d", 4*w+5*p, plan.Width)
	}
	if plan.Height != h+2*p+opts.LabelSpace {
		t.Errorf("Expected canvas height %d, got %d", h+2*p+opts.LabelSpace, plan.Height)
	}

	for i, slot := range plan.Slots {
		if slot.Rect.Min.X != p+i*(w+p) {
			t.Errorf("Panel %d: expected left edge %d, got %d", i, p+i*(w+p), slot.Rect.Min.X)
		}
		if slot.Rect.Min.Y != p+opts.LabelSpace/2 {
			t.Errorf("Panel %d: expected top edge %d, got %d", i, p+opts.LabelSpace/2, slot.Rect.Min.Y)
		}
		labelW := 8 * len(panels[i].Label)
		if slot.LabelX != slot.Rect.Min.X+(w-labelW)/2 {
			t.Errorf("Panel %d: label not centered, got x=%d", i, slot.LabelX)
		}
		if slot.LabelY != p/2 {
			t.Errorf("Panel %d: expected label baseline %d, got %d", i, p/2, slot.LabelY)
		}
	}
}

// TestLabelWiderThanPanel verifies floor-division centering for long labels
func TestLabelWiderThanPanel(t *testing.T) {
	opts := DefaultOptions()
	panels := []models.Panel{createPanel(11, 10, 1, "abc")} // 24 px label on 11 px panel

	plan, err := PlanSingleRow(panels, opts, &fixedWidthText{})
	if err != nil {
		t.Fatalf("PlanSingleRow failed: %v", err)
	}

	// (11 - 24) / 2 floors to -7
	if plan.Slots[0].LabelX != opts.Padding-7 {
		t.Errorf("Expected label x %d, got %d", opts.Padding-7, plan.Slots[0].LabelX)
	}
}

// TestTwoRowGeometry verifies the offset projection row
func TestTwoRowGeometry(t *testing.T) {
	w, h, p := 50, 40, 60
	opts := DefaultOptions()

	top := []models.Panel{
		createPanel(w, h, 10, "Cyan"),
		createPanel(w, h, 20, "Far red"),
		createPanel(w, h, 30, "Red"),
		createPanel(w, h, 40, "Merged"),
	}
	bottom := []models.Panel{
		createPanel(w, h, 50, "Far red (Max Z)"),
		createPanel(w, h, 60, "Red (Max Z)"),
		createPanel(w, h, 70, "Merged (Max Z)"),
	}

	plan, err := PlanTwoRow(top, bottom, opts, &fixedWidthText{})
	if err != nil {
		t.Fatalf("PlanTwoRow failed: %v", err)
	}

	if plan.Width != 4*w+5*p {
		t.Errorf("Expected width %d, got %d", 4*w+5*p, plan.Width)
	}
	band := opts.RowLabelSpace
	if plan.Height != 2*h+3*p+2*band {
		t.Errorf("Expected height %d, got %d", 2*h+3*p+2*band, plan.Height)
	}
	if len(plan.Slots) != 7 {
		t.Fatalf("Expected 7 slots, got %d", len(plan.Slots))
	}

	for i := 0; i < 4; i++ {
		s := plan.Slots[i]
		if s.Rect.Min.X != p+i*(w+p) || s.Rect.Min.Y != p+band {
			t.Errorf("Top panel %d at %v", i, s.Rect.Min)
		}
		if s.LabelY != p+band-opts.LabelOffset {
			t.Errorf("Top label %d baseline %d", i, s.LabelY)
		}
	}
	for i := 0; i < 3; i++ {
		s := plan.Slots[4+i]
		wantX := p + (i+1)*(w+p)
		wantY := p + band + h + p + band
		if s.Rect.Min.X != wantX || s.Rect.Min.Y != wantY {
			t.Errorf("Bottom panel %d: expected (%d,%d), got %v", i, wantX, wantY, s.Rect.Min)
		}
		if s.LabelY != wantY-opts.LabelOffset {
			t.Errorf("Bottom label %d baseline %d", i, s.LabelY)
		}
		// Projection panels sit under top panels 1..3
		if s.Rect.Min.X != plan.Slots[i+1].Rect.Min.X {
			t.Errorf("Bottom panel %d not aligned under top panel %d", i, i+1)
		}
	}
}

// TestRenderCopiesPanels verifies pixels land in their slots and labels are drawn
func TestRenderCopiesPanels(t *testing.T) {
	opts := DefaultOptions()
	opts.Padding = 5
	opts.LabelSpace = 4
	text := &fixedWidthText{}

	panels := []models.Panel{createPanel(3, 3, 100, "a"), createPanel(3, 3, 200, "b")}

	canvas, err := SingleRow(panels, opts, text)
	if err != nil {
		t.Fatalf("SingleRow failed: %v", err)
	}

	if got := canvas.RGBAAt(5, 7); got != (color.RGBA{100, 100, 100, 255}) {
		t.Errorf("Expected first panel pixel at (5,7), got %v", got)
	}
	if got := canvas.RGBAAt(13, 9); got != (color.RGBA{200, 200, 200, 255}) {
		t.Errorf("Expected second panel pixel at (13,9), got %v", got)
	}
	if got := canvas.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black background, got %v", got)
	}
	if len(text.drawn) != 2 || text.drawn[0] != "a" || text.drawn[1] != "b" {
		t.Errorf("Expected labels a and b drawn in order, got %v", text.drawn)
	}

	// The canvas owns its pixels
	panels[0].Image.Pix[0] = 0
	if canvas.RGBAAt(5, 7).R != 100 {
		t.Error("Canvas shares memory with a panel")
	}
}

// TestLayoutIsDeterministic verifies bit-for-bit reproducible output
func TestLayoutIsDeterministic(t *testing.T) {
	build := func() *image.RGBA {
		top := []models.Panel{
			createPanel(20, 20, 10, "Cyan"),
			createPanel(20, 20, 90, "Far red"),
			createPanel(20, 20, 180, "Red"),
			createPanel(20, 20, 250, "Merged"),
		}
		bottom := []models.Panel{
			createPanel(20, 20, 15, "Far red (Max Z)"),
			createPanel(20, 20, 95, "Red (Max Z)"),
			createPanel(20, 20, 185, "Merged (Max Z)"),
		}
		img, err := TwoRow(top, bottom, DefaultOptions(), render.DefaultText())
		if err != nil {
			t.Fatalf("TwoRow failed: %v", err)
		}
		return img
	}

	a := build()
	b := build()
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("Identical inputs produced different canvases")
	}
}

// TestEmptyRows verifies input validation
func TestEmptyRows(t *testing.T) {
	opts := DefaultOptions()
	if _, err := PlanSingleRow(nil, opts, &fixedWidthText{}); err == nil {
		t.Error("Expected error for no panels, got nil")
	}
	top := []models.Panel{createPanel(2, 2, 1, "x")}
	if _, err := PlanTwoRow(top, nil, opts, &fixedWidthText{}); err == nil {
		t.Error("Expected error for empty bottom row, got nil")
	}
}

// TestFloorDiv verifies rounding toward negative infinity
func TestFloorDiv(t *testing.T) {
	tests := []struct{ a, b, expected int }{
		{7, 2, 3},
		{-7, 2, -4},
		{-8, 2, -4},
		{0, 2, 0},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.expected {
			t.Errorf("floorDiv(%d, %d): expected %d, got %d", tt.a, tt.b, tt.expected, got)
		}
	}
}
