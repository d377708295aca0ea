package composite

import (
	"image/color"
	"testing"

	"microfigure/internal/models"
)

// TestAssembleDefaultPolicy verifies the red/white assignment
func TestAssembleDefaultPolicy(t *testing.T) {
	a := models.NewRaster(4, 4)
	b := models.NewRaster(4, 4)

	c, err := Assemble([]*models.Raster{a, b}, DefaultPolicy)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if len(c.Channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(c.Channels))
	}

	red := color.RGBA{R: 255, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if c.Channels[0].Color != red {
		t.Errorf("Expected channel 1 red, got %v", c.Channels[0].Color)
	}
	if c.Channels[1].Color != white {
		t.Errorf("Expected channel 2 white, got %v", c.Channels[1].Color)
	}
	for i, ch := range c.Channels {
		if ch.Low != 0 || ch.High != 255 {
			t.Errorf("Channel %d: expected range [0,255], got [%g,%g]", i+1, ch.Low, ch.High)
		}
		if !ch.Active {
			t.Errorf("Channel %d should start active", i+1)
		}
	}
	if c.Channels[0].Raster != a || c.Channels[1].Raster != b {
		t.Error("Channels are not in input order")
	}
}

// TestAssembleSingleChannel verifies that only existing channels are assigned
func TestAssembleSingleChannel(t *testing.T) {
	c, err := Assemble([]*models.Raster{models.NewRaster(2, 2)}, DefaultPolicy)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(c.Channels) != 1 {
		t.Fatalf("Expected 1 channel, got %d", len(c.Channels))
	}
	if c.Channels[0].Color != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected red, got %v", c.Channels[0].Color)
	}
}

// TestAssembleErrors verifies rejected inputs
func TestAssembleErrors(t *testing.T) {
	if _, err := Assemble(nil, DefaultPolicy); err == nil {
		t.Error("Expected error for no channels, got nil")
	}

	three := []*models.Raster{models.NewRaster(2, 2), models.NewRaster(2, 2), models.NewRaster(2, 2)}
	if _, err := Assemble(three, DefaultPolicy); err == nil {
		t.Error("Expected error for more channels than policy entries, got nil")
	}

	mismatched := []*models.Raster{models.NewRaster(2, 2), models.NewRaster(3, 2)}
	if _, err := Assemble(mismatched, DefaultPolicy); err == nil {
		t.Error("Expected error for mismatched sizes, got nil")
	}

	bad := []ChannelPolicy{{Color: "ultraviolet", Low: 0, High: 255}}
	if _, err := Assemble([]*models.Raster{models.NewRaster(1, 1)}, bad); err == nil {
		t.Error("Expected error for unknown color, got nil")
	}
}

// TestCustomPolicy verifies that the color table drives assembly
func TestCustomPolicy(t *testing.T) {
	policy := []ChannelPolicy{
		{Color: "Magenta", Low: 10, High: 1000},
		{Color: "green", Low: 0, High: 4095},
	}
	if err := ValidatePolicy(policy); err != nil {
		t.Fatalf("ValidatePolicy failed: %v", err)
	}

	c, err := Assemble([]*models.Raster{models.NewRaster(1, 1), models.NewRaster(1, 1)}, policy)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if c.Channels[0].Color != (color.RGBA{R: 255, B: 255, A: 255}) {
		t.Errorf("Expected magenta, got %v", c.Channels[0].Color)
	}
	if c.Channels[0].Low != 10 || c.Channels[1].High != 4095 {
		t.Error("Display ranges not taken from policy")
	}
}

// TestSetters verifies per-channel updates
func TestSetters(t *testing.T) {
	c, err := Assemble([]*models.Raster{models.NewRaster(1, 1), models.NewRaster(1, 1)}, DefaultPolicy)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if err := c.SetColor(2, "cyan"); err != nil {
		t.Fatalf("SetColor failed: %v", err)
	}
	if c.Channels[1].Color != (color.RGBA{G: 255, B: 255, A: 255}) {
		t.Errorf("Expected cyan, got %v", c.Channels[1].Color)
	}
	if err := c.SetDisplayRange(1, 5, 50); err != nil {
		t.Fatalf("SetDisplayRange failed: %v", err)
	}
	if c.Channels[0].Low != 5 || c.Channels[0].High != 50 {
		t.Error("Display range not updated")
	}
	if err := c.SetDisplayRange(1, 50, 5); err == nil {
		t.Error("Expected error for empty display range, got nil")
	}
	if err := c.SetActive(3, false); err == nil {
		t.Error("Expected error for missing channel, got nil")
	}
}
