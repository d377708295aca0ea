package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"microfigure/internal/models"
	"microfigure/pkg/output"
	"microfigure/pkg/pipeline"
)

// TestDefaultConfig verifies defaults match the standard figure
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid, got %v", err)
	}

	if v, _ := cfg.FigureVariant(); v != pipeline.VariantComposite {
		t.Errorf("Expected composite variant for automated runs, got %q", v)
	}
	if f, _ := cfg.OutputFormat(); f != output.FormatTIFF {
		t.Errorf("Expected TIFF for automated runs, got %q", f)
	}

	cfg.Batch.Interactive = true
	if v, _ := cfg.FigureVariant(); v != pipeline.VariantCombined {
		t.Errorf("Expected combined variant for interactive runs, got %q", v)
	}
	if f, _ := cfg.OutputFormat(); f != output.FormatJPEG {
		t.Errorf("Expected JPEG for interactive runs, got %q", f)
	}

	if cfg.Labels() != models.DefaultLabels {
		t.Errorf("Expected default labels, got %v", cfg.Labels())
	}

	// Defaults must not share state with package globals
	cfg.Figure.Labels[0] = "DAPI"
	if models.DefaultLabels[0] != "Cyan" {
		t.Error("Editing config labels changed the package defaults")
	}
}

// TestSaveAndLoadConfig verifies a saved file loads back
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "microfigure.yaml")

	cfg := DefaultConfig()
	cfg.Processing.BlurSigma = 1.5
	cfg.Figure.Variant = "combined"
	cfg.Composite.Channels[1].Color = "green"
	z := 4
	cfg.Processing.ZSlice = &z
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.BlurSigma != 1.5 || loaded.Figure.Variant != "combined" {
		t.Errorf("Values not loaded: %+v", loaded.Processing)
	}
	if loaded.Composite.Channels[1].Color != "green" {
		t.Errorf("Expected green second channel, got %q", loaded.Composite.Channels[1].Color)
	}
	if loaded.Processing.ZSlice == nil || *loaded.Processing.ZSlice != 4 {
		t.Errorf("Expected z-slice 4, got %v", loaded.Processing.ZSlice)
	}

	missing, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil || missing.Batch.Extension != "czi" {
		t.Errorf("Missing file should give defaults, got %v (%v)", missing, err)
	}
}

// TestLoadConfigPartialFile verifies unspecified keys keep their defaults
func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := `
processing:
  blurSigma: 2
files:
  cells_03.czi:
    action: skip
  cells_04.czi:
    blurSigma: 0.5
    zSlice: 7
    labels: ["DAPI"]
    roi: [10, 20, 30, 40]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Figure.Padding != 60 || len(cfg.Figure.PanelOrder) != 3 {
		t.Errorf("Figure defaults lost: %+v", cfg.Figure)
	}

	fp := cfg.ProcessingDefaults(10)
	if fp.BlurSigma != 2 || fp.ZSlice != 5 || fp.ZStart != 1 || fp.ZEnd != 10 {
		t.Errorf("Unexpected defaults %v", fp)
	}

	o, ok := cfg.Override("/data/run/cells_03.czi")
	if !ok {
		t.Fatal("Expected override for cells_03.czi")
	}
	skipped, err := o.Apply(fp)
	if err != nil || skipped.Action != models.ActionSkipThis {
		t.Errorf("Expected skip action, got %v (%v)", skipped.Action, err)
	}

	o, _ = cfg.Override("cells_04.czi")
	applied, err := o.Apply(fp)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if applied.BlurSigma != 0.5 || applied.ZSlice != 7 {
		t.Errorf("Override not applied: %v", applied)
	}
	if applied.Labels[0] != "DAPI" || applied.Labels[1] != "Far red" {
		t.Errorf("Expected partial label override, got %v", applied.Labels)
	}
	if applied.Region.Kind != models.Rectangle || applied.Region.Rect.Dx() != 30 {
		t.Errorf("Expected 30-wide rectangle region, got %v", applied.Region)
	}
}

// TestValidate verifies invalid configurations are rejected
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"negative blur", func(c *Config) { c.Processing.BlurSigma = -1 }},
		{"unknown variant", func(c *Config) { c.Figure.Variant = "grid" }},
		{"unknown format", func(c *Config) { c.Output.Format = "png" }},
		{"too many labels", func(c *Config) { c.Figure.Labels = []string{"a", "b", "c", "d", "e"} }},
		{"unknown color", func(c *Config) { c.Composite.Channels[0].Color = "octarine" }},
		{"merge beyond table", func(c *Config) { c.Figure.MergeChannels = []int{1, 2, 3} }},
		{"bad file action", func(c *Config) {
			c.Files = map[string]FileOverride{"a.czi": {Action: "later"}}
		}},
		{"bad file roi", func(c *Config) {
			c.Files = map[string]FileOverride{"a.czi": {ROI: []int{1, 2, 3}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

// TestLoadEnv verifies .env files and environment overrides
func TestLoadEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	data := "MICROFIGURE_INPUT=/data/in\nMICROFIGURE_BLUR=1.25\nMICROFIGURE_VARIANT=combined\n"
	if err := os.WriteFile(envFile, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// godotenv does not override variables already present
	t.Setenv("MICROFIGURE_INPUT", "/data/override")
	t.Setenv("MICROFIGURE_BLUR", "")
	t.Setenv("MICROFIGURE_VARIANT", "")
	os.Unsetenv("MICROFIGURE_BLUR")
	os.Unsetenv("MICROFIGURE_VARIANT")

	cfg := DefaultConfig()
	if err := LoadEnv(cfg, envFile); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if cfg.Batch.InputDir != "/data/override" {
		t.Errorf("Expected environment to win, got %q", cfg.Batch.InputDir)
	}
	if cfg.Processing.BlurSigma != 1.25 {
		t.Errorf("Expected blur 1.25 from .env, got %g", cfg.Processing.BlurSigma)
	}
	if cfg.Figure.Variant != "combined" {
		t.Errorf("Expected combined from .env, got %q", cfg.Figure.Variant)
	}

	if err := LoadEnv(DefaultConfig(), filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing .env should be ignored, got %v", err)
	}

	t.Setenv("MICROFIGURE_BLUR", "soft")
	if err := LoadEnv(DefaultConfig(), ""); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected configuration error for bad blur, got %v", err)
	}
}

// TestParseROI verifies the x,y,w,h syntax
func TestParseROI(t *testing.T) {
	r, err := ParseROI("10, 20,30,40")
	if err != nil {
		t.Fatalf("ParseROI failed: %v", err)
	}
	if r.Rect.Min.X != 10 || r.Rect.Min.Y != 20 || r.Rect.Dx() != 30 || r.Rect.Dy() != 40 {
		t.Errorf("Unexpected region %v", r.Rect)
	}

	for _, s := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,5"} {
		if _, err := ParseROI(s); !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("ParseROI(%q): expected configuration error, got %v", s, err)
		}
	}
}

// TestCreateDefaultConfigFile verifies the generated file loads and validates
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Generated config invalid: %v", err)
	}
}
