package output

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/image/tiff"

	"microfigure/internal/models"
)

func createFigure() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 7, A: 255})
		}
	}
	return img
}

// TestParseFormat verifies format names and extensions
func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		expected Format
	}{
		{"tiff", FormatTIFF},
		{".tif", FormatTIFF},
		{"JPG", FormatJPEG},
		{"jpeg", FormatJPEG},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.expected {
			t.Errorf("ParseFormat(%q): expected %q, got %q (%v)", tt.in, tt.expected, got, err)
		}
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Error("Expected error for png output")
	}

	if name := OutputName("cells_01", FormatTIFF); name != "cells_01_figure.tif" {
		t.Errorf("Unexpected TIFF name %q", name)
	}
	if name := OutputName("cells_01", FormatJPEG); name != "cells_01_figure.jpg" {
		t.Errorf("Unexpected JPEG name %q", name)
	}
}

// TestFileSinkTIFF verifies TIFF output is lossless
func TestFileSinkTIFF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "figures")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	fig := createFigure()
	path, err := sink.Save(context.Background(), fig, "cells", FormatTIFF)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "cells_figure.tif") {
		t.Errorf("Unexpected output path %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer file.Close()

	decoded, err := tiff.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode TIFF: %v", err)
	}
	for _, pt := range []image.Point{{0, 0}, {5, 3}, {7, 5}} {
		r, g, b, _ := decoded.At(pt.X, pt.Y).RGBA()
		want := fig.RGBAAt(pt.X, pt.Y)
		if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
			t.Errorf("Pixel %v: expected %v, got (%d,%d,%d)", pt, want, r>>8, g>>8, b>>8)
		}
	}
}

// TestFileSinkJPEG verifies JPEG output decodes at the figure size
func TestFileSinkJPEG(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	path, err := sink.Save(context.Background(), createFigure(), "cells", FormatJPEG)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer file.Close()

	cfg, err := jpeg.DecodeConfig(file)
	if err != nil {
		t.Fatalf("Failed to decode JPEG: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 6 {
		t.Errorf("Expected 8x6, got %dx%d", cfg.Width, cfg.Height)
	}
}

// TestFileSinkSaveError verifies failures wrap the save error
func TestFileSinkSaveError(t *testing.T) {
	sink := &FileSink{Dir: filepath.Join(t.TempDir(), "missing", "dir")}
	if _, err := sink.Save(context.Background(), createFigure(), "cells", FormatTIFF); !errors.Is(err, models.ErrSave) {
		t.Errorf("Expected save error, got %v", err)
	}
}

// fakePutter records uploaded objects
type fakePutter struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, *params.Bucket+"/"+*params.Key)
	f.bodies = append(f.bodies, data)
	return &s3.PutObjectOutput{}, nil
}

// TestS3Sink verifies object keys and payloads
func TestS3Sink(t *testing.T) {
	putter := &fakePutter{}
	sink := &S3Sink{client: putter, bucket: "lab", prefix: "runs/2024"}

	loc, err := sink.Save(context.Background(), createFigure(), "cells", FormatTIFF)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if loc != "s3://lab/runs/2024/cells_figure.tif" {
		t.Errorf("Unexpected location %s", loc)
	}
	if len(putter.keys) != 1 || putter.keys[0] != "lab/runs/2024/cells_figure.tif" {
		t.Fatalf("Unexpected uploads %v", putter.keys)
	}
	if _, err := tiff.Decode(bytes.NewReader(putter.bodies[0])); err != nil {
		t.Errorf("Uploaded body is not a TIFF: %v", err)
	}

	putter.err = errors.New("access denied")
	if _, err := sink.Save(context.Background(), createFigure(), "cells", FormatJPEG); !errors.Is(err, models.ErrSave) {
		t.Errorf("Expected save error, got %v", err)
	}
}

// TestParseS3Location verifies bucket and prefix extraction
func TestParseS3Location(t *testing.T) {
	tests := []struct {
		loc, bucket, prefix string
		wantErr             bool
	}{
		{"s3://lab", "lab", "", false},
		{"s3://lab/figures/", "lab", "figures", false},
		{"s3://lab/a/b", "lab", "a/b", false},
		{"s3:///figures", "", "", true},
		{"/tmp/figures", "", "", true},
	}
	for _, tt := range tests {
		bucket, prefix, err := ParseS3Location(tt.loc)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error state %v", tt.loc, err)
			continue
		}
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("%s: expected (%q, %q), got (%q, %q)", tt.loc, tt.bucket, tt.prefix, bucket, prefix)
		}
	}
	if _, _, err := ParseS3Location("s3:///x"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}
