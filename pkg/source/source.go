// Package source opens image files as microscopy volumes. Decoders are
// registered per file extension; formats without a Go decoder fail with an
// open error.
package source

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"microfigure/internal/models"
)

// Decoder reads one image from r
type Decoder func(r io.Reader) (image.Image, error)

// Registry maps lower-case file extensions (without the dot) to decoders
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry returns a registry with every decoder the module ships
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register("png", png.Decode)
	r.Register("jpg", jpeg.Decode)
	r.Register("jpeg", jpeg.Decode)
	r.Register("gif", gif.Decode)
	r.Register("tif", tiff.Decode)
	r.Register("tiff", tiff.Decode)
	r.Register("bmp", bmp.Decode)
	return r
}

// Register adds or replaces the decoder for ext
func (r *Registry) Register(ext string, d Decoder) {
	r.decoders[normalizeExt(ext)] = d
}

// Supports reports whether files with extension ext can be opened
func (r *Registry) Supports(ext string) bool {
	_, ok := r.decoders[normalizeExt(ext)]
	return ok
}

// Extensions returns the registered extensions in sorted order
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open decodes path into a one-slice volume. Gray images give one channel,
// everything else three (R, G, B). Errors wrap models.ErrOpen.
func (r *Registry) Open(ctx context.Context, path string) (*models.Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := normalizeExt(filepath.Ext(path))
	decode, ok := r.decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no reader for .%s files", models.ErrOpen, path, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOpen, err)
	}
	defer file.Close()

	img, err := decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to decode: %v", models.ErrOpen, path, err)
	}

	vol, err := FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrOpen, path, err)
	}
	vol.Name = filepath.Base(path)
	return vol, nil
}

// FromImage converts a decoded image into a one-slice volume with 8-bit
// sample values
func FromImage(img image.Image) (*models.Volume, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	if isGray(img) {
		vol := models.NewVolume(b.Dx(), b.Dy(), 1, 1)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, _, _, _ := img.At(x, y).RGBA()
				vol.Set(0, 0, x-b.Min.X, y-b.Min.Y, float64(r>>8))
			}
		}
		return vol, nil
	}

	vol := models.NewVolume(b.Dx(), b.Dy(), 3, 1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			vol.Set(0, 0, x-b.Min.X, y-b.Min.Y, float64(r>>8))
			vol.Set(1, 0, x-b.Min.X, y-b.Min.Y, float64(g>>8))
			vol.Set(2, 0, x-b.Min.X, y-b.Min.Y, float64(bl>>8))
		}
	}
	return vol, nil
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
