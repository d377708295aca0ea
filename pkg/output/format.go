// Package output encodes figures and stores them in a directory or an S3
// bucket.
package output

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"

	"golang.org/x/image/tiff"
)

// Format is a figure file format
type Format string

const (
	FormatTIFF Format = "tiff"
	FormatJPEG Format = "jpeg"
)

// JPEGQuality is the quality used for JPEG figures
const JPEGQuality = 90

// ParseFormat accepts format names and common extensions
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "tif", "tiff":
		return FormatTIFF, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("unsupported output format %q (expected tiff or jpeg)", s)
}

// Extension returns the file extension used for f, without the dot
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "tif"
}

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/tiff"
}

// OutputName returns the figure file name for an input stem
func OutputName(stem string, f Format) string {
	return stem + "_figure." + f.Extension()
}

// Encode writes img to w in format f. TIFF output is deflate compressed.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	}
	return fmt.Errorf("unsupported output format %q", f)
}
