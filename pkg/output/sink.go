package output

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"microfigure/internal/models"
)

// Sink stores finished figures. Save returns the location written and wraps
// failures in models.ErrSave.
type Sink interface {
	Save(ctx context.Context, img image.Image, stem string, f Format) (string, error)
}

// FileSink writes figures into a local directory
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, models.Configurationf("output directory required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory: %v", models.ErrSave, err)
	}
	return &FileSink{Dir: dir}, nil
}

// Save encodes img next to the other figures of the run
func (s *FileSink) Save(ctx context.Context, img image.Image, stem string, f Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.Dir, OutputName(stem, f))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSave, err)
	}

	if err := Encode(file, img, f); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: failed to encode %s: %v", models.ErrSave, path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSave, err)
	}
	return path, nil
}

// String returns the directory
func (s *FileSink) String() string {
	return s.Dir
}

// IsS3Location reports whether loc is an s3:// URL
func IsS3Location(loc string) bool {
	return strings.HasPrefix(loc, "s3://")
}

// ParseS3Location splits s3://bucket/prefix into bucket and key prefix
func ParseS3Location(loc string) (bucket, prefix string, err error) {
	if !IsS3Location(loc) {
		return "", "", models.Configurationf("not an s3 location: %q", loc)
	}
	rest := strings.TrimPrefix(loc, "s3://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", models.Configurationf("s3 location %q has no bucket", loc)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// NewSink picks a sink for an output location: s3:// URLs go to S3,
// anything else is a directory
func NewSink(ctx context.Context, loc string, cfg S3Config) (Sink, error) {
	if !IsS3Location(loc) {
		return NewFileSink(loc)
	}
	bucket, prefix, err := ParseS3Location(loc)
	if err != nil {
		return nil, err
	}
	cfg.Bucket = bucket
	cfg.Prefix = prefix
	return NewS3Sink(ctx, cfg)
}

func encodeToBuffer(img image.Image, f Format) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f); err != nil {
		return nil, err
	}
	return &buf, nil
}
