package output

import (
	"context"
	"fmt"
	"image"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"microfigure/internal/models"
)

// S3Config holds construction parameters for an S3 sink. Credentials come
// from the default AWS chain.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string
	Endpoint  string // optional, e.g. MinIO
	PathStyle bool
}

// objectPutter is the part of the S3 client the sink uses
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads figures to an S3-compatible bucket
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink from cfg
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, models.Configurationf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", models.ErrConfiguration, err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Save encodes img in memory and uploads it under the sink prefix
func (s *S3Sink) Save(ctx context.Context, img image.Image, stem string, f Format) (string, error) {
	buf, err := encodeToBuffer(img, f)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode figure: %v", models.ErrSave, err)
	}

	key := path.Join(s.prefix, OutputName(stem, f))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          buf,
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String(f.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to upload s3://%s/%s: %v", models.ErrSave, s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// String returns the s3:// location of the sink
func (s *S3Sink) String() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}
