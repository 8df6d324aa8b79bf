package writer

import (
	"bytes"
	"context"
	"fmt"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nishad/runsheet/internal/errors"
)

const csvContentType = "text/csv"

// S3Options configure an S3Sink. Credentials come from the default AWS chain
// unless AccessKeyID is set.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, enables custom endpoints such as MinIO
	Prefix          string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	HTTPClient s3.HTTPClient // optional transport override
}

// S3Sink writes runsheets as objects of one bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink.
func NewS3Sink(ctx context.Context, opts S3Options) (*S3Sink, error) {
	const op errors.Op = "writer.NewS3Sink"
	if opts.Bucket == "" {
		return nil, errors.E(op, errors.KindConfig, "s3 bucket required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
	})
	return &S3Sink{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Write puts the runsheet under prefix+name and returns its s3:// URI.
func (s *S3Sink) Write(ctx context.Context, name string, data []byte) (string, error) {
	const op errors.Op = "writer.S3Sink.Write"
	if err := checkName(name); err != nil {
		return "", errors.E(op, errors.KindConfig, err)
	}
	key := s.prefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(csvContentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to upload %s to bucket %s", key, s.bucket))
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
