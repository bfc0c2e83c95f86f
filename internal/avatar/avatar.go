// Package avatar turns stored avatar keys into URLs for API responses.
package avatar

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StaticResolver joins keys onto a public base URL.
type StaticResolver struct {
	base string
}

func NewStaticResolver(baseURL string) *StaticResolver {
	return &StaticResolver{base: strings.TrimRight(baseURL, "/")}
}

func (r *StaticResolver) URL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	segments := strings.Split(strings.Trim(key, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return r.base + "/" + strings.Join(segments, "/"), nil
}

// S3Resolver hands out short lived presigned GET URLs for objects in a
// private bucket.
type S3Resolver struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

type S3Options struct {
	Region          string
	Bucket          string
	AccessKeyID     string // optional, falls back to the default credential chain
	SecretAccessKey string
	TTL             time.Duration
}

func NewS3Resolver(ctx context.Context, opts S3Options) (*S3Resolver, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3Resolver{
		presign: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		bucket:  opts.Bucket,
		ttl:     ttl,
	}, nil
}

func (r *S3Resolver) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = r.ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign avatar %s: %w", key, err)
	}
	return req.URL, nil
}
