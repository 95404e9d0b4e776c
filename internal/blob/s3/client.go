// Package s3blob archives the journal to S3-compatible object storage
// (AWS, MinIO, R2) using AWS SDK v2. Each UTC day of receipts is one JSONL
// object at {prefix}/YYYY-MM-DD.jsonl.
package s3blob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	dayLayout     = "2006-01-02"
	daySuffix     = ".jsonl"
	defaultPrefix = "archive/journal"
)

// ClientConfig locates the journal archive.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint, e.g. "http://localhost:9000" for
	// MinIO. Empty means AWS S3.
	Endpoint string
	Region   string
	Bucket   string
	// Prefix is the key prefix of the day objects.
	Prefix string

	// Without both keys the SDK default chain (env, profile, IAM role) is
	// used.
	AccessKey string
	SecretKey string

	// UseSSL picks the scheme when Endpoint has none.
	UseSSL bool
	// ForcePathStyle puts the bucket in the path instead of the host name.
	ForcePathStyle bool
}

// Client is an S3 client bound to one archive location.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New creates a Client for the archive in cfg.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return newClient(api, cfg.Bucket, cfg.Prefix), nil
}

func newClient(api *s3.Client, bucket, prefix string) *Client {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Client{s3: api, bucket: bucket, prefix: prefix}
}

// Ping checks the bucket is reachable with HeadBucket.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: bucket %s unreachable: %w", c.bucket, err)
	}
	return nil
}

// DayKey is the object key holding the receipts of day.
func (c *Client) DayKey(day time.Time) string {
	return c.prefix + "/" + day.UTC().Format(dayLayout) + daySuffix
}

// dayOf parses a key written by DayKey.
func (c *Client) dayOf(key string) (time.Time, bool) {
	name, ok := strings.CutPrefix(key, c.prefix+"/")
	if !ok {
		return time.Time{}, false
	}
	name, ok = strings.CutSuffix(name, daySuffix)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(dayLayout, name)
	return d, err == nil
}

// normaliseEndpoint adds a scheme to endpoint when it has none.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
