// Package archive keeps the raw uploaded CSV files in S3. The database only
// holds parsed records; the original file is the audit trail and the input
// for re-ingesting after a parser fix.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/campaign-insights/internal/config"
)

// API is the slice of the S3 client the archive uses; tests stub it.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Archive stores raw uploads in an S3 bucket. A nil *Archive is valid and
// archives nothing.
type Archive struct {
	client API
	bucket string
	prefix string
	now    func() time.Time
}

// New builds the archive from config. Returns nil when disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	// Static keys beat the profile/IAM chain when both are set.
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Archive{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}, nil
}

// NewWithClient wraps a client directly, mainly for tests.
func NewWithClient(client API, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// Put stores a raw upload and returns its object key.
func (a *Archive) Put(ctx context.Context, datasetID, kind, filename string, body io.Reader) (string, error) {
	if a == nil {
		return "", nil
	}
	key := a.key(datasetID, kind, filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("archive put %s: %w", key, err)
	}
	return key, nil
}

// Get retrieves a raw upload by key. The caller closes the reader.
func (a *Archive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if a == nil {
		return nil, fmt.Errorf("archive disabled")
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive get %s: %w", key, err)
	}
	return out.Body, nil
}

// List returns the archived object keys for a dataset, as stored.
func (a *Archive) List(ctx context.Context, datasetID string) ([]string, error) {
	if a == nil {
		return nil, nil
	}
	var keys []string
	var token *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.bucket),
			Prefix:            aws.String(path.Join(a.prefix, datasetID) + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("archive list %s: %w", datasetID, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.NextContinuationToken == nil {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

// key layout: <prefix>/<dataset>/<kind>/<timestamp>-<filename>.
func (a *Archive) key(datasetID, kind, filename string) string {
	stamp := a.now().UTC().Format("20060102T150405Z")
	return path.Join(a.prefix, datasetID, kind, stamp+"-"+path.Base(filename))
}
