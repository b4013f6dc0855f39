package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	mtxerrors "github.com/matzehuels/mtxlayout/pkg/errors"
)

// S3Config locates checkpoint objects.
type S3Config struct {
	Bucket   string
	Prefix   string // Key prefix, e.g. "layouts/"
	Region   string // Empty uses the SDK's default resolution
	Endpoint string // For S3-compatible services; enables path-style addressing
}

// S3Store keeps snappy-compressed checkpoints as objects.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store loads the default AWS configuration and creates a client.
// Credentials come from the usual environment, profile or instance sources.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, mtxerrors.New(mtxerrors.ErrCodeInvalidConfig, "s3 bucket is required")
	}
	if cfg.Endpoint != "" {
		if err := mtxerrors.ValidateURL(cfg.Endpoint, "http", "https"); err != nil {
			return nil, err
		}
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, mtxerrors.Wrap(mtxerrors.ErrCodeInvalidConfig, err, "aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, name) + Extension
}

// Save puts the object with If-None-Match: *, so an existing object is kept.
func (s *S3Store) Save(ctx context.Context, name string, data []byte) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	payload := compress(data)
	meta := map[string]string{
		"digest": Digest(data),
		"size":   strconv.Itoa(len(data)),
	}
	if id := RunID(ctx); id != "" {
		meta["run-id"] = id
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/octet-stream"),
		IfNoneMatch: aws.String("*"),
		Metadata:    meta,
	})
	if err != nil {
		if alreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("save %s: %w", name, err)
	}
	return true, nil
}

// alreadyExists reports a failed If-None-Match precondition.
func alreadyExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

// Load gets and decompresses the object.
func (s *S3Store) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data, err := decompress(payload)
	if err != nil {
		return nil, err
	}
	if want := out.Metadata["digest"]; want != "" && Digest(data) != want {
		return nil, mtxerrors.New(mtxerrors.ErrCodeMalformedCheckpoint, "%s: digest mismatch", name)
	}
	return data, nil
}

// List pages through the objects under the prefix.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, Extension) {
				continue
			}
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(key, prefix), Extension))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the object.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Close does nothing; the SDK client holds no long-lived connections to release.
func (s *S3Store) Close() error {
	return nil
}

// Ensure S3Store implements Store.
var _ Store = (*S3Store)(nil)
