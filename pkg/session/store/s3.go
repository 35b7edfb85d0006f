package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/hostkit/pkg/session"
)

// s3ObjectName is the object holding every persisted session, below the
// configured key prefix.
const s3ObjectName = "sessions.json"

// S3Store persists sessions as a single JSON document in an S3 bucket. It
// suits deployments without a local disk that outlives the process.
type S3Store struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the SDK default chain applies.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3StoreWithClient(client, cfg), nil
}

// NewS3StoreWithClient uses an existing client.
func NewS3StoreWithClient(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{client: client, bucket: cfg.Bucket, key: cfg.KeyPrefix + s3ObjectName}
}

func (s *S3Store) Name() string { return string(TypeS3) }

func (s *S3Store) Load(ctx context.Context) ([]session.Record, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body: %w", err)
	}

	var records []session.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return records, nil
}

// Save overwrites the sessions object with records.
func (s *S3Store) Save(ctx context.Context, records []session.Record) error {
	if records == nil {
		records = []session.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
