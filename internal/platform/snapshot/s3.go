package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/medledger/medledger/internal/domain/ledger"
)

const s3ObjectName = "ledger-state.json"

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates the snapshot object. It is parsed from a path of the
// form s3://bucket/prefix?region=eu-west-1&endpoint=http://minio:9000&path_style=true.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // optional; S3-compatible servers such as MinIO
	PathStyle bool
}

func ParseS3Path(raw string) (S3Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return S3Config{}, fmt.Errorf("parse s3 path: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return S3Config{}, fmt.Errorf("s3 path must look like s3://bucket/prefix, got %q", raw)
	}
	q := u.Query()
	return S3Config{
		Bucket:    u.Host,
		Prefix:    strings.Trim(u.Path, "/"),
		Region:    q.Get("region"),
		Endpoint:  q.Get("endpoint"),
		PathStyle: strings.EqualFold(q.Get("path_style"), "true"),
	}, nil
}

// S3 keeps every bucket in a single JSON object so a save is one PUT and a
// reader never sees a mix of two saves. Credentials come from the default
// AWS chain.
type S3 struct {
	client objectAPI
	bucket string
	key    string
}

func OpenS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3(client, cfg), nil
}

func newS3(client objectAPI, cfg S3Config) *S3 {
	return &S3{client: client, bucket: cfg.Bucket, key: path.Join(cfg.Prefix, s3ObjectName)}
}

func (s *S3) Save(ctx context.Context, st ledger.State) error {
	raw, err := encode(st)
	if err != nil {
		return err
	}
	doc := make(map[string]json.RawMessage, len(raw))
	for b, data := range raw {
		doc[b] = data
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3) Load(ctx context.Context) (ledger.State, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return ledger.State{}, false, nil
		}
		return ledger.State{}, false, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return ledger.State{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return ledger.State{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	raw := make(map[string][]byte, len(doc))
	for b, data := range doc {
		raw[b] = data
	}
	return decode(raw)
}

// Key is the object key the snapshot is written to.
func (s *S3) Key() string { return s.key }

func (s *S3) Close() error { return nil }
