// Package storage provides an S3-compatible object store used for chat
// attachments. It targets any S3 endpoint; the endpoint override makes
// it work against Cloudflare R2 and MinIO as well.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the connection settings for the attachment bucket.
type Config struct {
	Endpoint  string // optional; empty uses the default AWS endpoint
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicBaseURL is the base under which uploaded objects are
	// publicly reachable, e.g. a CDN or public bucket domain.
	PublicBaseURL string
}

// S3Store uploads attachment objects and resolves their public URLs.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store builds the client from static credentials.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket name is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("storage: public base URL is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload writes one object under key. The content type is derived from
// the key's extension.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the stable public URL of an uploaded object.
func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}

// Delete removes one object. Attachment rows cascade with their chat;
// this cleans up the orphaned object.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Key inverts PublicURL. A URL outside this store's public base maps
// to "".
func (s *S3Store) Key(fileURL string) string {
	key, ok := strings.CutPrefix(fileURL, s.publicBaseURL+"/")
	if !ok {
		return ""
	}
	return key
}
