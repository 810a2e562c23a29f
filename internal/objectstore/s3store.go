// Copyright 2025 James Ross
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
)

// S3Config configures the S3-compatible backend. A container maps to a
// bucket prefix, not a separate bucket, so all the logical containers
// of spec.md §2 can live in one account.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // set for MinIO / other S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3Store implements Store against an S3-compatible object store.
type S3Store struct {
	cfg      S3Config
	client   *s3.S3
	uploader *s3manager.Uploader
	log      *zap.Logger
}

// NewS3Store builds a session; it does not check bucket access.
func NewS3Store(cfg S3Config, log *zap.Logger) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	} else if cfg.ForcePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore: create aws session: %w", err)
	}

	return &S3Store{
		cfg:      cfg,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		log:      log,
	}, nil
}

func (s *S3Store) key(container, path string) string {
	return container + "/" + path
}

func (s *S3Store) UploadJSON(ctx context.Context, container, path string, data any, ifNoneMatch bool) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.put(ctx, container, path, b, "application/json", ifNoneMatch)
}

func (s *S3Store) UploadText(ctx context.Context, container, path, text, contentType string) error {
	return s.put(ctx, container, path, []byte(text), contentType, false)
}

func (s *S3Store) UploadBinary(ctx context.Context, container, path string, data []byte, contentType string) error {
	return s.put(ctx, container, path, data, contentType, false)
}

func (s *S3Store) put(ctx context.Context, container, path string, data []byte, contentType string, ifNoneMatch bool) error {
	input := &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key(container, path)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	_, err := s.uploader.UploadWithContext(ctx, input, func(u *s3manager.Uploader) {
		if ifNoneMatch {
			u.RequestOptions = append(u.RequestOptions, func(r *request.Request) {
				r.HTTPRequest.Header.Set("If-None-Match", "*")
			})
		}
	})
	if err != nil {
		if ifNoneMatch && isPreconditionFailed(err) {
			return ErrConflict
		}
		if isTransient(err) {
			return ErrTransientIO
		}
		return fmt.Errorf("objectstore: put %s/%s: %w", container, path, err)
	}
	return nil
}

func (s *S3Store) DownloadJSON(ctx context.Context, container, path string, v any) error {
	b, err := s.get(ctx, container, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (s *S3Store) DownloadText(ctx context.Context, container, path string) (string, error) {
	b, err := s.get(ctx, container, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *S3Store) DownloadBinary(ctx context.Context, container, path string) ([]byte, error) {
	return s.get(ctx, container, path)
}

func (s *S3Store) get(ctx context.Context, container, path string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(container, path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		if isTransient(err) {
			return nil, ErrTransientIO
		}
		return nil, fmt.Errorf("objectstore: get %s/%s: %w", container, path, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) List(ctx context.Context, container, prefix string, modifiedSince time.Time) ([]ObjectInfo, error) {
	var out []ObjectInfo
	fullPrefix := s.key(container, prefix)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(fullPrefix),
	}
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if !modifiedSince.IsZero() && obj.LastModified != nil && obj.LastModified.Before(modifiedSince) {
				continue
			}
			rel := (*obj.Key)[len(container)+1:]
			info := ObjectInfo{Path: rel}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
		return !lastPage
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s/%s: %w", container, prefix, err)
	}
	return out, nil
}

func (s *S3Store) Delete(ctx context.Context, container, path string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(container, path)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("objectstore: delete %s/%s: %w", container, path, err)
	}
	return nil
}

func (s *S3Store) Copy(ctx context.Context, srcContainer, srcPath, dstContainer, dstPath string) error {
	src := s.cfg.Bucket + "/" + s.key(srcContainer, srcPath)
	_, err := s.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		CopySource: aws.String(src),
		Key:        aws.String(s.key(dstContainer, dstPath)),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("objectstore: copy %s/%s -> %s/%s: %w", srcContainer, srcPath, dstContainer, dstPath, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound", "404":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "PreconditionFailed", "412":
			return true
		}
	}
	return false
}

func isTransient(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "RequestTimeout", "InternalError", "SlowDown", "ServiceUnavailable":
			return true
		}
	}
	return false
}
