package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions configure the MinIO adapter. Endpoint is host[:port]; a
// scheme prefix is accepted and decides UseSSL.
type MinIOOptions struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinIO signs URLs with minio-go.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates the client. No request is made until the first call.
func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	endpoint, secure := splitEndpoint(opts.Endpoint, opts.UseSSL)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: client, bucket: opts.Bucket}, nil
}

// SignURL presigns a PUT or GET for key.
func (m *MinIO) SignURL(ctx context.Context, key, method string, expires time.Duration) (string, error) {
	verb, err := checkMethod(method)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	var u *url.URL
	if verb == http.MethodPut {
		u, err = m.client.PresignedPutObject(ctx, m.bucket, k, expires)
	} else {
		u, err = m.client.PresignedGetObject(ctx, m.bucket, k, expires, nil)
	}
	if err != nil {
		return "", fmt.Errorf("minio presign %s bucket=%s key=%s: %w", strings.ToLower(verb), m.bucket, k, err)
	}
	return u.String(), nil
}

// Exists stats the object.
func (m *MinIO) Exists(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = m.client.StatObject(ctx, m.bucket, k, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("minio stat bucket=%s key=%s: %w", m.bucket, k, err)
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	e := strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(e, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(e, "https://"), "/"), true
	case strings.HasPrefix(e, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(e, "http://"), "/"), false
	}
	return strings.TrimSuffix(e, "/"), useSSL
}

var _ Adapter = (*MinIO)(nil)
