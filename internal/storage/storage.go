// Package storage signs object URLs for the signing server.
//
// An Adapter never sees file bytes on the S3 and MinIO paths: the client PUTs
// straight to the signed URL. The Local adapter is for development; its URLs
// point back at the signing server, which stores the bytes on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/five82/slingshot/internal/config"
)

var (
	// ErrUnsupportedMethod is returned by SignURL for methods other than PUT and GET.
	ErrUnsupportedMethod = errors.New("storage: unsupported method")
	// ErrInvalidKey is returned for empty keys and keys that escape the namespace.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Adapter creates signed URLs for one bucket or directory.
type Adapter interface {
	// SignURL returns a URL that allows method on key until expires elapses.
	SignURL(ctx context.Context, key, method string, expires time.Duration) (string, error)
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Open builds the adapter selected by cfg. publicURL is the externally
// reachable address of the signing server, used by the local driver.
func Open(ctx context.Context, cfg config.Storage, publicURL string) (Adapter, error) {
	switch cfg.Driver {
	case config.DriverS3:
		return NewS3(ctx, S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
		})
	case config.DriverMinIO:
		return NewMinIO(MinIOOptions{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
	case config.DriverLocal, "":
		return NewLocal(cfg.Dir, publicURL, cfg.Secret)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

func checkMethod(method string) (string, error) {
	m := strings.ToUpper(method)
	switch m {
	case http.MethodPut, http.MethodGet:
		return m, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

// cleanKey rejects keys that are empty or contain parent references.
func cleanKey(key string) (string, error) {
	k := strings.TrimLeft(key, "/")
	if k == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(k, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return k, nil
}
