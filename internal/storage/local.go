package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BlobPrefix is the path under the server's public URL where local blobs are
// served.
const BlobPrefix = "/_blob"

var (
	// ErrSignatureInvalid is returned by Verify for a tampered or foreign URL.
	ErrSignatureInvalid = errors.New("storage: invalid signature")
	// ErrSignatureExpired is returned by Verify once the URL expired.
	ErrSignatureExpired = errors.New("storage: signature expired")
	// ErrTooLarge is returned by Write when the body exceeds the limit.
	ErrTooLarge = errors.New("storage: object too large")
)

// Local stores objects in a directory and signs URLs with HMAC-SHA256.
type Local struct {
	dir       string
	publicURL string
	secret    []byte
	now       func() time.Time
}

// NewLocal creates dir if needed. An empty secret is replaced by a random
// one, which invalidates signed URLs across restarts.
func NewLocal(dir, publicURL, secret string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
	}
	return &Local{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		secret:    key,
		now:       time.Now,
	}, nil
}

// SignURL returns {publicURL}/_blob/{key}?expires=...&signature=...
func (l *Local) SignURL(_ context.Context, key, method string, expires time.Duration) (string, error) {
	verb, err := checkMethod(method)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	exp := strconv.FormatInt(l.now().Add(expires).Unix(), 10)
	q := url.Values{}
	q.Set("expires", exp)
	q.Set("signature", l.sign(verb, k, exp))
	return l.publicURL + BlobPrefix + "/" + escapePath(k) + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignURL for method and key.
func (l *Local) Verify(method, key, expires, signature string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	want := l.sign(strings.ToUpper(method), k, expires)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrSignatureInvalid
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if l.now().Unix() > exp {
		return ErrSignatureExpired
	}
	return nil
}

// Exists reports whether key is stored.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	path, err := l.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// Write stores r under key, replacing any previous object. A limit above
// zero caps the object size.
func (l *Local) Write(key string, r io.Reader, limit int64) (int64, error) {
	path, err := l.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("write object %s: %w", key, err)
	}
	if limit > 0 && n > limit {
		return n, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("commit object %s: %w", key, err)
	}
	return n, nil
}

// Open returns the stored object.
func (l *Local) Open(key string) (*os.File, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (l *Local) sign(method, key, expires string) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(method + "\n" + key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *Local) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, filepath.FromSlash(k)), nil
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ Adapter = (*Local)(nil)
