package slingshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrProfileRequired is returned by NewClient when no profile is given.
	ErrProfileRequired = errors.New("slingshot: profile is required")
	// ErrNotFound is returned by Resolve when the server has no object for the key.
	ErrNotFound = errors.New("slingshot: object not found")
)

const (
	defaultBaseURL   = "http://127.0.0.1:8080/api/slingshot"
	defaultUserAgent = "slingshot/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 * 1024
)

// Client talks to a Slingshot signing server for a single profile and performs
// the binary transfers to the signed URLs it hands out.
type Client struct {
	baseURL   *url.URL
	profile   string
	api       *http.Client
	transfer  *http.Client
	userAgent string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for both API calls and transfers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		c.api = hc
		c.transfer = hc
	}
}

// WithRequestTimeout bounds authorization and resolve calls. Transfers are
// bounded only by their context.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.api = &http.Client{Timeout: d, Transport: c.api.Transport}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for profile rooted at baseURL
// (e.g. http://localhost:8080/api/slingshot).
func NewClient(baseURL, profile string, opts ...Option) (*Client, error) {
	profile = strings.Trim(strings.TrimSpace(profile), "/")
	if profile == "" {
		return nil, ErrProfileRequired
	}
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		profile:   profile,
		api:       &http.Client{Timeout: requestTimeout},
		transfer:  &http.Client{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Profile returns the upload profile the client was built for.
func (c *Client) Profile() string { return c.profile }

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// RequestAuthorization asks the server to validate file and issue a storage
// key plus a signed PUT URL.
func (c *Client) RequestAuthorization(ctx context.Context, file FileDescriptor, meta Meta) (Authorization, error) {
	if c == nil {
		return Authorization{}, fmt.Errorf("client is nil")
	}
	payload, err := json.Marshal(AuthorizationRequest{File: file, Meta: meta})
	if err != nil {
		return Authorization{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("request"), bytes.NewReader(payload))
	if err != nil {
		return Authorization{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.api.Do(req)
	if err != nil {
		return Authorization{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Authorization{}, decodeAPIError(resp)
	}

	var auth Authorization
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return Authorization{}, fmt.Errorf("decode response: %w", err)
	}
	return auth, nil
}

// Upload PUTs body to the signed url. onProgress, when non-nil, receives the
// integer percentage of size sent each time it changes.
func (c *Client) Upload(ctx context.Context, signedURL string, body io.Reader, size int64, contentType string, onProgress func(int)) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(signedURL) == "" {
		return fmt.Errorf("upload: url is empty")
	}

	reader := newProgressReader(body, size, onProgress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, reader)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("execute upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UploadError{Status: resp.StatusCode, Body: string(text)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	reader.finish()
	return nil
}

// Resolve returns the signed retrieval URL the server redirects to for key.
func (c *Client) Resolve(ctx context.Context, key string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("resolve: key is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(key), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	noFollow := *c.api
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noFollow.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc, err := resp.Location()
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", key, err)
		}
		return loc.String(), nil
	default:
		return "", decodeAPIError(resp)
	}
}

func (c *Client) endpoint(rest string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + url.PathEscape(c.profile) + "/" + escapeKey(rest)
	return u.String()
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && strings.TrimSpace(body.Error) != "" {
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	return &APIError{Status: resp.StatusCode}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
