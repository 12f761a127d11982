package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/slingshot"
	"github.com/five82/slingshot/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAdapter signs deterministic URLs and reports keys in objects as stored.
type fakeAdapter struct {
	objects map[string]bool
	signErr error
}

func (f *fakeAdapter) SignURL(_ context.Context, key, method string, _ time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://bucket.storage.test/" + key + "?method=" + method, nil
}

func (f *fakeAdapter) Exists(_ context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.BasePath = "/api/slingshot"
	cfg.Profiles = []config.Profile{
		{Name: "avatar", MaxSize: 1024, AllowedTypes: []string{"image/*"}},
		{Name: "docs", AllowedTypes: []string{"application/pdf"}, UniqueKeys: true, RequiredMeta: []string{"userId"}},
		{Name: "any"},
	}
	return cfg
}

func newTestServer(t *testing.T, adapter storage.Adapter, mutate ...func(*Options)) *Server {
	t.Helper()
	opts := Options{Config: testConfig(), Adapter: adapter}
	for _, fn := range mutate {
		fn(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func postRequest(t *testing.T, h http.Handler, profile string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/slingshot/"+profile+"/request", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body slingshot.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Config: testConfig()})
	require.Error(t, err)

	_, err = New(Options{Config: config.Default(), Adapter: &fakeAdapter{}})
	require.ErrorIs(t, err, config.ErrNoProfiles)
}

func TestRequest_AuthorizesAllowedFile(t *testing.T) {
	s := newTestServer(t, &fakeAdapter{})

	rec := postRequest(t, s.Handler(), "avatar", slingshot.AuthorizationRequest{
		File: slingshot.FileDescriptor{Name: "A.png", Type: "image/png", Size: 512},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var auth slingshot.Authorization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	assert.Equal(t, "avatar/A.png", auth.Key)
	assert.Equal(t, "https://bucket.storage.test/avatar/A.png?method=PUT", auth.URL)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequest_PolicyRejections(t *testing.T) {
	s := newTestServer(t, &fakeAdapter{})

	tests := []struct {
		name    string
		profile string
		body    any
		status  int
		message string
	}{
		{
			name:    "type not allowed",
			profile: "avatar",
			body:    slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "B.exe", Type: "application/x-msdownload", Size: 10}},
			status:  http.StatusBadRequest,
			message: "File type not allowed",
		},
		{
			name:    "too large",
			profile: "avatar",
			body:    slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "big.png", Type: "image/png", Size: 2048}},
			status:  http.StatusBadRequest,
			message: "File size too large",
		},
		{
			name:    "missing required meta",
			profile: "docs",
			body:    slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "a.pdf", Type: "application/pdf", Size: 1}},
			status:  http.StatusBadRequest,
			message: "Missing meta: userId",
		},
		{
			name:    "unknown profile",
			profile: "nope",
			body:    slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "a.png"}},
			status:  http.StatusNotFound,
			message: "Unknown profile",
		},
		{
			name:    "missing name",
			profile: "any",
			body:    map[string]any{"file": map[string]any{"type": "text/plain", "size": 1}},
			status:  http.StatusBadRequest,
			message: "Invalid request body",
		},
		{
			name:    "negative size",
			profile: "any",
			body:    map[string]any{"file": map[string]any{"name": "a", "size": -1}},
			status:  http.StatusBadRequest,
			message: "Invalid request body",
		},
		{
			name:    "meta with nested value",
			profile: "any",
			body:    map[string]any{"file": map[string]any{"name": "a"}, "meta": map[string]any{"tags": []string{"x"}}},
			status:  http.StatusBadRequest,
			message: "Meta must be an object with string or number values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postRequest(t, s.Handler(), tt.profile, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec))
		})
	}
}

func TestRequest_UniqueKeysAndMeta(t *testing.T) {
	s := newTestServer(t, &fakeAdapter{})

	rec := postRequest(t, s.Handler(), "docs", slingshot.AuthorizationRequest{
		File: slingshot.FileDescriptor{Name: "../report.pdf", Type: "application/pdf", Size: 1},
		Meta: slingshot.Meta{"userId": 7},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var auth slingshot.Authorization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	parts := strings.Split(auth.Key, "/")
	require.Len(t, parts, 3, auth.Key)
	assert.Equal(t, "docs", parts[0])
	assert.Len(t, parts[1], 36, "uuid segment")
	assert.Equal(t, ".._report.pdf", parts[2])
}

func TestRequest_AuthorizeHookAndAdapterErrors(t *testing.T) {
	s := newTestServer(t, &fakeAdapter{}, func(o *Options) {
		o.Authorize = func(_ context.Context, _ config.Profile, file slingshot.FileDescriptor, meta slingshot.Meta) error {
			if meta.String("token") != "ok" {
				return errors.New("Unauthorized")
			}
			return nil
		}
	})
	rec := postRequest(t, s.Handler(), "any", slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "a"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unauthorized", decodeError(t, rec))

	broken := newTestServer(t, &fakeAdapter{signErr: errors.New("bucket unreachable")})
	rec = postRequest(t, broken.Handler(), "any", slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "a"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bucket unreachable", decodeError(t, rec))
}

func TestResolve(t *testing.T) {
	s := newTestServer(t, &fakeAdapter{objects: map[string]bool{"avatar/a.png": true}})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/slingshot/avatar/avatar/a.png")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://bucket.storage.test/avatar/a.png?method=GET", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, get("/api/slingshot/avatar/avatar/missing.png").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/slingshot/avatar/docs/a.png").Code, "keys outside the profile")
	assert.Equal(t, http.StatusNotFound, get("/api/slingshot/nope/nope/a.png").Code)
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	s := newTestServer(t, &fakeAdapter{}, func(o *Options) {
		o.Authorize = func(context.Context, config.Profile, slingshot.FileDescriptor, slingshot.Meta) error {
			panic("boom")
		}
	})
	rec := postRequest(t, s.Handler(), "any", slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "a"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec))
}

// localServer runs a Server with the local driver on a real listener so the
// signed URLs point back at it.
func localServer(t *testing.T) (*httptest.Server, *storage.Local) {
	t.Helper()
	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	local, err := storage.NewLocal(t.TempDir(), ts.URL, "secret")
	require.NoError(t, err)
	s := newTestServer(t, local)
	handler = s.Handler()
	return ts, local
}

func TestLocalBlobs_RoundTrip(t *testing.T) {
	ts, _ := localServer(t)
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	raw, _ := json.Marshal(slingshot.AuthorizationRequest{File: slingshot.FileDescriptor{Name: "a.png", Type: "image/png", Size: int64(len(png))}})
	resp, err := client.Post(ts.URL+"/api/slingshot/avatar/request", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	var auth slingshot.Authorization
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	_ = resp.Body.Close()
	require.True(t, strings.HasPrefix(auth.URL, ts.URL+storage.BlobPrefix+"/avatar/a.png?"), auth.URL)

	put, _ := http.NewRequest(http.MethodPut, auth.URL, bytes.NewReader(png))
	resp, err = client.Do(put)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/slingshot/avatar/" + auth.Key)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")

	resp, err = client.Get(location)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, png, body)
}

func TestLocalBlobs_RejectsBadSignatureAndOversize(t *testing.T) {
	ts, local := localServer(t)
	ctx := context.Background()

	signed, err := local.SignURL(ctx, "avatar/a.png", http.MethodPut, time.Minute)
	require.NoError(t, err)

	tampered := strings.Replace(signed, "avatar/a.png", "avatar/b.png", 1)
	req, _ := http.NewRequest(http.MethodPut, tampered, strings.NewReader("x"))
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "SignatureDoesNotMatch", string(body))

	req, _ = http.NewRequest(http.MethodPut, signed, bytes.NewReader(make([]byte, 2048)))
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	ok, err := local.Exists(ctx, "avatar/a.png")
	require.NoError(t, err)
	assert.False(t, ok)
}
