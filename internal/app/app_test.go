package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/server"
	"github.com/five82/slingshot/internal/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1}

// startSigningServer runs the real signing server with local blob storage and
// an avatar profile that only takes images.
func startSigningServer(t *testing.T) (*httptest.Server, *storage.Local) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	local, err := storage.NewLocal(t.TempDir(), ts.URL, "secret")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Profiles = []config.Profile{{Name: "avatar", MaxSize: 1 << 20, AllowedTypes: []string{"image/*"}}}
	srv, err := server.New(server.Options{Config: cfg, Adapter: local})
	require.NoError(t, err)
	handler = srv.Handler()
	return ts, local
}

func writeClientConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("base_url = %q\nprofile = \"avatar\"\nconcurrency = 2\n", baseURL+"/api/slingshot")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRun_PlainUploadsAndRejects(t *testing.T) {
	ts, local := startSigningServer(t)
	dir := t.TempDir()

	var stdout bytes.Buffer
	err := Run(context.Background(), Options{
		ConfigPath: writeClientConfig(t, dir, ts.URL),
		Plain:      true,
		Files: []string{
			writeFile(t, dir, "A.png", pngHeader),
			writeFile(t, dir, "B.exe", []byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff")),
		},
		Stdout: &stdout,
		Stderr: io.Discard,
	})

	require.ErrorIs(t, err, ErrIncomplete)
	out := stdout.String()
	assert.Contains(t, out, "A.png: done")
	assert.Contains(t, out, "B.exe: rejected: File type not allowed")
	assert.Contains(t, out, "done: 1 done, 1 rejected (2 files)")

	ok, err := local.Exists(context.Background(), "avatar/A.png")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = local.Exists(context.Background(), "avatar/B.exe")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_PlainAllDone(t *testing.T) {
	ts, _ := startSigningServer(t)
	dir := t.TempDir()

	var stdout bytes.Buffer
	err := Run(context.Background(), Options{
		ConfigPath: writeClientConfig(t, dir, ts.URL),
		Profile:    "avatar",
		Plain:      true,
		Files:      []string{writeFile(t, dir, "me.png", pngHeader)},
		Stdout:     &stdout,
		Stderr:     io.Discard,
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "me.png: done")
}

func TestRun_InputErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeClientConfig(t, dir, "http://127.0.0.1:1")

	err := Run(context.Background(), Options{ConfigPath: cfgPath, Plain: true, Stderr: io.Discard})
	require.Error(t, err)

	err = Run(context.Background(), Options{
		ConfigPath: cfgPath,
		Plain:      true,
		Files:      []string{filepath.Join(dir, "missing.png")},
		Stderr:     io.Discard,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}
