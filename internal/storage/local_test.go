package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), "http://127.0.0.1:8080/", "test-secret")
	require.NoError(t, err)
	return l
}

func parseSigned(t *testing.T, raw string) (key, expires, signature string) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u.Path, BlobPrefix+"/"), "path %q", u.Path)
	return strings.TrimPrefix(u.Path, BlobPrefix+"/"), u.Query().Get("expires"), u.Query().Get("signature")
}

func TestLocal_SignAndVerify(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	raw, err := l.SignURL(ctx, "avatar/my photo.png", http.MethodPut, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "http://127.0.0.1:8080/_blob/avatar/my%20photo.png?"), raw)

	key, exp, sig := parseSigned(t, raw)
	require.Equal(t, "avatar/my photo.png", key)
	require.NoError(t, l.Verify(http.MethodPut, key, exp, sig))

	assert.ErrorIs(t, l.Verify(http.MethodGet, key, exp, sig), ErrSignatureInvalid, "method is signed")
	assert.ErrorIs(t, l.Verify(http.MethodPut, "avatar/other.png", exp, sig), ErrSignatureInvalid, "key is signed")
	assert.ErrorIs(t, l.Verify(http.MethodPut, key, exp+"0", sig), ErrSignatureInvalid, "expiry is signed")

	other, err := NewLocal(t.TempDir(), "http://127.0.0.1:8080", "another-secret")
	require.NoError(t, err)
	assert.ErrorIs(t, other.Verify(http.MethodPut, key, exp, sig), ErrSignatureInvalid)
}

func TestLocal_VerifyExpired(t *testing.T) {
	l := newLocal(t)
	start := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return start }

	raw, err := l.SignURL(context.Background(), "k", http.MethodGet, time.Minute)
	require.NoError(t, err)
	key, exp, sig := parseSigned(t, raw)

	l.now = func() time.Time { return start.Add(2 * time.Minute) }
	assert.ErrorIs(t, l.Verify(http.MethodGet, key, exp, sig), ErrSignatureExpired)
}

func TestLocal_RejectsBadInput(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	_, err := l.SignURL(ctx, "k", http.MethodDelete, time.Minute)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	for _, key := range []string{"", "/", "../etc/passwd", "a/../../b"} {
		_, err := l.SignURL(ctx, key, http.MethodPut, time.Minute)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestLocal_WriteOpenExists(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	ok, err := l.Exists(ctx, "avatar/a.png")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := l.Write("avatar/a.png", strings.NewReader("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	ok, err = l.Exists(ctx, "avatar/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := l.Open("avatar/a.png")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	ok, err = l.Exists(ctx, "avatar")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not objects")
}

func TestLocal_WriteLimit(t *testing.T) {
	l := newLocal(t)

	_, err := l.Write("big.bin", strings.NewReader("0123456789"), 4)
	require.ErrorIs(t, err, ErrTooLarge)

	ok, err := l.Exists(context.Background(), "big.bin")
	require.NoError(t, err)
	assert.False(t, ok, "oversized objects are discarded")
}

func TestNewLocal_GeneratesSecret(t *testing.T) {
	a, err := NewLocal(t.TempDir(), "http://x", "")
	require.NoError(t, err)
	b, err := NewLocal(t.TempDir(), "http://x", "")
	require.NoError(t, err)
	assert.Len(t, a.secret, 32)
	assert.NotEqual(t, a.secret, b.secret)
}
