package widget

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/slingshot/internal/slingshot"
	"github.com/five82/slingshot/internal/upload"
)

type stubTransport struct {
	block chan struct{}
}

func (s *stubTransport) RequestAuthorization(_ context.Context, f slingshot.FileDescriptor, _ slingshot.Meta) (slingshot.Authorization, error) {
	return slingshot.Authorization{Key: "avatar/" + f.Name, URL: "http://storage.test/" + f.Name}, nil
}

func (s *stubTransport) Upload(ctx context.Context, _ string, body io.Reader, _ int64, _ string, onProgress func(int)) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	_, err := io.Copy(io.Discard, body)
	onProgress(100)
	return err
}

func newWidget(t *testing.T, tr upload.Transport, onAccept bool) *Widget {
	t.Helper()
	orch, err := upload.New(upload.Options{Transport: tr})
	require.NoError(t, err)
	w := Connect(orch, Options{UploadOnAccept: onAccept})
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func pngs(names ...string) []upload.File {
	out := make([]upload.File, 0, len(names))
	for _, n := range names {
		out = append(out, upload.BytesFile(n, "image/png", []byte(n)))
	}
	return out
}

func TestAccept_StagesUntilUploadPending(t *testing.T) {
	w := newWidget(t, &stubTransport{}, false)

	w.Accept(pngs("a.png", "b.png"))

	assert.Empty(t, w.Files(), "store stays empty until the user confirms")
	assert.Equal(t, upload.StatusIdle, w.Status())
	require.Len(t, w.Pending(), 2)

	require.NoError(t, w.UploadPending())
	w.Wait()

	assert.Empty(t, w.Pending())
	require.Len(t, w.Files(), 2)
	assert.Equal(t, upload.StatusDone, w.Status())
	assert.Equal(t, 100, w.Progress())
	assert.NoError(t, w.Err())
}

func TestAccept_UploadsImmediately(t *testing.T) {
	w := newWidget(t, &stubTransport{}, true)

	w.Accept(pngs("a.png"))
	w.Wait()

	assert.Empty(t, w.Pending())
	require.Len(t, w.Files(), 1)
	assert.Equal(t, upload.FileDone, w.Files()[0].Status)
	assert.Equal(t, "avatar/a.png", w.Files()[0].Key)
}

func TestUploadPending_NothingStaged(t *testing.T) {
	w := newWidget(t, &stubTransport{}, false)
	require.ErrorIs(t, w.UploadPending(), ErrNothingPending)
}

func TestUpload_StartErrorIsReported(t *testing.T) {
	w := newWidget(t, &stubTransport{}, false)

	w.Upload(nil)
	w.Wait()

	require.ErrorIs(t, w.Err(), upload.ErrNoFiles)
	assert.Equal(t, upload.StatusIdle, w.Status())
}

func TestChanges_ReportsProgress(t *testing.T) {
	w := newWidget(t, &stubTransport{}, false)
	ch, stop := w.Changes()
	defer stop()

	w.Upload(pngs("a.png"))
	w.Wait()

	snap := <-ch
	assert.Equal(t, upload.StatusDone, snap.Status)
}

func TestClose_AbortsRunningUpload(t *testing.T) {
	tr := &stubTransport{block: make(chan struct{})}
	orch, err := upload.New(upload.Options{Transport: tr})
	require.NoError(t, err)
	w := Connect(orch, Options{})

	w.Upload(pngs("a.png"))
	require.Eventually(t, func() bool {
		files := w.Files()
		return len(files) == 1 && files[0].Status == upload.FileUploading
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Close())

	assert.Equal(t, upload.StatusFailed, w.Status())
	assert.Equal(t, upload.FileAborted, w.Files()[0].Status)
}

func TestAbortAndClear(t *testing.T) {
	tr := &stubTransport{block: make(chan struct{})}
	w := newWidget(t, tr, false)

	w.Upload(pngs("a.png", "b.png"))
	require.Eventually(t, func() bool {
		return w.Snapshot().Count(upload.FileUploading) == 2
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, w.Clear(), upload.ErrBusy)
	require.NoError(t, w.Abort(w.Files()[0].ID))
	close(tr.block)
	w.Wait()

	assert.Equal(t, upload.FileAborted, w.Files()[0].Status)
	assert.Equal(t, upload.FileDone, w.Files()[1].Status)

	require.NoError(t, w.Clear())
	assert.Empty(t, w.Files())
}

func waitUploading(t *testing.T, w *Widget) {
	t.Helper()
	require.Eventually(t, func() bool {
		return w.Status() == upload.StatusUploading
	}, time.Second, 5*time.Millisecond)
}

func TestAccept_WhileBusyStagesUntilBatchFinishes(t *testing.T) {
	tr := &stubTransport{block: make(chan struct{})}
	w := newWidget(t, tr, true)

	w.Accept(pngs("a.png"))
	waitUploading(t, w)

	w.Accept(pngs("b.png"))
	pending := w.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "b.png", pending[0].Name)

	close(tr.block)
	require.Eventually(t, func() bool {
		files := w.Files()
		return len(files) == 1 && files[0].Name == "b.png" && files[0].Status == upload.FileDone
	}, time.Second, 5*time.Millisecond)
	w.Wait()

	assert.Empty(t, w.Pending())
	assert.NoError(t, w.Err())
}

func TestUploadPending_BusyKeepsStage(t *testing.T) {
	tr := &stubTransport{block: make(chan struct{})}
	w := newWidget(t, tr, false)

	w.Upload(pngs("a.png"))
	waitUploading(t, w)

	w.Accept(pngs("b.png"))
	require.ErrorIs(t, w.UploadPending(), upload.ErrBusy)
	assert.Len(t, w.Pending(), 1)

	close(tr.block)
	w.Wait()
	require.Len(t, w.Files(), 1)
	assert.Equal(t, "a.png", w.Files()[0].Name, "staged files wait for confirmation")

	require.NoError(t, w.UploadPending())
	w.Wait()
	files := w.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "b.png", files[0].Name)
	assert.Equal(t, upload.FileDone, files[0].Status)
}

func TestErr_KeptAfterLaterUpload(t *testing.T) {
	w := newWidget(t, &stubTransport{}, false)

	w.Upload(nil)
	w.Wait()
	w.Upload(pngs("a.png"))
	w.Wait()

	assert.Equal(t, upload.StatusDone, w.Status())
	require.ErrorIs(t, w.Err(), upload.ErrNoFiles)
}
