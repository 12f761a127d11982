// Package widget adapts an upload.Orchestrator to the surface a UI binds to:
// fire-and-forget uploads, an accept hook that can stage files until the user
// confirms, and read-only views of the current batch.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/five82/slingshot/internal/upload"
)

// ErrNothingPending is returned by UploadPending when no files are staged.
var ErrNothingPending = errors.New("widget: no pending files")

// Options configure a Widget.
type Options struct {
	// UploadOnAccept starts an upload as soon as files are accepted.
	UploadOnAccept bool
	Logger         *slog.Logger
}

// Widget is safe for concurrent use.
type Widget struct {
	orch           *upload.Orchestrator
	uploadOnAccept bool
	log            *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending []upload.File
	err     error
}

// Connect binds a Widget to orch. Closing the Widget closes orch.
func Connect(orch *upload.Orchestrator, opts Options) *Widget {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Widget{
		orch:           orch,
		uploadOnAccept: opts.UploadOnAccept,
		log:            logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// UploadOnAccept reports whether Accept starts uploads immediately.
func (w *Widget) UploadOnAccept() bool { return w.uploadOnAccept }

// Accept is the hook for newly chosen files. Files are staged; with
// UploadOnAccept everything staged is uploaded right away, or as soon as the
// running batch finishes.
func (w *Widget) Accept(files []upload.File) {
	if len(files) == 0 {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, files...)
	w.mu.Unlock()

	w.log.Debug("files accepted", "count", len(files), "upload_on_accept", w.uploadOnAccept)
	if !w.uploadOnAccept {
		return
	}
	if err := w.UploadPending(); errors.Is(err, upload.ErrBusy) {
		w.log.Info("files staged until the running batch finishes", "count", len(files))
	}
}

// Pending returns the staged files not yet handed to an upload.
func (w *Widget) Pending() []upload.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]upload.File(nil), w.pending...)
}

// UploadPending starts an upload of every staged file and empties the stage.
// While a batch is uploading the files stay staged and upload.ErrBusy is
// returned.
func (w *Widget) UploadPending() error {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return ErrNothingPending
	}
	if w.orch.Status() == upload.StatusUploading {
		w.mu.Unlock()
		return upload.ErrBusy
	}
	files := w.pending
	w.pending = nil
	w.mu.Unlock()

	w.start(files, true)
	return nil
}

// Upload starts a batch in the background. Failures to start are logged and
// reported by Err; per-file outcomes are in Files.
func (w *Widget) Upload(files []upload.File) {
	w.start(files, false)
}

// start runs one batch. Staged files that could not start because the
// orchestrator was busy or closed go back to the stage.
func (w *Widget) start(files []upload.File, staged bool) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := w.orch.Upload(w.ctx, files)

		restage := staged && (errors.Is(err, upload.ErrBusy) || errors.Is(err, upload.ErrClosed))
		if restage {
			w.mu.Lock()
			w.pending = append(append([]upload.File(nil), files...), w.pending...)
			w.mu.Unlock()
			w.log.Info("files restaged", "files", len(files), "reason", err)
		}
		if err != nil && !restage {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			w.log.Error("upload not started", "files", len(files), "error", err)
		}

		if err == nil && w.uploadOnAccept && w.ctx.Err() == nil {
			_ = w.UploadPending()
		}
	}()
}

// Wait blocks until every upload started by this Widget returned, including
// batches started for files staged while another batch was running.
func (w *Widget) Wait() { w.wg.Wait() }

// Err returns the most recent error that kept an upload from starting. A
// later successful upload does not clear it.
func (w *Widget) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Files returns the records of the current batch.
func (w *Widget) Files() []upload.Record { return w.orch.Files() }

// Status returns the overall status.
func (w *Widget) Status() upload.Status { return w.orch.Status() }

// Progress returns the batch completion in percent.
func (w *Widget) Progress() int { return w.orch.Snapshot().Progress() }

// Snapshot returns the full current state.
func (w *Widget) Snapshot() upload.Snapshot { return w.orch.Snapshot() }

// Changes streams snapshots; see upload.Store.Subscribe.
func (w *Widget) Changes() (<-chan upload.Snapshot, func()) { return w.orch.Subscribe() }

// Abort cancels one file of the current batch.
func (w *Widget) Abort(id string) error { return w.orch.Abort(id) }

// Clear empties the current batch.
func (w *Widget) Clear() error { return w.orch.Clear() }

// Close closes the orchestrator, failing a running batch, and waits for
// background uploads to return.
func (w *Widget) Close() error {
	err := w.orch.Close()
	w.cancel()
	w.wg.Wait()
	return err
}
