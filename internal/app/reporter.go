package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/five82/slingshot/internal/upload"
	"github.com/five82/slingshot/internal/widget"
)

// progressStep is the granularity of progress lines in plain mode.
const progressStep = 25

// runPlain starts the batch and prints one line per file status change until
// every upload returned. Cancelling ctx closes the widget, which aborts the
// files still in flight.
func runPlain(ctx context.Context, w *widget.Widget, files []upload.File, out io.Writer) error {
	changes, unsubscribe := w.Changes()
	defer unsubscribe()

	w.Accept(files)
	if !w.UploadOnAccept() {
		if err := w.UploadPending(); err != nil {
			return err
		}
	}

	settled := make(chan struct{})
	go func() {
		w.Wait()
		close(settled)
	}()

	r := newReporter(out)
	for {
		select {
		case snap := <-changes:
			r.Report(snap)
		case <-ctx.Done():
			_ = w.Close()
			<-settled
			r.Report(w.Snapshot())
			r.Summary(w.Snapshot())
			return nil
		case <-settled:
			r.Report(w.Snapshot())
			r.Summary(w.Snapshot())
			return nil
		}
	}
}

type seen struct {
	status upload.FileStatus
	bucket int
}

// reporter turns snapshots into change lines. It remembers what it printed
// per record so repeated snapshots stay quiet.
type reporter struct {
	out  io.Writer
	last map[string]seen
}

func newReporter(out io.Writer) *reporter {
	return &reporter{out: out, last: make(map[string]seen)}
}

// Report prints every record whose status changed, or whose progress crossed
// a progressStep boundary, since the previous call.
func (r *reporter) Report(snap upload.Snapshot) {
	for _, rec := range snap.Files {
		prev, known := r.last[rec.ID]
		cur := seen{status: rec.Status, bucket: -1}
		if rec.Progress != nil {
			cur.bucket = *rec.Progress / progressStep * progressStep
		}
		if known && prev == cur {
			continue
		}
		r.last[rec.ID] = cur

		if known && prev.status == cur.status {
			fmt.Fprintf(r.out, "%s: uploading %d%%\n", rec.Name, cur.bucket)
			continue
		}
		fmt.Fprintln(r.out, describe(rec))
	}
}

// Summary prints the batch outcome.
func (r *reporter) Summary(snap upload.Snapshot) {
	writeSummary(r.out, snap)
}

func describe(rec upload.Record) string {
	switch rec.Status {
	case upload.FileAccepted:
		return fmt.Sprintf("%s: accepted as %s", rec.Name, rec.Key)
	case upload.FileUploading:
		return fmt.Sprintf("%s: uploading %d%%", rec.Name, rec.Percent())
	case upload.FileRejected, upload.FileFailed, upload.FileAborted:
		return fmt.Sprintf("%s: %s: %s", rec.Name, rec.Status, rec.Error)
	}
	return fmt.Sprintf("%s: %s", rec.Name, rec.Status)
}

func writeSummary(out io.Writer, snap upload.Snapshot) {
	order := []upload.FileStatus{
		upload.FileDone,
		upload.FileRejected,
		upload.FileFailed,
		upload.FileAborted,
	}
	var parts []string
	for _, status := range order {
		if n := snap.Count(status); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing uploaded")
	}
	fmt.Fprintf(out, "%s: %s (%d files)\n", snap.Status, strings.Join(parts, ", "), len(snap.Files))
}
