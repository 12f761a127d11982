package upload

import (
	"errors"
	"fmt"

	"github.com/five82/slingshot/internal/slingshot"
)

// ErrInvalidTransition is returned by transition when an event does not apply
// to the record's current status.
var ErrInvalidTransition = errors.New("upload: invalid transition")

var errMissingURL = errors.New("malformed authorization: missing url")

type eventKind int

const (
	evAuthorized eventKind = iota
	evAuthFailed
	evUploadStarted
	evProgress
	evUploaded
	evUploadFailed
	evAborted
)

func (k eventKind) String() string {
	switch k {
	case evAuthorized:
		return "authorized"
	case evAuthFailed:
		return "auth_failed"
	case evUploadStarted:
		return "upload_started"
	case evProgress:
		return "progress"
	case evUploaded:
		return "uploaded"
	case evUploadFailed:
		return "upload_failed"
	case evAborted:
		return "aborted"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// fileEvent is one step reported by a file's worker.
type fileEvent struct {
	kind     eventKind
	batch    int
	id       string
	auth     slingshot.Authorization
	progress int
	err      error
}

// transition applies ev to r and returns the next record. It has no side
// effects; the caller decides what to do with an ErrInvalidTransition.
func transition(r Record, ev fileEvent) (Record, error) {
	if r.Status.Terminal() {
		return r, fmt.Errorf("%w: %s from terminal %s", ErrInvalidTransition, ev.kind, r.Status)
	}

	next := r.clone()
	switch ev.kind {
	case evAuthorized:
		if r.Status != FileAuthorizing {
			break
		}
		switch {
		case ev.auth.Key == "":
			// Declined without a reason.
			next.Status = FileRejected
		case ev.auth.URL == "":
			next.Status = FileRejected
			next.Error = errMissingURL.Error()
		default:
			next.Status = FileAccepted
			next.Key = ev.auth.Key
			next.URL = ev.auth.URL
		}
		return next, nil

	case evAuthFailed:
		if r.Status != FileAuthorizing {
			break
		}
		next.Status = FileRejected
		next.Error = errorText(ev.err)
		return next, nil

	case evUploadStarted:
		if r.Status != FileAccepted {
			break
		}
		zero := 0
		next.Status = FileUploading
		next.Progress = &zero
		return next, nil

	case evProgress:
		if r.Status != FileUploading {
			break
		}
		p := clampPercent(ev.progress)
		next.Progress = &p
		return next, nil

	case evUploaded:
		if r.Status != FileUploading {
			break
		}
		next.Status = FileDone
		next.Progress = nil
		return next, nil

	case evUploadFailed:
		if r.Status != FileUploading {
			break
		}
		next.Status = FileFailed
		next.Progress = nil
		next.Error = errorText(ev.err)
		return next, nil

	case evAborted:
		next.Status = FileAborted
		next.Progress = nil
		next.Error = "aborted"
		if ev.err != nil && !errors.Is(ev.err, errAbortRequested) {
			next.Error = errorText(ev.err)
		}
		return next, nil
	}

	return r, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev.kind, r.Status)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
