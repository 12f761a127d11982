package upload

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/five82/slingshot/internal/slingshot"
)

// File is a file handed to Upload. Open is called once, when the file's
// transfer starts; the returned reader is closed by the orchestrator.
type File struct {
	Name string
	Type string
	Size int64
	Open func() (io.ReadCloser, error)
}

// BytesFile wraps an in-memory payload as a File.
func BytesFile(name, contentType string, data []byte) File {
	return File{
		Name: name,
		Type: contentType,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (f File) descriptor() slingshot.FileDescriptor {
	return slingshot.FileDescriptor{Name: f.Name, Type: f.Type, Size: f.Size}
}

func (f File) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is empty")
	}
	if f.Size < 0 {
		return errors.New("size is negative")
	}
	if f.Open == nil {
		return errors.New("no data source")
	}
	return nil
}

// Record is the per-file upload state published in snapshots.
//
// Key and URL are empty until the file is accepted and are then set together.
// Progress is non-nil only while Status is FileUploading. Error is set only
// for FileRejected, FileFailed and FileAborted.
type Record struct {
	ID       string
	Key      string
	URL      string
	Name     string
	Type     string
	Size     int64
	Progress *int
	Error    string
	Status   FileStatus
}

// Terminal reports whether the record reached its final state.
func (r Record) Terminal() bool { return r.Status.Terminal() }

// Percent returns the progress value, or 0 when no progress is known.
func (r Record) Percent() int {
	if r.Progress == nil {
		return 0
	}
	return *r.Progress
}

func (r Record) clone() Record {
	if r.Progress != nil {
		p := *r.Progress
		r.Progress = &p
	}
	return r
}

func newRecord(id string, f File) Record {
	return Record{
		ID:     id,
		Name:   f.Name,
		Type:   f.Type,
		Size:   f.Size,
		Status: FileAuthorizing,
	}
}
