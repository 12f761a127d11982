// Package localfile turns paths on disk into upload.File values.
package localfile

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/five82/slingshot/internal/upload"
)

const fallbackType = "application/octet-stream"

// Open stats path and returns a File whose content type is sniffed from the
// file's leading bytes. The file itself is opened only when its transfer
// starts.
func Open(path string) (upload.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return upload.File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return upload.File{}, fmt.Errorf("%s: is a directory", path)
	}

	return upload.File{
		Name: filepath.Base(path),
		Type: DetectType(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// OpenAll opens every path and reports all failures together.
func OpenAll(paths []string) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	var errs []error
	for _, p := range paths {
		f, err := Open(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, f)
	}
	return files, errors.Join(errs...)
}

// DetectType returns the media type of the file at path without parameters.
// Content sniffing wins; the extension is consulted when the content is not
// recognised.
func DetectType(path string) string {
	if mt, err := mimetype.DetectFile(path); err == nil && mt.String() != fallbackType {
		return bare(mt.String())
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return bare(byExt)
	}
	return fallbackType
}

func bare(mediaType string) string {
	base, _, _ := strings.Cut(mediaType, ";")
	return strings.TrimSpace(base)
}
