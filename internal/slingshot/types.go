package slingshot

import (
	"fmt"
	"strconv"
	"strings"
)

// FileDescriptor is the file metadata sent with an authorization request.
type FileDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Meta carries caller-defined values attached to every authorization request.
// Values must be strings or numbers.
type Meta map[string]any

// Validate reports the first key whose value is neither a string nor a number.
func (m Meta) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case string, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			return fmt.Errorf("meta %q: value of type %T is not a string or number", k, v)
		}
	}
	return nil
}

// Clone returns a shallow copy of m.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	dup := make(Meta, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}

// String returns the value for key formatted as text. Missing keys yield "".
func (m Meta) String(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// AuthorizationRequest mirrors the POST /request body.
type AuthorizationRequest struct {
	File FileDescriptor `json:"file"`
	Meta Meta           `json:"meta,omitempty"`
}

// Authorization mirrors the POST /request response. An empty Key means the
// server declined the file without giving a reason.
type Authorization struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ErrorResponse is the JSON body returned by the server on 4xx/5xx.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is returned when the signing server answers with a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("authorization request returned status %d", e.Status)
}

// UploadError is returned when the storage endpoint rejects a PUT.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("upload returned status %d", e.Status)
}
