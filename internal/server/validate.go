package server

import (
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/slingshot"
)

// CheckFileType reports whether mediaType is allowed. An empty list allows
// everything. Entries match exactly, ignoring case, or as patterns where *
// matches any run of characters ("image/*", "*").
func CheckFileType(mediaType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	t := strings.ToLower(strings.TrimSpace(mediaType))
	for _, pattern := range allowed {
		p := strings.ToLower(strings.TrimSpace(pattern))
		if p == t || matchWildcard(p, t) {
			return true
		}
	}
	return false
}

// CheckFileSize reports whether size fits maxSize. Zero means no limit.
func CheckFileSize(size, maxSize int64) bool {
	return maxSize <= 0 || size <= maxSize
}

// missingMeta returns the first required key absent from meta.
func missingMeta(meta slingshot.Meta, required []string) string {
	for _, k := range required {
		if _, ok := meta[k]; !ok {
			return k
		}
	}
	return ""
}

// objectKey builds the storage key for a file in profile.
func objectKey(profile config.Profile, name string) string {
	base := sanitizeName(name)
	if profile.UniqueKeys {
		return path.Join(profile.Name, uuid.NewString(), base)
	}
	return path.Join(profile.Name, base)
}

func sanitizeName(name string) string {
	n := strings.TrimSpace(name)
	n = strings.NewReplacer("/", "_", "\\", "_").Replace(n)
	if n == "" || n == "." || n == ".." {
		return "file"
	}
	return n
}

func matchWildcard(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return false
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	rest := value[len(parts[0]):]
	last := len(parts) - 1
	for _, mid := range parts[1:last] {
		i := strings.Index(rest, mid)
		if i < 0 {
			return false
		}
		rest = rest[i+len(mid):]
	}
	return strings.HasSuffix(rest, parts[last])
}
