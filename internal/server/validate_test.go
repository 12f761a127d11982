package server

import (
	"testing"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/slingshot"
)

func TestCheckFileType(t *testing.T) {
	tests := []struct {
		mediaType string
		allowed   []string
		want      bool
	}{
		{"image/png", nil, true},
		{"image/png", []string{"image/png"}, true},
		{"IMAGE/PNG", []string{"image/png"}, true},
		{"image/png", []string{"image/*"}, true},
		{"image/svg+xml", []string{"image/*"}, true},
		{"application/x-msdownload", []string{"image/*"}, false},
		{"application/pdf", []string{"image/*", "application/pdf"}, true},
		{"video/mp4", []string{"*"}, true},
		{"", []string{"image/*"}, false},
		{"application/vnd.ms-excel", []string{"application/vnd.*excel"}, true},
		{"application/vnd.ms-word", []string{"application/vnd.*excel"}, false},
	}
	for _, tt := range tests {
		if got := CheckFileType(tt.mediaType, tt.allowed); got != tt.want {
			t.Errorf("CheckFileType(%q, %v) = %v, want %v", tt.mediaType, tt.allowed, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	tests := []struct {
		size, max int64
		want      bool
	}{
		{100, 0, true},
		{100, 100, true},
		{101, 100, false},
		{0, 1, true},
	}
	for _, tt := range tests {
		if got := CheckFileSize(tt.size, tt.max); got != tt.want {
			t.Errorf("CheckFileSize(%d, %d) = %v, want %v", tt.size, tt.max, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey(config.Profile{Name: "avatar"}, "me.png"); got != "avatar/me.png" {
		t.Fatalf("objectKey = %q, want avatar/me.png", got)
	}
	if got := objectKey(config.Profile{Name: "avatar"}, "a/b\\c.png"); got != "avatar/a_b_c.png" {
		t.Fatalf("objectKey = %q, want separators replaced", got)
	}
	if got := objectKey(config.Profile{Name: "avatar"}, " .. "); got != "avatar/file" {
		t.Fatalf("objectKey = %q, want avatar/file", got)
	}
}

func TestMissingMeta(t *testing.T) {
	meta := slingshot.Meta{"userId": 1}
	if got := missingMeta(meta, []string{"userId"}); got != "" {
		t.Fatalf("missingMeta = %q, want none", got)
	}
	if got := missingMeta(meta, []string{"userId", "orgId"}); got != "orgId" {
		t.Fatalf("missingMeta = %q, want orgId", got)
	}
	if got := missingMeta(nil, nil); got != "" {
		t.Fatalf("missingMeta = %q, want none", got)
	}
}
