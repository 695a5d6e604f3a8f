package entity

import (
	"path/filepath"
	"strings"
)

// ImageItem is one uploaded image as received. It is never mutated after the
// request handler builds it.
type ImageItem struct {
	Filename    string `json:"filename"`
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Ext returns the lowercased extension of the original filename including the
// leading dot, or "" when the name has none.
func (i ImageItem) Ext() string {
	ext := strings.ToLower(filepath.Ext(i.Filename))
	if ext == "." {
		return ""
	}
	return ext
}
