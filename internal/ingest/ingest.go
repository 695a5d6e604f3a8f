package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/ocr-batch/constants"
)

// FileResult is one file found while scanning.
type FileResult struct {
	Path string
	Size int64
	Err  string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// IsImage reports whether path has an extension the service accepts.
func IsImage(path string) bool {
	return constants.IsImageExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
