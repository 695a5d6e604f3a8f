package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ScanDirectory walks root and returns the image files under it, sorted by
// path. Files larger than maxBytes (when > 0) are reported as skipped with an
// error instead of being returned for upload.
func ScanDirectory(ctx context.Context, root string, skipHidden bool, maxBytes int64) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsImage(path) {
			return nil
		}
		stats.Matched++

		info, err := d.Info()
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		fr := FileResult{Path: path, Size: info.Size()}
		if maxBytes > 0 && info.Size() > maxBytes {
			fr.Err = fmt.Sprintf("file exceeds %d bytes", maxBytes)
			stats.Skipped++
		}
		results = append(results, fr)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, stats, nil
}

// Uploadable returns the paths of results that carry no error.
func Uploadable(results []FileResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err == "" {
			out = append(out, r.Path)
		}
	}
	return out
}

// Chunk splits paths into groups of at most n.
func Chunk(paths []string, n int) [][]string {
	if n <= 0 {
		n = len(paths)
	}
	var out [][]string
	for len(paths) > 0 {
		k := min(n, len(paths))
		out = append(out, paths[:k])
		paths = paths[k:]
	}
	return out
}
