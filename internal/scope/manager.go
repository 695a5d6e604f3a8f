package scope

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// Manager materializes one image at a time into a uniquely named file under
// dir and removes it when the caller is done.
type Manager struct {
	dir    string
	logger *slog.Logger
}

func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("scope: work dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("scope: create work dir: %w", err)
	}
	return &Manager{dir: dir, logger: logger}, nil
}

func (m *Manager) Dir() string { return m.dir }

// Name returns the resource file name for id and the item's extension.
func Name(id ID, ext string) string {
	return "file" + id.String() + ext
}

// With writes item to dir/file{id}{ext}, calls fn with the path and removes
// the file on every return path, including a panic inside fn. The file is
// created exclusively, so a reused id fails instead of clobbering another
// unit's input.
func (m *Manager) With(ctx context.Context, id ID, item entity.ImageItem, fn func(ctx context.Context, path string) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(m.dir, Name(id, item.Ext()))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create scoped file: %w", err)
	}
	defer m.release(path)

	if _, err := f.Write(item.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write scoped file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close scoped file: %w", err)
	}

	m.logger.Debug("scoped file ready", "path", path, "bytes", len(item.Data), "file", item.Filename)
	return fn(ctx, path)
}

// release removes path; a file that is already gone is not an error.
func (m *Manager) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("failed to remove scoped file", "path", path, "error", err)
	}
}
