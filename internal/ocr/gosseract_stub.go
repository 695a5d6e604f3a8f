//go:build !gosseract

package ocr

import (
	"errors"
	"log/slog"
)

// ErrGosseractUnavailable is returned when the binary was built without the gosseract tag.
var ErrGosseractUnavailable = errors.New("gosseract engine not compiled in: rebuild with -tags gosseract")

// NewGosseract returns the in-process engine.
func NewGosseract(Config, *slog.Logger) (Engine, error) {
	return nil, ErrGosseractUnavailable
}
