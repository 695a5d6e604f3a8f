package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/ocr-batch/internal/ocr"
)

// TextExtractor is the extraction capability: image file -> text or a no-text sentinel.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

// TextExtractionResult carries the rendered text. Status is authoritative:
// Text holds a constants.NoText* sentinel only when Status is not
// ocr.StatusText, and recognized text is never reinterpreted by its content.
type TextExtractionResult struct {
	Text       string
	Status     ocr.Status
	Method     string
	Confidence float32
	Duration   time.Duration
	Warnings   []string
}
