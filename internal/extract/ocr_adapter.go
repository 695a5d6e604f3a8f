package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/ocr"
)

// OCRAdapter maps ocr.Extractor statuses onto the sentinel strings.
type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path)
	out := TextExtractionResult{
		Status:     r.Status,
		Method:     r.Method,
		Confidence: r.Confidence,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
	}
	if err != nil {
		return out, err
	}
	switch r.Status {
	case ocr.StatusLowConfidence:
		out.Text = constants.NoTextLowConfidence
	case ocr.StatusNoText:
		out.Text = constants.NoTextDetected
	default:
		out.Text = r.Text
	}
	if len(r.Warnings) > 0 {
		a.logger.Debug("extraction warnings", "path", path, "warnings", r.Warnings)
	}
	return out, nil
}

// Func adapts a plain function to TextExtractor. A returned string equal to
// one of the no-text sentinels maps to the matching status; anything else is
// recognized text.
type Func func(ctx context.Context, path string) (string, error)

func (f Func) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	txt, err := f(ctx, path)
	out := TextExtractionResult{Text: txt, Status: ocr.StatusText, Method: "func"}
	switch txt {
	case constants.NoTextDetected:
		out.Status = ocr.StatusNoText
	case constants.NoTextLowConfidence:
		out.Status = ocr.StatusLowConfidence
	}
	return out, err
}
