//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract recognizes text in-process through libtesseract. It needs cgo
// and the tesseract development headers, so it is only built with the
// gosseract tag.
type Gosseract struct {
	cfg    Config
	logger *slog.Logger
}

// NewGosseract returns the in-process engine.
func NewGosseract(cfg Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gosseract{cfg: cfg.withDefaults(), logger: logger}, nil
}

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Recognize(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{Method: g.Name(), Language: g.cfg.TesseractLang}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	c := gosseract.NewClient()
	defer c.Close()
	if g.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return res, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(g.cfg.TesseractLang); err != nil {
		return res, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
		return res, fmt.Errorf("set psm: %w", err)
	}
	if err := c.SetImage(path); err != nil {
		return res, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return res, fmt.Errorf("recognize words: %w", err)
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	if len(boxes) == 0 || belowGate(sum/float64(len(boxes)), g.cfg.MinConfidence) {
		if len(boxes) > 0 {
			res.Confidence = float32(sum / float64(len(boxes)))
		}
		res.Status = StatusLowConfidence
		return res, nil
	}
	res.Confidence = float32(sum / float64(len(boxes)))

	text, err := c.Text()
	if err != nil {
		return res, fmt.Errorf("recognize text: %w", err)
	}
	res.Text = Normalize(text)
	if res.Text == "" {
		res.Status = StatusNoText
	} else {
		res.Status = StatusText
	}
	return res, nil
}
