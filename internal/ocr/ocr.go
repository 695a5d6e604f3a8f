package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
)

// Status classifies what an engine found in an image.
type Status string

const (
	StatusText          Status = "text"
	StatusNoText        Status = "no_text"
	StatusLowConfidence Status = "low_confidence"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	PSM           int     // page segmentation mode for the text pass, default 3
	OEM           int     // 1 = LSTM; leave 0 to use default
	MinConfidence float64 // mean word confidence (0..100) an image must exceed; 0 disables the gate

	HeicConverter string // heif-convert | magick | sips
	Preprocess    bool   // grayscale and upscale small images before recognition

	ScratchDir string // parent for conversion temp dirs; default os.TempDir()
}

type ExtractionResult struct {
	Text       string
	Status     Status
	Method     string // "tesseract-cli" | "gosseract" | "vertex"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32 // mean word confidence 0..100 when the engine reports one
}

// Engine recognizes text in an image file that the engine can read directly.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, path string) (ExtractionResult, error)
}

// Extractor prepares an image for an Engine (HEIC conversion, decoding of
// formats engines cannot read, optional preprocessing) and runs it.
type Extractor struct {
	cfg    Config
	engine Engine
	runner Runner
	logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = constants.DefaultTesseractLang
	}
	if c.PSM <= 0 {
		c.PSM = constants.DefaultTesseractPSM
	}
	if c.HeicConverter == "" {
		c.HeicConverter = constants.DefaultHeicConverter
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	return c
}

// NewExtractor builds an Extractor around the tesseract CLI.
func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	r := execRunner{logger: logger}
	return &Extractor{cfg: cfg, engine: NewTesseract(cfg, r, logger), runner: r, logger: logger}
}

// NewExtractorWithEngine builds an Extractor around any Engine. runner is used
// for HEIC conversion; nil means the real exec runner.
func NewExtractorWithEngine(cfg Config, engine Engine, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	return &Extractor{cfg: cfg.withDefaults(), engine: engine, runner: runner, logger: logger}
}

func (e *Extractor) Engine() string { return e.engine.Name() }

// Extract recognizes text in the image at path. Intermediate files are removed
// before it returns.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "engine", e.engine.Name(), "ext", ext)

	var warns []string
	switch {
	case constants.IsHEICExt(ext):
		out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path, e.cfg.ScratchDir)
		if cleanup != nil {
			defer cleanup()
		}
		warns = append(warns, w...)
		if err != nil {
			e.logger.Error("heic conversion failed", "path", path, "error", err)
			return ExtractionResult{Warnings: warns}, err
		}
		path = out
		if e.cfg.Preprocess {
			out, cleanup2, err := normalizeToPNG(path, e.cfg.ScratchDir, true)
			if err != nil {
				return ExtractionResult{Warnings: warns}, err
			}
			defer cleanup2()
			path = out
		}
	case constants.NeedsDecode(ext) || e.cfg.Preprocess:
		out, cleanup, err := normalizeToPNG(path, e.cfg.ScratchDir, e.cfg.Preprocess)
		if err != nil {
			e.logger.Error("image decode failed", "path", path, "error", err)
			return ExtractionResult{}, err
		}
		defer cleanup()
		path = out
	case ext != "" && !constants.IsImageExt(ext):
		warns = append(warns, fmt.Sprintf("unrecognized extension %q, passing through", ext))
	}

	res, err := e.engine.Recognize(ctx, path)
	res.Duration = time.Since(start)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	e.logger.Debug("ocr extraction done",
		"status", res.Status,
		"confidence", res.Confidence,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
