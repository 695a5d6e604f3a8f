package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/ocr"
	"github.com/joseph-ayodele/ocr-batch/internal/vertex"
)

// OCRConfig translates the environment settings into an ocr.Config.
func OCRConfig(cfg common.OCRConfig) ocr.Config {
	return ocr.Config{
		Tesseract:     cfg.Tesseract,
		TesseractLang: cfg.Lang,
		TessdataDir:   cfg.TessdataDir,
		PSM:           cfg.PSM,
		MinConfidence: cfg.MinConfidence,
		HeicConverter: cfg.HeicConverter,
		Preprocess:    cfg.Preprocess,
		ScratchDir:    cfg.WorkDir,
	}
}

// FromConfig builds the extractor for cfg.Engine. The returned close func is
// never nil.
func FromConfig(ctx context.Context, cfg common.OCRConfig, vcfg common.VertexConfig, logger *slog.Logger) (*OCRAdapter, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() {}
	ocfg := OCRConfig(cfg)

	var x *ocr.Extractor
	closeFn := noop
	switch cfg.Engine {
	case "", common.EngineTesseract:
		x = ocr.NewExtractor(ocfg, logger)
	case common.EngineGosseract:
		eng, err := ocr.NewGosseract(ocfg, logger)
		if err != nil {
			return nil, noop, err
		}
		x = ocr.NewExtractorWithEngine(ocfg, eng, nil, logger)
	case common.EngineVertex:
		eng, err := vertex.NewEngine(ctx, vcfg.Project, vcfg.Region, vcfg.Model, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("vertex engine: %w", err)
		}
		x = ocr.NewExtractorWithEngine(ocfg, eng, nil, logger)
		closeFn = func() {
			if err := eng.Close(); err != nil {
				logger.Error("failed to close vertex client", "error", err)
			}
		}
	default:
		return nil, noop, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
	logger.Info("ocr engine ready", "engine", x.Engine())
	return NewOCRAdapter(x, logger), closeFn, nil
}

func (a *OCRAdapter) Engine() string { return a.e.Engine() }
