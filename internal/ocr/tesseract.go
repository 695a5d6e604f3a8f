package ocr

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// Tesseract runs the tesseract CLI. Recognition is two passes: a TSV pass
// whose mean word confidence gates the image, then a plain text pass.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return "tesseract-cli" }

func (t *Tesseract) Recognize(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{Method: t.Name(), Language: t.cfg.TesseractLang}

	conf, words, err := t.meanConfidence(ctx, path)
	if err != nil {
		return res, err
	}
	res.Confidence = float32(conf)
	if words == 0 || belowGate(conf, t.cfg.MinConfidence) {
		t.logger.Debug("below confidence gate", "path", path, "words", words, "confidence", conf)
		res.Status = StatusLowConfidence
		return res, nil
	}

	txt, err := t.text(ctx, path)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)
	if res.Text == "" {
		res.Status = StatusNoText
		return res, nil
	}
	res.Status = StatusText
	return res, nil
}

func (t *Tesseract) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

// text runs: tesseract <file> stdout -l <lang> --psm <n>
func (t *Tesseract) text(ctx context.Context, path string) (string, error) {
	args := append(t.baseArgs(path), "--psm", strconv.Itoa(t.cfg.PSM))
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", commandError("tesseract", err, errb)
	}
	return string(out), nil
}

// meanConfidence runs tesseract in TSV mode and returns the mean confidence
// (0..100) over recognized words along with the word count.
func (t *Tesseract) meanConfidence(ctx context.Context, path string) (float64, int, error) {
	args := append(t.baseArgs(path), "tsv")
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return 0, 0, commandError("tesseract tsv", err, errb)
	}
	mean, n := parseTSVConfidence(string(out))
	return mean, n, nil
}

// parseTSVConfidence averages the conf column, skipping the header and the
// -1 rows tesseract emits for non-word levels.
func parseTSVConfidence(tsv string) (float64, int) {
	var sum float64
	var n int
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// belowGate reports whether a mean confidence fails the min gate. A gate of
// zero or less lets every image with words through.
func belowGate(conf, gate float64) bool {
	return gate > 0 && conf <= gate
}
