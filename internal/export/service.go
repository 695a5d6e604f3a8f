package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
)

const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"

	// excel refuses longer cell values
	maxCellChars = 32767
)

// Service renders batch responses into XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchesXLSX returns a workbook with one Results row per image and one
// Summary row per batch plus a totals row.
func (s *Service) BatchesXLSX(batches []*report.BatchResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(ResultsSheet)
	f.SetActiveSheet(activeIndex)

	if err := writeRow(f, ResultsSheet, 1, "Batch", "Filename", "Status", "Text"); err != nil {
		return nil, err
	}
	row := 2
	for bi, b := range batches {
		for _, e := range b.Results {
			status := entity.ParseRendered(e.Value).Kind
			if err := writeRow(f, ResultsSheet, row, bi+1, e.Key, string(status), truncate(e.Value, maxCellChars)); err != nil {
				return nil, err
			}
			row++
		}
	}

	if err := writeRow(f, SummarySheet, 1, "Batch", "Images", "Cache Hits", "Cache Misses", "Time Taken (s)"); err != nil {
		return nil, err
	}
	var images, hits, misses int
	var took float64
	for bi, b := range batches {
		if err := writeRow(f, SummarySheet, bi+2, bi+1, b.ImageCount, b.CacheHits, b.CacheMisses, b.TimeTaken); err != nil {
			return nil, err
		}
		images += b.ImageCount
		hits += b.CacheHits
		misses += b.CacheMisses
		took += b.TimeTaken
	}
	if err := writeRow(f, SummarySheet, len(batches)+2, "Total", images, hits, misses, took); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(ResultsSheet, "A", "A", 8)
	_ = f.SetColWidth(ResultsSheet, "B", "B", 36)
	_ = f.SetColWidth(ResultsSheet, "C", "C", 12)
	_ = f.SetColWidth(ResultsSheet, "D", "D", 80)
	_ = f.SetColWidth(SummarySheet, "A", "E", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("xlsx export done",
		"batches", len(batches),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
