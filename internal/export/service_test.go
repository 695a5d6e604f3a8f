package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/ocr-batch/internal/entity"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
)

func TestBatchesXLSX(t *testing.T) {
	now := time.Now()
	b1 := report.Build([]report.Item{
		{Filename: "a.png", Outcome: entity.Success("hello")},
		{Filename: "b.png", Outcome: entity.NoText(false), CacheHit: true},
	}, now, now)
	b2 := report.Build([]report.Item{
		{Filename: "c.png", Outcome: entity.Failure("decode failed")},
	}, now, now)

	data, err := NewService(nil).BatchesXLSX([]*report.BatchResult{b1, b2})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ResultsSheet)
	if err != nil {
		t.Fatalf("results rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("results rows = %d, want 4", len(rows))
	}
	if got := strings.Join(rows[1], "|"); got != "1|a.png|success|hello" {
		t.Fatalf("row 2 = %q", got)
	}
	if rows[3][2] != string(entity.OutcomeError) {
		t.Fatalf("row 4 status = %q", rows[3][2])
	}

	summary, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("summary rows: %v", err)
	}
	total := summary[len(summary)-1]
	if total[0] != "Total" || total[1] != "3" || total[2] != "1" || total[3] != "2" {
		t.Fatalf("total row = %v", total)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hé…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
