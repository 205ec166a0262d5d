package writer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tarbouchdata/scoutscrape/models"
)

func sampleResult() *models.Result {
	return &models.Result{
		Records: []models.Record{
			{Fields: []models.Field{
				{Name: "statistic", Value: models.TextValue("Goals")},
				{Name: "per_90", Value: models.FloatValue(0.49)},
				{Name: "percentile", Value: models.IntValue(92)},
			}},
			{Fields: []models.Field{
				{Name: "statistic", Value: models.TextValue("Assists")},
				{Name: "per_90", Value: models.Missing},
				{Name: "percentile", Value: models.IntValue(77)},
			}},
		},
		Meta: models.Metadata{TableID: "scout_full_MF", RowCount: 2},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult(), false); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if lines[0] != "statistic,per_90,percentile" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "Goals,0.49,92" {
		t.Errorf("row 1 = %q", lines[1])
	}
	// Missing renders as an empty cell, never "0".
	if lines[2] != "Assists,,77" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestWriteCSVWithBOM(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult(), true); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), utf8BOM) {
		t.Error("output does not start with a UTF-8 BOM")
	}
}

func TestWriteCSVEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	res := &models.Result{}
	if err := WriteCSV(&buf, res, false); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty result produced output: %q", buf.String())
	}
}
