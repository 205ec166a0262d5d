package normalize

import (
	"testing"

	"github.com/tarbouchdata/scoutscrape/models"
)

func scoutRaw(rows [][]string) *models.RawTable {
	return &models.RawTable{
		ID:      "scout_full_MF",
		Columns: []string{"Statistic", "Per 90", "Percentile"},
		Rows:    rows,
	}
}

func TestRecordsTypedParsing(t *testing.T) {
	raw := scoutRaw([][]string{
		{"Goals", "0.49", "92"},
		{"Pass Completion %", "84.9", "71"},
	})

	records, malformed := Records(raw, ForPosition("MF"))
	if malformed != 0 {
		t.Fatalf("malformed = %d, want 0", malformed)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	stat, _ := records[0].Get("statistic")
	if stat.Kind != models.KindText || stat.Text != "Goals" {
		t.Errorf("statistic = %+v", stat)
	}
	per90, _ := records[0].Get("per_90")
	if per90.Kind != models.KindFloat || per90.Float != 0.49 {
		t.Errorf("per_90 = %+v", per90)
	}
	pct, _ := records[0].Get("percentile")
	if pct.Kind != models.KindInt || pct.Int != 92 {
		t.Errorf("percentile = %+v", pct)
	}
}

func TestRecordsMissingIsNotZero(t *testing.T) {
	raw := scoutRaw([][]string{
		{"Goals", "", "92"},
		{"Assists", "-", "—"},
	})

	records, malformed := Records(raw, ForPosition("MF"))
	if malformed != 0 {
		t.Fatalf("empty cells counted as malformed: %d", malformed)
	}

	for i, rec := range records {
		per90, _ := rec.Get("per_90")
		if !per90.IsMissing() {
			t.Errorf("record %d per_90 = %+v, want Missing", i, per90)
		}
		if per90.String() != "" {
			t.Errorf("Missing renders as %q, want empty", per90.String())
		}
	}

	pct, _ := records[1].Get("percentile")
	if !pct.IsMissing() {
		t.Errorf("em-dash percentile = %+v, want Missing", pct)
	}
}

func TestRecordsMalformedCellsCounted(t *testing.T) {
	raw := scoutRaw([][]string{
		{"Goals", "abc", "92"},
		{"Assists", "0.2", "not-a-number"},
		{"Shots", "3.1", "85"},
	})

	records, malformed := Records(raw, ForPosition("MF"))
	if malformed != 2 {
		t.Fatalf("malformed = %d, want 2", malformed)
	}
	if len(records) != 3 {
		t.Fatalf("malformed cells must not drop rows: records = %d", len(records))
	}

	per90, _ := records[0].Get("per_90")
	if !per90.IsMissing() {
		t.Errorf("unparsable cell = %+v, want Missing", per90)
	}
}

func TestRecordsCommaDecimal(t *testing.T) {
	tests := []struct {
		cell string
		want float64
	}{
		{"0,49", 0.49},
		{"1.234,5", 1234.5},
		{"1,234.5", 1234.5},
		{"+0.21", 0.21},
	}

	for _, tt := range tests {
		raw := scoutRaw([][]string{{"Goals", tt.cell, "50"}})
		records, malformed := Records(raw, ForPosition("MF"))
		if malformed != 0 {
			t.Errorf("%q counted as malformed", tt.cell)
			continue
		}
		per90, _ := records[0].Get("per_90")
		if per90.Float != tt.want {
			t.Errorf("%q parsed to %v, want %v", tt.cell, per90.Float, tt.want)
		}
	}
}

func TestRecordsFixedFieldOrder(t *testing.T) {
	// An extra column the schema does not know about must be preserved at
	// the end, and every record must carry the same fields in the same order.
	raw := &models.RawTable{
		ID:      "scout_full_MF",
		Columns: []string{"Statistic", "Per 90", "Percentile", "Matches"},
		Rows: [][]string{
			{"Goals", "0.49", "92", "12"},
			{"Assists", "0.21", "77", "comp"},
		},
	}

	records, malformed := Records(raw, ForPosition("MF"))
	if malformed != 0 {
		t.Fatalf("loose columns must never count as malformed: %d", malformed)
	}

	wantOrder := []string{"statistic", "per_90", "percentile", "Matches"}
	for ri, rec := range records {
		if len(rec.Fields) != len(wantOrder) {
			t.Fatalf("record %d has %d fields, want %d", ri, len(rec.Fields), len(wantOrder))
		}
		for i, f := range rec.Fields {
			if f.Name != wantOrder[i] {
				t.Errorf("record %d field %d = %q, want %q", ri, i, f.Name, wantOrder[i])
			}
		}
	}

	// Loose parsing: int where it looks like one, text otherwise.
	m0, _ := records[0].Get("Matches")
	if m0.Kind != models.KindInt || m0.Int != 12 {
		t.Errorf("Matches[0] = %+v, want int 12", m0)
	}
	m1, _ := records[1].Get("Matches")
	if m1.Kind != models.KindText || m1.Text != "comp" {
		t.Errorf("Matches[1] = %+v, want text", m1)
	}
}

func TestRecordsAbsentSchemaColumn(t *testing.T) {
	raw := &models.RawTable{
		ID:      "scout_full_MF",
		Columns: []string{"Statistic", "Per 90"},
		Rows:    [][]string{{"Goals", "0.49"}},
	}

	records, _ := Records(raw, ForPosition("MF"))
	pct, ok := records[0].Get("percentile")
	if !ok {
		t.Fatal("schema field dropped when its column is absent")
	}
	if !pct.IsMissing() {
		t.Errorf("absent column = %+v, want Missing", pct)
	}
}

func TestParseLoosePercent(t *testing.T) {
	v := parseLoose("84.9%")
	if v.Kind != models.KindPercent {
		t.Fatalf("kind = %v, want KindPercent", v.Kind)
	}
	if v.Float != 0.849 {
		t.Errorf("fraction = %v, want 0.849", v.Float)
	}
}

func TestForPositionFallback(t *testing.T) {
	if s := ForPosition("MF"); s.Position != "MF" {
		t.Errorf("ForPosition(MF) = %q", s.Position)
	}
	if s := ForPosition("gk"); s.Position != "GK" {
		t.Errorf("ForPosition is not case-insensitive: %q", s.Position)
	}
	if s := ForPosition("striker"); s.Position != "MF" {
		t.Errorf("unknown position fell back to %q, want MF", s.Position)
	}
}

func TestPositionFromTableID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"scout_full_MF", "MF"},
		{"scout_full_GK", "GK"},
		{"scout_full_", ""},
		{"scout_summary", ""},
		{"unrelated", ""},
	}
	for _, tt := range tests {
		if got := PositionFromTableID(tt.id); got != tt.want {
			t.Errorf("PositionFromTableID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
