package normalize

import (
	"strconv"
	"strings"

	"github.com/tarbouchdata/scoutscrape/models"
)

// Records converts a raw table into normalized records under the given
// schema. Returns the records and the total count of malformed cells.
//
// The output field set is fixed for the whole run: every schema field, in
// schema order, followed by any raw columns the schema does not know about,
// in source order. Unknown columns are preserved under their raw name so
// schema gaps stay visible instead of silently dropping data. A schema field
// whose column is absent from the table yields Missing in every record.
//
// A malformed cell never aborts the run: it becomes Missing and is counted.
func Records(raw *models.RawTable, schema Schema) ([]models.Record, int) {
	type column struct {
		name  string
		typ   FieldType
		idx   int  // index into the raw row, -1 when absent
		known bool // typ came from the schema
	}

	// Build the fixed output layout once.
	layout := make([]column, 0, len(schema.Fields)+len(raw.Columns))
	claimed := make(map[int]bool, len(raw.Columns))

	for _, f := range schema.Fields {
		idx := -1
		for i, rawName := range raw.Columns {
			if spec, ok := schema.specFor(rawName); ok && spec.Name == f.Name && !claimed[i] {
				idx = i
				claimed[i] = true
				break
			}
		}
		layout = append(layout, column{name: f.Name, typ: f.Type, idx: idx, known: true})
	}
	for i, rawName := range raw.Columns {
		if !claimed[i] {
			layout = append(layout, column{name: rawName, idx: i})
		}
	}

	malformed := 0
	records := make([]models.Record, 0, len(raw.Rows))

	for _, row := range raw.Rows {
		fields := make([]models.Field, 0, len(layout))
		for _, col := range layout {
			if col.idx < 0 {
				fields = append(fields, models.Field{Name: col.name, Value: models.Missing})
				continue
			}
			var v models.Value
			var bad bool
			if col.known {
				v, bad = parseCell(row[col.idx], col.typ)
			} else {
				v = parseLoose(row[col.idx])
			}
			if bad {
				malformed++
			}
			fields = append(fields, models.Field{Name: col.name, Value: v})
		}
		records = append(records, models.Record{Fields: fields})
	}

	return records, malformed
}

// emptyMarkers are cell contents that mean "no value" on the source site.
var emptyMarkers = map[string]bool{
	"": true, "-": true, "—": true, "–": true,
	"na": true, "n/a": true,
}

// parseCell parses one cell under a declared type. The second return is true
// when the cell held something but it could not be parsed (malformed), as
// opposed to being legitimately empty.
func parseCell(text string, typ FieldType) (models.Value, bool) {
	text = strings.TrimSpace(text)
	if emptyMarkers[strings.ToLower(text)] {
		return models.Missing, false
	}

	switch typ {
	case TypeText:
		return models.TextValue(text), false

	case TypeInt:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return models.IntValue(n), false
		}
		return models.Missing, true

	case TypeFloat:
		if f, ok := parseFloat(text); ok {
			return models.FloatValue(f), false
		}
		return models.Missing, true

	case TypePercent:
		if f, ok := parsePercent(text); ok {
			return models.PercentValue(f), false
		}
		return models.Missing, true
	}

	return models.Missing, true
}

// parseLoose infers the type of a cell from an unknown column: int, then
// percentage, then float, then text. Unknown columns are never counted as
// malformed; there is no declared type to violate.
func parseLoose(text string) models.Value {
	text = strings.TrimSpace(text)
	if emptyMarkers[strings.ToLower(text)] {
		return models.Missing
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return models.IntValue(n)
	}
	if strings.HasSuffix(text, "%") {
		if f, ok := parsePercent(text); ok {
			return models.PercentValue(f)
		}
	}
	if f, ok := parseFloat(text); ok {
		return models.FloatValue(f)
	}
	return models.TextValue(text)
}

// parseFloat accepts a leading sign, thousands separators, and a comma
// decimal point (the site serves localized numerals on some mirrors).
func parseFloat(text string) (float64, bool) {
	t := strings.TrimPrefix(text, "+")

	// "1.234,5" and "1,5" use a comma decimal; "1,234.5" uses comma
	// thousands. Decide by which separator comes last.
	lastComma := strings.LastIndexByte(t, ',')
	lastDot := strings.LastIndexByte(t, '.')
	switch {
	case lastComma > lastDot:
		t = strings.ReplaceAll(t, ".", "")
		t = strings.Replace(t, ",", ".", 1)
	case lastComma >= 0:
		t = strings.ReplaceAll(t, ",", "")
	}

	f, err := strconv.ParseFloat(t, 64)
	return f, err == nil
}

// parsePercent converts "85.5%" (or "85.5") into the fraction 0.855.
func parsePercent(text string) (float64, bool) {
	t := strings.TrimSpace(strings.TrimSuffix(text, "%"))
	f, ok := parseFloat(t)
	if !ok {
		return 0, false
	}
	return f / 100, true
}
