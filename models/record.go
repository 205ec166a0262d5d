package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// ValueKind tags the typed variants a normalized cell can take.
// Downstream consumers switch on the kind instead of guessing at strings.
type ValueKind int

const (
	// KindMissing marks an empty or unparsable cell. It is deliberately
	// distinct from a zero so downstream statistics are not corrupted.
	KindMissing ValueKind = iota
	KindInt
	KindFloat
	KindPercent
	KindText
)

// Value is a single normalized cell. Exactly one payload field is meaningful,
// selected by Kind. Percentages are stored as 0–1 fractions in Float.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
}

// Missing is the explicit marker for absent or unparsable cells.
var Missing = Value{Kind: KindMissing}

func IntValue(v int64) Value       { return Value{Kind: KindInt, Int: v} }
func FloatValue(f float64) Value   { return Value{Kind: KindFloat, Float: f} }
func PercentValue(f float64) Value { return Value{Kind: KindPercent, Float: f} }
func TextValue(s string) Value     { return Value{Kind: KindText, Text: s} }

func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// String renders the value for CSV output. Missing renders as the empty
// string, never as "0".
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat, KindPercent:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// MarshalJSON renders ints and floats as JSON numbers, text as a string,
// and missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat, KindPercent:
		return json.Marshal(v.Float)
	case KindText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// RawTable is the output of the row/column extractor: the located table
// flattened into ordered columns and positionally zipped rows. Every row has
// exactly len(Columns) cells; rows that did not are counted in SkippedRows.
type RawTable struct {
	ID          string
	Columns     []string
	Rows        [][]string
	SkippedRows int
}

// Field is one named, typed cell of a normalized record.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Record is an ordered sequence of fields. All records produced in one run
// share the same field names in the same order.
type Record struct {
	Fields []Field `json:"fields"`
}

// Get returns the value for a field name, if present.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Missing, false
}

// Metadata is the provenance attached to an extraction result.
type Metadata struct {
	SourceURL      string    `json:"source_url"`
	TableID        string    `json:"table_id_matched"`
	Position       string    `json:"position"`
	ScrapedAt      time.Time `json:"scraped_at"`
	RowCount       int       `json:"row_count"`
	MalformedCells int       `json:"malformed_cell_count"`
	SkippedRows    int       `json:"skipped_row_count"`
	EngineUsed     string    `json:"engine_used,omitempty"`
	Attempts       int       `json:"attempts,omitempty"`
}

// Result is one completed extraction run: normalized records plus provenance.
// It is created once and never mutated afterwards. No partial Result is ever
// produced on a fatal failure.
type Result struct {
	Records []Record `json:"records"`
	Meta    Metadata `json:"metadata"`

	// TableHTML is the located table's source markup, kept for report
	// rendering. Not part of the wire format.
	TableHTML string `json:"-"`
}
