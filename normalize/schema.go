// Package normalize converts raw scraped cells into typed records with a
// consistent schema across player positions.
package normalize

import "strings"

// FieldType declares how a column's cells are parsed.
type FieldType int

const (
	TypeText FieldType = iota
	TypeInt
	TypeFloat
	TypePercent
)

// FieldSpec maps one raw column header to a canonical field.
type FieldSpec struct {
	// Raw headers that identify this column (first match wins).
	Raw []string

	// Name is the canonical field name.
	Name string

	Type FieldType
}

// Schema is the fixed canonical field set for one position group. Field
// order is the canonical column order of the position's output.
type Schema struct {
	Position string
	Fields   []FieldSpec
}

// scoutFields are the columns of the full scouting-report table. The layout
// is identical across positions; raw header aliases absorb the site's
// occasional label drift.
var scoutFields = []FieldSpec{
	{Raw: []string{"Statistic"}, Name: "statistic", Type: TypeText},
	{Raw: []string{"Per 90", "Per90"}, Name: "per_90", Type: TypeFloat},
	{Raw: []string{"Percentile"}, Name: "percentile", Type: TypeInt},
}

var schemas = map[string]Schema{
	"GK": {Position: "GK", Fields: scoutFields},
	"DF": {Position: "DF", Fields: scoutFields},
	"MF": {Position: "MF", Fields: scoutFields},
	"FW": {Position: "FW", Fields: scoutFields},
}

// ForPosition returns the schema for a position group, falling back to the
// midfielder schema for unknown positions.
func ForPosition(position string) Schema {
	if s, ok := schemas[strings.ToUpper(position)]; ok {
		return s
	}
	return schemas["MF"]
}

// PositionFromTableID derives the position group from a matched table
// identifier ("scout_full_MF" → "MF").
func PositionFromTableID(id string) string {
	idx := strings.LastIndexByte(id, '_')
	if idx < 0 || idx == len(id)-1 {
		return ""
	}
	pos := strings.ToUpper(id[idx+1:])
	if _, ok := schemas[pos]; ok {
		return pos
	}
	return ""
}

// specFor finds the schema field matching a raw column header.
func (s Schema) specFor(raw string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		for _, alias := range f.Raw {
			if strings.EqualFold(alias, raw) {
				return f, true
			}
		}
	}
	return FieldSpec{}, false
}
