package table

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tarbouchdata/scoutscrape/models"
)

// Extract flattens a located table into ordered columns and rows.
//
// The last header row is authoritative: these tables carry a grouping row
// above the real column names, and the bottom row is the one that labels the
// cells. Presentation rows (section dividers, repeated headers) and rows
// whose cell count does not match the header are skipped and counted; they
// are a fact of this table family, not an error.
func Extract(loc *Located) *models.RawTable {
	t := loc.Selection

	headerRow, bodyRows := splitRows(t)

	columns := make([]string, 0, 8)
	headerRow.Find("th, td").Each(func(_ int, s *goquery.Selection) {
		columns = append(columns, cleanHeader(s.Text()))
	})

	raw := &models.RawTable{
		ID:      loc.ID,
		Columns: columns,
	}

	bodyRows.Each(func(_ int, row *goquery.Selection) {
		if isPresentationRow(row) {
			raw.SkippedRows++
			return
		}

		cells := make([]string, 0, len(columns))
		row.Find("th, td").Each(func(_ int, s *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(s.Text()))
		})

		if len(cells) != len(columns) {
			raw.SkippedRows++
			return
		}
		if isRepeatedHeader(cells, columns) {
			raw.SkippedRows++
			return
		}

		raw.Rows = append(raw.Rows, cells)
	})

	return raw
}

// splitRows finds the header row and the body rows, tolerating tables
// without an explicit thead/tbody.
func splitRows(t *goquery.Selection) (*goquery.Selection, *goquery.Selection) {
	theadRows := t.Find("thead tr")
	if theadRows.Length() > 0 {
		bodyRows := t.Find("tbody tr")
		if bodyRows.Length() == 0 {
			bodyRows = t.Find("tr").Not("thead tr")
		}
		return theadRows.Last(), bodyRows
	}

	all := t.Find("tr")
	return all.First(), all.Slice(1, all.Length())
}

// isPresentationRow recognises the site's divider rows: mid-table repeated
// headers carry class "thead", grouping rows carry "over_header", and
// spacers carry "spacer".
func isPresentationRow(row *goquery.Selection) bool {
	class := row.AttrOr("class", "")
	for _, marker := range []string{"thead", "over_header", "spacer"} {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

// isRepeatedHeader catches header rows repeated inside the body without a
// marker class.
func isRepeatedHeader(cells, columns []string) bool {
	for i := range cells {
		if cells[i] != columns[i] {
			return false
		}
	}
	return true
}

// cleanHeader normalises a column name: surrounding whitespace trimmed,
// internal runs collapsed, footnote markers dropped.
func cleanHeader(h string) string {
	h = strings.Join(strings.Fields(h), " ")
	h = strings.TrimRight(h, "*†‡§")
	return strings.TrimSpace(h)
}
