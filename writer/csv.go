// Package writer renders extraction results as file artifacts.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/tarbouchdata/scoutscrape/models"
)

// utf8BOM makes spreadsheet applications decode the file as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV renders one CSV row per normalized record. Column order is the
// run's canonical field order; Missing renders as an empty cell, never "0".
func WriteCSV(w io.Writer, res *models.Result, withBOM bool) error {
	if withBOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("writer: write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)

	if len(res.Records) > 0 {
		header := make([]string, 0, len(res.Records[0].Fields))
		for _, f := range res.Records[0].Fields {
			header = append(header, f.Name)
		}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("writer: write header: %w", err)
		}
	}

	for _, rec := range res.Records {
		row := make([]string, 0, len(rec.Fields))
		for _, f := range rec.Fields {
			row = append(row, f.Value.String())
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writer: write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the result to a file, creating parent directories as needed.
func SaveCSV(path string, res *models.Result, withBOM bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writer: create %s: %w", path, err)
	}
	defer f.Close()
	return WriteCSV(f, res, withBOM)
}
