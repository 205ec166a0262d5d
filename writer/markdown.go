package writer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/tarbouchdata/scoutscrape/models"
)

var (
	convOnce sync.Once
	conv     *converter.Converter
)

// markdownConverter returns the shared, goroutine-safe converter:
//
//   - base plugin: strips script, style, noscript, comments; the source
//     tables carry plenty of inline tooltips and sort-widget markup.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin with minimal cell padding: the scouting tables are wide,
//     full column alignment would triple the output size.
func markdownConverter() *converter.Converter {
	convOnce.Do(func() {
		conv = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		)
	})
	return conv
}

// Report renders an extraction as a self-contained Markdown document: a
// header describing where and how the table was found, then the table
// itself converted from its source markup.
func Report(res *models.Result) (string, error) {
	md, err := markdownConverter().ConvertString(res.TableHTML)
	if err != nil {
		return "", fmt.Errorf("writer: convert table: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Scouting Report\n\n")
	fmt.Fprintf(&b, "- Source: %s\n", res.Meta.SourceURL)
	fmt.Fprintf(&b, "- Table: `%s` (position %s)\n", res.Meta.TableID, res.Meta.Position)
	fmt.Fprintf(&b, "- Scraped: %s\n", res.Meta.ScrapedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Rows: %d", res.Meta.RowCount)
	if res.Meta.SkippedRows > 0 {
		fmt.Fprintf(&b, " (%d skipped)", res.Meta.SkippedRows)
	}
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(md))
	b.WriteString("\n")

	return b.String(), nil
}
