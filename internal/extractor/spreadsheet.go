package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/harvali/docchat/internal/domain"
)

// maxSheetRows caps the number of data rows emitted per sheet.
const maxSheetRows = 1000

// sheetMarker prefixes each sheet's section.
const sheetMarker = "[SHEET]"

// extractSpreadsheet reads an XLSX workbook sheet by sheet: a sheet-name
// marker, a pipe-delimited header row, then up to maxSheetRows data rows and
// a truncation note when the cap is exceeded.
func extractSpreadsheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open spreadsheet %s: %w: %w", filepath.Base(path), err, domain.ErrExtractionFailed)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w: %w", sheet, err, domain.ErrExtractionFailed)
		}
		if len(rows) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("%s %s\n", sheetMarker, sheet))

		header := rows[0]
		sb.WriteString(strings.Join(header, " | "))
		sb.WriteString("\n")

		dataRows := rows[1:]
		emit := len(dataRows)
		if emit > maxSheetRows {
			emit = maxSheetRows
		}
		for _, row := range dataRows[:emit] {
			sb.WriteString(strings.Join(padRow(row, len(header)), " | "))
			sb.WriteString("\n")
		}
		if len(dataRows) > maxSheetRows {
			sb.WriteString(fmt.Sprintf("... (%d more rows truncated)\n", len(dataRows)-maxSheetRows))
		}
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), nil
}

// padRow extends a ragged row with empty cells up to the header width.
// Missing cells render as empty strings, same as empty ones.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
