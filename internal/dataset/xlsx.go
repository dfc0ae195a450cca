package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXToCSV copies the first sheet of a workbook to w as CSV. Cells are read
// unformatted; date serials in a week column are written as YYYY-MM-DD. Rows
// shorter than the header are padded so every record has the same width.
func XLSXToCSV(r io.Reader, w io.Writer) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("xlsx has no sheets")
	}
	sheet := sheets[0]

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	out := csv.NewWriter(w)
	width, weekIdx := -1, -1
	for rows.Next() {
		record, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		if len(record) == 0 {
			continue
		}
		if width < 0 {
			width = len(record)
			if cols, err := locate(record, weekColumns); err == nil {
				weekIdx = cols[0]
			}
		} else if weekIdx >= 0 && weekIdx < len(record) {
			record[weekIdx] = excelDate(record[weekIdx], date1904)
		}
		for len(record) < width {
			record = append(record, "")
		}
		if err := out.Write(record[:width]); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}

	out.Flush()
	return out.Error()
}

// excelDate formats a date serial as YYYY-MM-DD and returns anything else
// unchanged.
func excelDate(raw string, date1904 bool) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

// ReadWeeklyXLSX reads weekly demand from the first sheet of a workbook.
func ReadWeeklyXLSX(r io.Reader) (ReadResult, error) {
	var buf bytes.Buffer
	if err := XLSXToCSV(r, &buf); err != nil {
		return ReadResult{}, err
	}
	return ReadWeekly(&buf)
}

// ReadOnHandXLSX reads on-hand quantities from the first sheet of a workbook.
func ReadOnHandXLSX(r io.Reader) (map[string]float64, error) {
	var buf bytes.Buffer
	if err := XLSXToCSV(r, &buf); err != nil {
		return nil, err
	}
	return ReadOnHand(&buf)
}

// IsSupported reports whether name has an extension the readers understand.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// WeeklyReaderFor picks the demand reader for a file name.
func WeeklyReaderFor(name string) func(io.Reader) (ReadResult, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return ReadWeeklyXLSX
	}
	return ReadWeekly
}

// OnHandReaderFor picks the on-hand reader for a file name.
func OnHandReaderFor(name string) func(io.Reader) (map[string]float64, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return ReadOnHandXLSX
	}
	return ReadOnHand
}
