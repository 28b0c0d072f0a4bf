package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRecord is one parsed data row. Row is the 1-based position of the row in
// the source file, header excluded, and is carried through the pipeline for
// error reporting.
type RawRecord struct {
	Row    int
	Values map[string]string
}

// Get returns the value for a column, matching the header case-insensitively.
func (r RawRecord) Get(column string) string {
	if v, ok := r.Values[column]; ok {
		return v
	}
	for k, v := range r.Values {
		if strings.EqualFold(k, column) {
			return v
		}
	}
	return ""
}

// ParsedFile is the output of parsing: the ordered header row and the data
// rows as string-keyed maps.
type ParsedFile struct {
	Headers []string
	Records []RawRecord
}

// ParseCSV parses a CSV stream into headers and rows. An empty file or a file
// with zero data rows is a hard error for the whole run.
func ParseCSV(file io.Reader) (*ParsedFile, error) {
	reader := csv.NewReader(file)
	// Shopify exports occasionally carry stray quotes
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	headers = normalizeHeaders(headers)

	var records []RawRecord
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+2, err)
		}

		lineNum++
		values := make(map[string]string, len(headers))
		for i, value := range record {
			if i < len(headers) {
				values[headers[i]] = strings.TrimSpace(value)
			}
		}
		records = append(records, RawRecord{Row: lineNum, Values: values})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("the file contains no data rows")
	}

	return &ParsedFile{Headers: headers, Records: records}, nil
}

// ParseXLSX parses the first sheet of an Excel workbook into headers and rows.
func ParseXLSX(file io.Reader) (*ParsedFile, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(excelRows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := normalizeHeaders(excelRows[0])

	var records []RawRecord
	for rowIdx, excelRow := range excelRows[1:] {
		values := make(map[string]string, len(headers))
		for i, value := range excelRow {
			if i < len(headers) {
				values[headers[i]] = strings.TrimSpace(value)
			}
		}
		records = append(records, RawRecord{Row: rowIdx + 1, Values: values})
	}

	return &ParsedFile{Headers: headers, Records: records}, nil
}

// normalizeHeaders trims whitespace, the UTF-8 BOM some spreadsheet tools
// prepend, and the required-column marker the template download adds.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimSpace(h)
		h = strings.TrimSuffix(h, " *")
		out[i] = h
	}
	return out
}
