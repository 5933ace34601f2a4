package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser parses catalog rows from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed rows.
// Expected columns: name, category, description (only name is required).
func (p *CSVParser) Parse(r io.Reader) ([]RawStandardMenu, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		// Spreadsheet exports often start with a byte order mark.
		col = strings.TrimPrefix(col, "\ufeff")
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	if _, ok := colIndex["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawStandardMenus.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawStandardMenu, error) {
	var rows []RawStandardMenu
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		rows = append(rows, RawStandardMenu{
			Name:        getColumn(record, colIndex, "name"),
			Category:    getColumn(record, colIndex, "category"),
			Description: getColumn(record, colIndex, "description"),
			LineNum:     lineNum,
		})
	}

	return rows, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return record[idx]
	}
	return ""
}
