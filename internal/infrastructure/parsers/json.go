package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses catalog rows from a JSON array.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed rows.
func (p *JSONParser) Parse(r io.Reader) ([]RawStandardMenu, error) {
	var rows []RawStandardMenu

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range rows {
		rows[i].LineNum = i + 1
	}

	return rows, nil
}
