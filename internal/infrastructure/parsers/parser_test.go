package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawStandardMenu
	}{
		{
			name:  "single row",
			input: `[{"name": "김치찌개", "category": "한식-찌개"}]`,
			expected: []RawStandardMenu{
				{Name: "김치찌개", Category: "한식-찌개", LineNum: 1},
			},
		},
		{
			name:  "line numbers follow array order",
			input: `[{"name": "짜장면"}, {"name": "짬뽕", "description": "매운 국물"}]`,
			expected: []RawStandardMenu{
				{Name: "짜장면", LineNum: 1},
				{Name: "짬뽕", Description: "매운 국물", LineNum: 2},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawStandardMenu{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}
	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing JSON")
}

func TestCSVParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawStandardMenu
	}{
		{
			name:  "required column only",
			input: "name\n비빔밥\n",
			expected: []RawStandardMenu{
				{Name: "비빔밥", LineNum: 2},
			},
		},
		{
			name:     "empty CSV (header only)",
			input:    "name,category\n",
			expected: nil,
		},
		{
			name:  "columns in different order",
			input: "description,category,name\n바삭한 튀김,치킨,후라이드치킨\n",
			expected: []RawStandardMenu{
				{Name: "후라이드치킨", Category: "치킨", Description: "바삭한 튀김", LineNum: 2},
			},
		},
		{
			name:  "header with byte order mark and mixed case",
			input: "\ufeffName,Category\n갈비,한식-고기\n",
			expected: []RawStandardMenu{
				{Name: "갈비", Category: "한식-고기", LineNum: 2},
			},
		},
		{
			name:  "short rows leave optional fields empty",
			input: "name,category,description\n목살,한식-고기\n",
			expected: []RawStandardMenu{
				{Name: "목살", Category: "한식-고기", LineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "missing required column",
			input:  "category,description\n치킨,바삭\n",
			errMsg: "missing required column: name",
		},
		{
			name:   "empty input",
			input:  "",
			errMsg: "reading CSV header",
		},
		{
			name:   "unterminated quote",
			input:  "name\n\"짬뽕\n",
			errMsg: "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &CSVParser{}, ForFormat("CSV"))
	assert.Nil(t, ForFormat("unknown"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("catalog.json"))
	assert.IsType(t, &CSVParser{}, ForFile("catalog.CSV"))
	assert.Nil(t, ForFile("file.txt"))
	assert.Nil(t, ForFile("noextension"))
}
