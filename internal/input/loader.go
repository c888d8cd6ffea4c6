// Package input loads the tabular account list that drives an audit run.
package input

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one data row of the input file, column name → trimmed value.
type Row map[string]string

// identityColumns are the recognized identity headers. Matching is exact
// and case-sensitive; the column used is whichever recognized header
// appears first left-to-right in the file, not the order of this list.
var identityColumns = []string{
	"EmailAddress",
	"UserPrincipalName",
	"SamAccountName",
	"Identity",
	"Mailbox",
}

var (
	// ErrEmptyInput reports an input file with a header row but no data rows.
	ErrEmptyInput = errors.New("input file contains no data rows")

	// ErrMissingColumn reports a header row without any recognized identity column.
	ErrMissingColumn = errors.New("input file has no recognized identity column")
)

// Load reads the input file at path and returns its data rows together with
// the name of the identity column to use. The file must be delimited text
// with a header row. Rows are returned in file order with every value
// whitespace-trimmed; short rows are padded with empty values and long rows
// truncated to the header width. Rows with a blank identity value are kept;
// they fail account resolution later rather than silently disappearing from
// the report.
func Load(path string) ([]Row, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read input file: %w", err)
	}

	decoded, err := decode(raw)
	if err != nil {
		return nil, "", err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse input file: %w", err)
	}
	if len(records) == 0 {
		return nil, "", fmt.Errorf("input file is empty: no header row found")
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, name := range header {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			row[name] = value
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, "", ErrEmptyInput
	}

	column := chooseIdentityColumn(header)
	if column == "" {
		return nil, "", fmt.Errorf("%w (expected one of: %s)",
			ErrMissingColumn, strings.Join(identityColumns, ", "))
	}

	return rows, column, nil
}

// chooseIdentityColumn returns the first recognized header in file order,
// or "" when none match.
func chooseIdentityColumn(header []string) string {
	recognized := make(map[string]bool, len(identityColumns))
	for _, name := range identityColumns {
		recognized[name] = true
	}
	for _, name := range header {
		if recognized[name] {
			return name
		}
	}
	return ""
}

// decode normalizes the raw file bytes to UTF-8. Exports from Windows
// tooling commonly arrive as UTF-8 with BOM, UTF-16 with BOM, or
// Windows-1252.
func decode(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return raw[3:], nil
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return transformBytes(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), raw)
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return transformBytes(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), raw)
	case utf8.Valid(raw):
		return raw, nil
	default:
		return transformBytes(charmap.Windows1252.NewDecoder(), raw)
	}
}

func transformBytes(t transform.Transformer, raw []byte) ([]byte, error) {
	decoded, _, err := transform.Bytes(t, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input file: %w", err)
	}
	return decoded, nil
}
