package hospital

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX parses a hospital directory workbook. Only the first sheet is
// read and its first row is the header, matched like ReadCSV.
func ReadXLSX(r io.Reader) ([]Hospital, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHospitalColumn
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHospitalColumn
	}

	index := mapHeader(rows[0])
	if _, ok := index["hospital"]; !ok {
		return nil, ErrNoHospitalColumn
	}

	var out []Hospital
	for _, record := range rows[1:] {
		if len(record) == 0 {
			continue
		}
		out = append(out, index.hospital(record))
	}
	return out, nil
}

// ReadFile parses a hospital directory from path, choosing the reader by
// extension: .xlsx and .xlsm are workbooks, anything else is CSV.
func ReadFile(path string) ([]Hospital, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f)
	default:
		return ReadCSV(f)
	}
}
