package isa

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/runsheet/internal/errors"
)

// SampleNameColumn is the join key shared by sample and assay tables.
const SampleNameColumn = "Sample Name"

// Table is a tab-separated ISA study or assay table. Every cell is kept as
// the literal string from the file; identifiers such as "001" are never
// coerced.
type Table struct {
	Name     string // base file name
	Header   []string
	Rows     [][]string
	Encoding Encoding
}

// ReadTable loads a sample or assay table. Repeated header names are
// disambiguated as "Unit", "Unit.1", "Unit.2" so that every column keeps a
// distinct name and its position.
func ReadTable(path string) (*Table, error) {
	const op errors.Op = "isa.ReadTable"

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to read %s", filepath.Base(path)))
	}
	t, err := ParseTable(filepath.Base(path), b)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	return t, nil
}

// ParseTable parses table bytes. name is used in diagnostics only.
func ParseTable(name string, b []byte) (*Table, error) {
	const op errors.Op = "isa.ParseTable"

	text, enc, err := decodeText(b)
	if err != nil {
		return nil, errors.E(op, errors.KindParse, err, fmt.Sprintf("failed to decode %s", name))
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.E(op, errors.KindStructure, fmt.Sprintf("%s is empty", name))
	}
	if err != nil {
		return nil, errors.E(op, errors.KindParse, err, fmt.Sprintf("failed to read header of %s", name))
	}
	t := &Table{Name: name, Header: mangleHeader(header), Encoding: enc}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(op, errors.KindParse, err, fmt.Sprintf("failed to read %s", name))
		}
		if blankRecord(rec) {
			continue
		}
		row, err := fitRow(rec, len(t.Header))
		if err != nil {
			line, _ := r.FieldPos(0)
			return nil, errors.E(op, errors.KindParse, fmt.Sprintf("%s line %d: %v", name, line, err))
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func mangleHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]struct{}, len(header))
	for _, h := range header {
		taken[h] = struct{}{}
	}
	for i, h := range header {
		n, dup := seen[h]
		seen[h] = n + 1
		if !dup {
			out[i] = h
			continue
		}
		name := fmt.Sprintf("%s.%d", h, n)
		for {
			if _, clash := taken[name]; !clash {
				break
			}
			n++
			seen[h] = n + 1
			name = fmt.Sprintf("%s.%d", h, n)
		}
		taken[name] = struct{}{}
		out[i] = name
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// fitRow pads short rows. Trailing empty cells beyond the header are
// tolerated; any other overflow is an error.
func fitRow(rec []string, width int) ([]string, error) {
	if len(rec) <= width {
		row := make([]string, width)
		copy(row, rec)
		return row, nil
	}
	for _, extra := range rec[width:] {
		if strings.TrimSpace(extra) != "" {
			return nil, fmt.Errorf("row has %d fields, header has %d", len(rec), width)
		}
	}
	return rec[:width], nil
}
