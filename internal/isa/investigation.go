package isa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nishad/runsheet/internal/errors"
)

// Investigation section headers. Every investigation file carries all eleven.
const (
	SectionOntologySourceReference  = "ONTOLOGY SOURCE REFERENCE"
	SectionInvestigation            = "INVESTIGATION"
	SectionInvestigationPublication = "INVESTIGATION PUBLICATIONS"
	SectionInvestigationContacts    = "INVESTIGATION CONTACTS"
	SectionStudy                    = "STUDY"
	SectionStudyDesignDescriptors   = "STUDY DESIGN DESCRIPTORS"
	SectionStudyPublications        = "STUDY PUBLICATIONS"
	SectionStudyFactors             = "STUDY FACTORS"
	SectionStudyAssays              = "STUDY ASSAYS"
	SectionStudyProtocols           = "STUDY PROTOCOLS"
	SectionStudyContacts            = "STUDY CONTACTS"
)

// Sections lists the canonical investigation sections in file order.
var Sections = []string{
	SectionOntologySourceReference,
	SectionInvestigation,
	SectionInvestigationPublication,
	SectionInvestigationContacts,
	SectionStudy,
	SectionStudyDesignDescriptors,
	SectionStudyPublications,
	SectionStudyFactors,
	SectionStudyAssays,
	SectionStudyProtocols,
	SectionStudyContacts,
}

var sectionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Sections))
	for _, s := range Sections {
		m[s] = struct{}{}
	}
	return m
}()

// IsSection reports whether name is a canonical section header.
func IsSection(name string) bool {
	_, ok := sectionSet[name]
	return ok
}

// Subtable is one investigation section. The file stores fields as rows and
// records as columns; a Subtable holds the transposed view, so each field is
// a column and each record a row.
type Subtable struct {
	Fields  []string
	Records [][]string // Records[i][j] is field Fields[j] of record i
}

// Len returns the number of records.
func (s *Subtable) Len() int { return len(s.Records) }

func (s *Subtable) fieldIndex(field string) int {
	for i, f := range s.Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// HasField reports whether the section declares a field.
func (s *Subtable) HasField(field string) bool {
	return s.fieldIndex(field) >= 0
}

// Column returns a field's value for every record.
func (s *Subtable) Column(field string) ([]string, bool) {
	j := s.fieldIndex(field)
	if j < 0 {
		return nil, false
	}
	out := make([]string, len(s.Records))
	for i, rec := range s.Records {
		out[i] = rec[j]
	}
	return out, true
}

// Value returns one field of one record.
func (s *Subtable) Value(record int, field string) (string, bool) {
	j := s.fieldIndex(field)
	if j < 0 || record < 0 || record >= len(s.Records) {
		return "", false
	}
	return s.Records[record][j], true
}

// Investigation maps each canonical section name to its subtable.
type Investigation struct {
	Sections map[string]*Subtable
}

// Section returns a subtable by header name.
func (inv *Investigation) Section(name string) (*Subtable, bool) {
	s, ok := inv.Sections[name]
	return s, ok
}

// ParseInvestigation parses investigation file bytes. The returned Encoding
// reports whether the legacy fallback decoding was needed.
func ParseInvestigation(b []byte) (*Investigation, Encoding, error) {
	const op errors.Op = "isa.ParseInvestigation"

	text, enc, err := decodeText(b)
	if err != nil {
		return nil, enc, errors.E(op, errors.KindParse, err, "failed to decode investigation file")
	}

	inv := &Investigation{Sections: make(map[string]*Subtable)}
	var (
		key  string
		rows [][]string
	)
	closeSection := func() {
		if key != "" {
			inv.Sections[key] = transpose(rows)
		}
		rows = nil
	}

	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if _, isHeader := sectionSet[trimmed]; isHeader {
			if _, seen := inv.Sections[trimmed]; seen || trimmed == key {
				return nil, enc, errors.E(op, errors.KindStructure,
					fmt.Sprintf("section %q repeated at line %d", trimmed, n+1))
			}
			closeSection()
			key = trimmed
			continue
		}
		if trimmed == "" {
			continue
		}
		if key == "" {
			return nil, enc, errors.E(op, errors.KindStructure,
				fmt.Sprintf("content before first section header at line %d", n+1))
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	closeSection()

	if missing := missingSections(inv.Sections); len(missing) > 0 {
		return nil, enc, errors.E(op, errors.KindStructure,
			fmt.Sprintf("malformed investigation file, missing sections %v", missing))
	}

	return inv, enc, nil
}

func missingSections(got map[string]*Subtable) []string {
	var missing []string
	for _, s := range Sections {
		if _, ok := got[s]; !ok {
			missing = append(missing, s)
		}
	}
	sort.Strings(missing)
	return missing
}

// transpose turns field rows ("Field\tv1\tv2") into records.
func transpose(rows [][]string) *Subtable {
	st := &Subtable{Fields: make([]string, len(rows))}
	width := 0
	for i, r := range rows {
		st.Fields[i] = stripQuotes(strings.TrimSpace(r[0]))
		if len(r)-1 > width {
			width = len(r) - 1
		}
	}
	for rec := 0; rec < width; rec++ {
		record := make([]string, len(rows))
		for i, r := range rows {
			if rec+1 < len(r) {
				record[i] = stripQuotes(r[rec+1])
			}
		}
		st.Records = append(st.Records, record)
	}
	return st
}

// stripQuotes removes single and double quotes from both ends of a cell.
func stripQuotes(s string) string {
	return strings.Trim(s, `"'`)
}
