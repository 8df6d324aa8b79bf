package isa

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/errors"
)

// STUDY ASSAYS fields used to select assay tables.
const (
	FieldMeasurementType = "Study Assay Measurement Type"
	FieldTechnologyType  = "Study Assay Technology Type"
	FieldAssayFileName   = "Study Assay File Name"
)

// AssayType is a (measurement, technology) pair as declared in STUDY ASSAYS.
type AssayType struct {
	Measurement string `yaml:"measurement" json:"measurement"`
	Technology  string `yaml:"technology" json:"technology"`
}

func (t AssayType) String() string {
	return fmt.Sprintf("(%s, %s)", t.Measurement, t.Technology)
}

// AssayMatch is one assay table selected for conversion.
type AssayMatch struct {
	Path   string // extracted member path
	Name   string // file name as listed in the investigation
	Record int    // 0-based record index in STUDY ASSAYS
	Type   AssayType
}

// Members resolves base file names to extracted paths. *Archive implements it.
type Members interface {
	Lookup(name string) (string, bool)
}

// LocateAssays selects the assay tables whose declared type is one of types.
// Matches are ordered by configured type first, then by position in STUDY
// ASSAYS. A listed file missing from the archive is skipped along with its
// record index.
func LocateAssays(inv *Investigation, types []AssayType, members Members, logger *zap.Logger) ([]AssayMatch, error) {
	const op errors.Op = "isa.LocateAssays"
	if logger == nil {
		logger = zap.NewNop()
	}

	assays, ok := inv.Section(SectionStudyAssays)
	if !ok {
		return nil, errors.E(op, errors.KindStructure, "investigation has no STUDY ASSAYS section")
	}
	for _, f := range []string{FieldMeasurementType, FieldTechnologyType, FieldAssayFileName} {
		if !assays.HasField(f) {
			return nil, errors.E(op, errors.KindStructure, fmt.Sprintf("STUDY ASSAYS has no %q field", f))
		}
	}

	observed := observedTypes(assays)

	var (
		matches []AssayMatch
		listed  int
	)
	for _, want := range types {
		logger.Debug("searching STUDY ASSAYS", zap.Stringer("assay_type", want))
		for i, got := range observed {
			if got != want {
				continue
			}
			listed++
			name, _ := assays.Value(i, FieldAssayFileName)
			path, found := members.Lookup(name)
			if !found {
				logger.Warn("assay table listed in investigation is missing from archive",
					zap.String("file", name), zap.Int("record", i))
				continue
			}
			matches = append(matches, AssayMatch{Path: path, Name: name, Record: i, Type: want})
		}
	}

	if listed == 0 {
		return nil, errors.E(op, errors.KindNoMatch, fmt.Sprintf(
			"no assay matches configured types %s; investigation declares %s",
			formatTypes(types), formatTypes(observed)))
	}
	if len(matches) == 0 {
		return nil, errors.E(op, errors.KindNoMatch, fmt.Sprintf(
			"%d assay table(s) match configured types %s but none is present in the archive",
			listed, formatTypes(types)))
	}

	return matches, nil
}

func observedTypes(assays *Subtable) []AssayType {
	out := make([]AssayType, assays.Len())
	for i := range out {
		m, _ := assays.Value(i, FieldMeasurementType)
		t, _ := assays.Value(i, FieldTechnologyType)
		out[i] = AssayType{Measurement: m, Technology: t}
	}
	return out
}

func formatTypes(types []AssayType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
