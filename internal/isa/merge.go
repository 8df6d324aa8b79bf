package isa

import (
	"fmt"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
)

// Suffixes applied to column names present in both tables.
const (
	SampleSuffix = "_x"
	AssaySuffix  = "_y"
)

// MergeReport lists samples that did not survive the join.
type MergeReport struct {
	SampleOnly []string // in the sample table only
	AssayOnly  []string // in the assay table only
}

// Dropped reports whether any sample was lost.
func (r MergeReport) Dropped() bool {
	return len(r.SampleOnly) > 0 || len(r.AssayOnly) > 0
}

// Merge inner-joins a sample table and an assay table on Sample Name. Rows
// follow sample table order. Both tables must list each sample at most once.
func Merge(sample, assay *Table) (*frame.Frame, MergeReport, error) {
	const op errors.Op = "isa.Merge"
	var report MergeReport

	sKey := sample.ColumnIndex(SampleNameColumn)
	if sKey < 0 {
		return nil, report, errors.E(op, errors.KindStructure, fmt.Sprintf("%s has no %q column", sample.Name, SampleNameColumn))
	}
	aKey := assay.ColumnIndex(SampleNameColumn)
	if aKey < 0 {
		return nil, report, errors.E(op, errors.KindStructure, fmt.Sprintf("%s has no %q column", assay.Name, SampleNameColumn))
	}

	sRows, err := keyRows(sample, sKey)
	if err != nil {
		return nil, report, errors.E(op, errors.KindStructure, err)
	}
	aRows, err := keyRows(assay, aKey)
	if err != nil {
		return nil, report, errors.E(op, errors.KindStructure, err)
	}

	var keys []string
	for _, row := range sample.Rows {
		k := row[sKey]
		if _, ok := aRows[k]; ok {
			keys = append(keys, k)
		} else {
			report.SampleOnly = append(report.SampleOnly, k)
		}
	}
	for _, row := range assay.Rows {
		if _, ok := sRows[row[aKey]]; !ok {
			report.AssayOnly = append(report.AssayOnly, row[aKey])
		}
	}

	out, err := frame.New(SampleNameColumn, keys)
	if err != nil {
		return nil, report, errors.E(op, errors.KindStructure, err)
	}

	inAssay := headerSet(assay.Header, aKey)
	inSample := headerSet(sample.Header, sKey)

	for j, h := range sample.Header {
		if j == sKey {
			continue
		}
		name := h
		if _, clash := inAssay[h]; clash {
			name += SampleSuffix
		}
		if err := out.Set(name, columnSeries(keys, sRows, j)); err != nil {
			return nil, report, errors.E(op, errors.KindStructure, err)
		}
	}
	for j, h := range assay.Header {
		if j == aKey {
			continue
		}
		name := h
		if _, clash := inSample[h]; clash {
			name += AssaySuffix
		}
		if err := out.Set(name, columnSeries(keys, aRows, j)); err != nil {
			return nil, report, errors.E(op, errors.KindStructure, err)
		}
	}

	return out, report, nil
}

func keyRows(t *Table, key int) (map[string][]string, error) {
	rows := make(map[string][]string, len(t.Rows))
	for _, row := range t.Rows {
		k := row[key]
		if _, dup := rows[k]; dup {
			return nil, fmt.Errorf("%s lists sample %q more than once", t.Name, k)
		}
		rows[k] = row
	}
	return rows, nil
}

func headerSet(header []string, skip int) map[string]struct{} {
	m := make(map[string]struct{}, len(header))
	for j, h := range header {
		if j != skip {
			m[h] = struct{}{}
		}
	}
	return m
}

func columnSeries(keys []string, rows map[string][]string, j int) frame.Series {
	s := frame.NewSeries(frame.String)
	for _, k := range keys {
		s.Values[k] = rows[k][j]
	}
	return s
}
