package extract

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/profile"
)

// Column names added after extraction.
const (
	OriginalSampleColumn = "Original Sample Name"
	GroupsColumn         = "groups"
	factorValueMarker    = "Factor Value"
)

// Injection sets a column to a literal for every row.
type Injection struct {
	Column string
	Value  string
}

// ParseInjections parses "Column=Value" pairs. The value may itself contain
// "=".
func ParseInjections(pairs []string) ([]Injection, error) {
	out := make([]Injection, 0, len(pairs))
	for _, p := range pairs {
		col, val, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(col) == "" {
			return nil, errors.E(errors.Op("extract.ParseInjections"), errors.KindConfig,
				fmt.Sprintf("injection %q must have the form Column_Name=Value", p))
		}
		out = append(out, Injection{Column: col, Value: val})
	}
	return out, nil
}

// PostOptions configure PostProcess.
type PostOptions struct {
	Injections      []Injection
	DeriveGroups    bool
	GroupsSeparator string
}

// PostProcess keeps the original sample names in their own column, replaces
// whitespace in sample names with underscores, optionally derives the groups
// column and finally applies injections, which overwrite any column of the
// same name. The input frame is not modified.
func PostProcess(f *frame.Frame, opts PostOptions, logger *zap.Logger) (*frame.Frame, error) {
	const op errors.Op = "extract.PostProcess"
	if logger == nil {
		logger = zap.NewNop()
	}

	out, err := f.Reindex(func(k string) string { return k })
	if err != nil {
		return nil, errors.E(op, errors.KindStructure, err)
	}

	orig := frame.NewSeries(frame.String)
	for _, k := range out.Index() {
		orig.Values[k] = k
	}
	if err := out.Set(OriginalSampleColumn, orig); err != nil {
		return nil, errors.E(op, errors.KindStructure, err)
	}

	renamed, err := out.Reindex(NormalizeSampleName)
	if err != nil {
		return nil, errors.E(op, errors.KindStructure, err, "sample names collide after replacing whitespace")
	}
	var modified []string
	for _, k := range out.Index() {
		if n := NormalizeSampleName(k); n != k {
			modified = append(modified, k)
		}
	}
	if len(modified) > 0 {
		logger.Info("sample names modified for processing", zap.Strings("samples", modified))
	}
	out = renamed

	if opts.DeriveGroups {
		sep := opts.GroupsSeparator
		if sep == "" {
			sep = profile.DefaultGroupsSeparator
		}
		if err := deriveGroups(out, sep); err != nil {
			return nil, errors.E(op, errors.KindStructure, err)
		}
	}

	for _, inj := range opts.Injections {
		logger.Info("injecting column", zap.String("column", inj.Column), zap.String("value", inj.Value))
		kind := frame.String
		value := inj.Value
		if existing, ok := out.Kind(inj.Column); ok && existing == frame.Bool {
			if b, ok := frame.ParseBool(value); ok {
				kind, value = frame.Bool, frame.FormatBool(b)
			}
		}
		out.SetConstant(inj.Column, kind, value)
	}
	return out, nil
}

// NormalizeSampleName replaces every whitespace character with "_".
func NormalizeSampleName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
}

func deriveGroups(f *frame.Frame, sep string) error {
	var factors []string
	for _, c := range f.Columns() {
		if strings.Contains(c, factorValueMarker) {
			factors = append(factors, c)
		}
	}
	groups := frame.NewSeries(frame.String)
	for _, k := range f.Index() {
		parts := make([]string, len(factors))
		for i, c := range factors {
			parts[i], _ = f.Get(k, c)
		}
		groups.Values[k] = strings.Join(parts, sep)
	}
	return f.Set(GroupsColumn, groups)
}
