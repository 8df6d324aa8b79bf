// Package schema validates runsheets against per-assay column schemas.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/profile"
)

// Column names with dataset-level meaning.
const (
	ColumnPairedEnd = "paired_end"
	ColumnRead2     = "read2_path"
	FactorPrefix    = "Factor Value["
)

// Column declares one runsheet column.
type Column struct {
	Name        string
	Type        frame.Kind
	Required    bool
	SingleValue bool // every row must hold the same value
}

// Schema is the set of rules a runsheet must satisfy.
type Schema struct {
	Name    string
	Columns []Column
	// PairedEndCheck requires read2_path to be present exactly when
	// paired_end is true.
	PairedEndCheck bool
}

// Provider returns the schema registered for a profile name.
type Provider interface {
	Schema(name string) (*Schema, bool)
}

// Options control checks that depend on the caller.
type Options struct {
	AssertFactorValues bool
}

// Result contains validation results.
type Result struct {
	Schema string            `json:"schema"`
	Valid  bool              `json:"valid"`
	Rows   int               `json:"rows"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a validation error.
type ValidationError struct {
	Type    string `json:"type"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// Validation error types.
const (
	ErrMissingColumn = "MISSING_COLUMN"
	ErrEmptyValue    = "EMPTY_VALUE"
	ErrWrongType     = "WRONG_TYPE"
	ErrNotSingle     = "NOT_SINGLE_VALUE"
	ErrPairedEnd     = "PAIRED_END_MISMATCH"
	ErrNoFactors     = "NO_FACTOR_VALUES"
	ErrNoRows        = "NO_ROWS"
)

// Check runs every check and collects the failures.
func (s *Schema) Check(f *frame.Frame, opts Options) *Result {
	result := &Result{Schema: s.Name, Rows: f.Len()}

	if f.Len() == 0 {
		result.add(ErrNoRows, "", "runsheet has no rows")
	}

	for _, c := range s.Columns {
		s.checkColumn(f, c, result)
	}

	if s.PairedEndCheck {
		checkPairedEnd(f, result)
	}

	if opts.AssertFactorValues && !hasFactorValue(f) {
		result.add(ErrNoFactors, "", fmt.Sprintf(
			"must extract at least one factor value column but only has the following columns: %v", f.Columns()))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (s *Schema) checkColumn(f *frame.Frame, c Column, result *Result) {
	if !f.Has(c.Name) {
		if c.Required {
			result.add(ErrMissingColumn, c.Name, fmt.Sprintf("required column %q is missing", c.Name))
		}
		return
	}

	values := f.Values(c.Name)
	index := f.Index()
	var empty []string
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			empty = append(empty, index[i])
		}
	}
	if len(empty) > 0 {
		result.add(ErrEmptyValue, c.Name, fmt.Sprintf("column %q is empty for samples %v", c.Name, empty))
	}

	kind, _ := f.Kind(c.Name)
	if c.Type == frame.Bool && kind != frame.Bool {
		for i, v := range values {
			if _, ok := frame.ParseBool(v); !ok {
				result.add(ErrWrongType, c.Name, fmt.Sprintf("column %q expects bool, sample %q has %q", c.Name, index[i], v))
				break
			}
		}
	}
	if c.Type == frame.String && kind == frame.Bool {
		result.add(ErrWrongType, c.Name, fmt.Sprintf("column %q expects string values, found bool", c.Name))
	}

	if c.SingleValue && f.Len() > 0 {
		if distinct := f.DistinctValues(c.Name); len(distinct) != 1 {
			result.add(ErrNotSingle, c.Name, fmt.Sprintf(
				"dataset level column %q must hold one unique value, found %d: %v", c.Name, len(distinct), distinct))
		}
	}
}

func checkPairedEnd(f *frame.Frame, result *Result) {
	if f.Len() == 0 {
		return
	}
	if !f.Has(ColumnPairedEnd) {
		result.add(ErrMissingColumn, ColumnPairedEnd, fmt.Sprintf("column %q is needed to check %q", ColumnPairedEnd, ColumnRead2))
		return
	}
	first, _ := f.Get(f.Index()[0], ColumnPairedEnd)
	paired, ok := frame.ParseBool(first)
	if !ok {
		return // reported by the type check
	}
	hasRead2 := f.Has(ColumnRead2)
	switch {
	case paired && !hasRead2:
		result.add(ErrPairedEnd, ColumnRead2, "paired_end is True but read2_path is missing")
	case !paired && hasRead2:
		result.add(ErrPairedEnd, ColumnRead2, "paired_end is False but read2_path is present")
	}
}

func hasFactorValue(f *frame.Frame) bool {
	for _, c := range f.Columns() {
		if strings.HasPrefix(c, FactorPrefix) {
			return true
		}
	}
	return false
}

func (r *Result) add(typ, column, msg string) {
	r.Errors = append(r.Errors, ValidationError{Type: typ, Column: column, Message: msg})
}

// Validate checks f and returns a schema error describing every failure.
func Validate(s *Schema, f *frame.Frame, opts Options) (*Result, error) {
	result := s.Check(f, opts)
	if result.Valid {
		return result, nil
	}
	msgs := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		msgs[i] = e.Message
	}
	return result, errors.E(errors.Op("schema.Validate"), errors.KindSchema,
		fmt.Sprintf("runsheet fails %s schema: %s", s.Name, strings.Join(msgs, "; ")))
}

// Registry holds schemas by profile name.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry returns a registry preloaded with the built-in schemas.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]*Schema)}
	for _, s := range builtin() {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a schema.
func (r *Registry) Register(s *Schema) {
	r.schemas[s.Name] = s
}

// Schema implements Provider.
func (r *Registry) Schema(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names lists registered schemas.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ForProfile returns the profile's own schema when it declares one, and the
// registered schema of its name otherwise.
func ForProfile(p Provider, prof *profile.Profile) (*Schema, error) {
	if prof.Schema != nil {
		return FromSpec(prof.Name, prof.Schema)
	}
	s, ok := p.Schema(prof.Name)
	if !ok {
		return nil, errors.E(errors.Op("schema.ForProfile"), errors.KindConfig,
			fmt.Sprintf("no runsheet schema registered for profile %q", prof.Name))
	}
	return s, nil
}

// FromSpec converts a schema declared in a profile.
func FromSpec(name string, spec *profile.SchemaSpec) (*Schema, error) {
	s := &Schema{Name: name, PairedEndCheck: spec.PairedEndCheck}
	for _, c := range spec.Columns {
		kind, err := c.ColumnKind()
		if err != nil {
			return nil, errors.E(errors.Op("schema.FromSpec"), errors.KindConfig, err)
		}
		s.Columns = append(s.Columns, Column{
			Name:        c.Name,
			Type:        kind,
			Required:    c.IsRequired(),
			SingleValue: c.SingleValue,
		})
	}
	return s, nil
}
