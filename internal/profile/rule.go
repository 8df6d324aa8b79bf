package profile

import (
	"regexp"

	"github.com/nishad/runsheet/internal/frame"
)

// Source names the ISA table a rule reads from.
type Source string

const (
	SourceInvestigation Source = "Investigation"
	SourceAssay         Source = "Assay"
	SourceSample        Source = "Sample"
)

// Rule is one compiled extraction instruction. The concrete types are
// PresenceRule, InvestigationRule, IndexRule, CopyRule, RemapRule, SplitRule
// and ColumnScanRule.
type Rule interface {
	// Meta returns the attributes shared by every rule kind.
	Meta() RuleMeta
	// Kind names the rule kind for logs and listings.
	Kind() string
}

// RuleMeta holds attributes common to every rule.
type RuleMeta struct {
	Position int // 0-based position in the profile
	Sources  []Source
	Autoload bool
}

// Meta implements Rule.
func (m RuleMeta) Meta() RuleMeta { return m }

// Literal is a configured constant cell value.
type Literal struct {
	Value string
	Kind  frame.Kind
}

// PresenceRule sets a boolean column to true when any value of an
// investigation field matches one of Targets. Both sides are compared
// trimmed and lower-cased.
type PresenceRule struct {
	RuleMeta
	Subtable string
	Field    string
	Column   string
	Targets  []string
}

// InvestigationRule copies the field of the matched assay's record in an
// investigation subtable to every row.
type InvestigationRule struct {
	RuleMeta
	Subtable string
	Field    string
	Column   string
}

// IndexRule declares the field that identifies rows. The merged table is
// already keyed by it; the rule is informational.
type IndexRule struct {
	RuleMeta
	Field  string
	Column string
}

// CopyRule copies the first resolvable candidate column.
type CopyRule struct {
	RuleMeta
	Candidates []string
	Column     string
	ResolveURL bool
	Fallback   *Literal
}

// RemapRule copies a column and substitutes every cell through Mapping.
// A cell without a mapping is an error.
type RemapRule struct {
	RuleMeta
	Candidates []string
	Column     string
	Mapping    map[string]string
	ValueKind  frame.Kind // kind of the mapped values
	ResolveURL bool
	Fallback   *Literal
}

// SplitColumn binds one part of a split cell to an output column.
type SplitColumn struct {
	Index    int
	Name     string
	Optional bool
}

// SplitRule splits each cell into positional parts, either at Separator or
// by collecting the matches of Pattern. A one-character delimiter is taken
// literally; longer delimiters are regular expressions.
type SplitRule struct {
	RuleMeta
	Candidates    []string
	Delimiter     string
	Separator     *regexp.Regexp
	Pattern       *regexp.Regexp
	Columns       []SplitColumn
	ResolveURL    bool
	ExtractSuffix bool
}

// ColumnScanRule copies every column whose name matches Pattern. When
// AppendFollowing is set, the first following column whose name starts
// with it is appended to each value as a unit.
type ColumnScanRule struct {
	RuleMeta
	Pattern         *regexp.Regexp
	AppendFollowing string
}

func (PresenceRule) Kind() string      { return "presence" }
func (InvestigationRule) Kind() string { return "investigation" }
func (IndexRule) Kind() string         { return "index" }
func (CopyRule) Kind() string          { return "copy" }
func (RemapRule) Kind() string         { return "remap" }
func (SplitRule) Kind() string         { return "split" }
func (ColumnScanRule) Kind() string    { return "column_scan" }

// Columns returns the output column names a rule can produce. Column scans
// produce names only known at extraction time and return nil.
func Columns(r Rule) []string {
	switch r := r.(type) {
	case *PresenceRule:
		return []string{r.Column}
	case *InvestigationRule:
		return []string{r.Column}
	case *IndexRule:
		return nil
	case *CopyRule:
		return []string{r.Column}
	case *RemapRule:
		return []string{r.Column}
	case *SplitRule:
		out := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			out[i] = c.Name
		}
		return out
	case *ColumnScanRule:
		return nil
	}
	return nil
}
