package profile

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/isa"
)

// The column that marks suffix extraction when no explicit flag is set.
const suffixMarkerColumn = "raw_R1_suffix"

type document struct {
	Name    string `yaml:"NAME"`
	Version string `yaml:"VERSION"`
	ISAMeta struct {
		ValidTypes []isa.AssayType `yaml:"Valid Study Assay Technology And Measurement Types"`
	} `yaml:"ISA Meta"`
	Staging struct {
		General struct {
			RequiredMetadata struct {
				FromISA []rawRule `yaml:"From ISA"`
			} `yaml:"Required Metadata"`
		} `yaml:"General"`
	} `yaml:"Staging"`
	Options *rawOptions `yaml:"Runsheet Options"`
	Schema  *SchemaSpec `yaml:"Runsheet Schema"`
}

type rawOptions struct {
	NamingColumn       *string `yaml:"Naming Column"`
	DeriveGroups       *bool   `yaml:"Derive Groups"`
	GroupsSeparator    *string `yaml:"Groups Separator"`
	AssertFactorValues *bool   `yaml:"Assert Factor Values"`
}

type rawRule struct {
	Source            stringList          `yaml:"ISA Table Source"`
	Subtable          string              `yaml:"Investigation Subtable"`
	Field             stringList          `yaml:"ISA Field Name"`
	Column            columnNames         `yaml:"Runsheet Column Name"`
	MultipleValues    bool                `yaml:"Multiple Values Per Entry"`
	Delimiter         *string             `yaml:"Multiple Values Delimiter"`
	MatchRegex        string              `yaml:"Match Regex"`
	MultipleColumns   bool                `yaml:"Matches Multiple Columns"`
	AppendFollowing   string              `yaml:"Append Column Following"`
	URLMapping        bool                `yaml:"GLDS URL Mapping"`
	ValueIfNotFound   *Literal            `yaml:"Value If Not Found"`
	FallbackValue     *Literal            `yaml:"Fallback Value"`
	Remapping         map[string]*Literal `yaml:"Remapping"`
	TrueIfIncludes    []string            `yaml:"True If Includes At Least One"`
	Autoload          *bool               `yaml:"Autoload"`
	RunsheetIndex     bool                `yaml:"Runsheet Index"`
	ExtractReadSuffix *bool               `yaml:"Extract Read Suffix"`
}

// stringList accepts a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*s = stringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return err
		}
		*s = out
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of strings", n.Line)
}

// columnNames is either a single column name or a list of split columns.
type columnNames struct {
	Name  string
	Split []SplitColumn
}

func (c *columnNames) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		c.Name = n.Value
		return nil
	case yaml.SequenceNode:
		var raw []struct {
			Index    *int   `yaml:"index"`
			Name     string `yaml:"name"`
			Optional bool   `yaml:"optional"`
		}
		if err := n.Decode(&raw); err != nil {
			return err
		}
		for i, r := range raw {
			if r.Index == nil || r.Name == "" {
				return fmt.Errorf("line %d: split column %d needs index and name", n.Line, i)
			}
			c.Split = append(c.Split, SplitColumn{Index: *r.Index, Name: r.Name, Optional: r.Optional})
		}
		return nil
	}
	return fmt.Errorf("line %d: expected column name or list of {index, name, optional}", n.Line)
}

// UnmarshalYAML reads any scalar. YAML booleans become bool literals.
func (l *Literal) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	if n.ShortTag() == "!!bool" {
		var b bool
		if err := n.Decode(&b); err != nil {
			return err
		}
		*l = Literal{Value: frame.FormatBool(b), Kind: frame.Bool}
		return nil
	}
	if n.ShortTag() == "!!null" {
		*l = Literal{}
		return nil
	}
	*l = Literal{Value: n.Value, Kind: frame.String}
	return nil
}

// Parse decodes and compiles a profile document.
func Parse(b []byte) (*Profile, error) {
	const op errors.Op = "profile.Parse"

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.E(op, errors.KindConfig, err, "invalid profile document")
	}
	p, err := compile(&doc)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	return p, nil
}

func compile(doc *document) (*Profile, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("NAME is required")
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%s: VERSION is required", doc.Name)
	}
	if len(doc.ISAMeta.ValidTypes) == 0 {
		return nil, fmt.Errorf("%s: no valid study assay types configured", doc.Name)
	}

	p := &Profile{
		Name:       doc.Name,
		Version:    doc.Version,
		AssayTypes: doc.ISAMeta.ValidTypes,
		Options:    resolveOptions(doc.Name, doc.Options),
		Schema:     doc.Schema,
	}
	for i := range doc.Staging.General.RequiredMetadata.FromISA {
		r, err := compileRule(i, &doc.Staging.General.RequiredMetadata.FromISA[i])
		if err != nil {
			return nil, fmt.Errorf("%s rule %d: %w", doc.Name, i, err)
		}
		p.Rules = append(p.Rules, r)
	}
	if p.Schema != nil {
		for _, c := range p.Schema.Columns {
			if _, err := c.ColumnKind(); err != nil {
				return nil, fmt.Errorf("%s schema: %w", doc.Name, err)
			}
		}
	}
	return p, nil
}

func resolveOptions(name string, raw *rawOptions) Options {
	o := Options{
		GroupsSeparator:    DefaultGroupsSeparator,
		AssertFactorValues: true,
	}
	if name == AmpliconName {
		o.NamingColumn = DefaultAmpliconNaming
		o.DeriveGroups = true
	}
	if raw == nil {
		return o
	}
	if raw.NamingColumn != nil {
		o.NamingColumn = *raw.NamingColumn
	}
	if raw.DeriveGroups != nil {
		o.DeriveGroups = *raw.DeriveGroups
	}
	if raw.GroupsSeparator != nil {
		o.GroupsSeparator = *raw.GroupsSeparator
	}
	if raw.AssertFactorValues != nil {
		o.AssertFactorValues = *raw.AssertFactorValues
	}
	return o
}

func compileRule(pos int, r *rawRule) (Rule, error) {
	meta := RuleMeta{Position: pos, Autoload: r.Autoload == nil || *r.Autoload}
	for _, s := range r.Source {
		switch src := Source(s); src {
		case SourceInvestigation, SourceAssay, SourceSample:
			meta.Sources = append(meta.Sources, src)
		default:
			return nil, fmt.Errorf("unknown ISA Table Source %q", s)
		}
	}
	if len(meta.Sources) == 0 {
		return nil, fmt.Errorf("ISA Table Source is required")
	}
	if len(r.Field) == 0 && !(r.MultipleColumns && r.MatchRegex != "") {
		return nil, fmt.Errorf("ISA Field Name is required")
	}

	if meta.Sources[0] == SourceInvestigation {
		if len(meta.Sources) > 1 {
			return nil, fmt.Errorf("investigation rules cannot read other tables")
		}
		return compileInvestigationRule(meta, r)
	}
	if r.Subtable != "" || len(r.TrueIfIncludes) > 0 {
		return nil, fmt.Errorf("%q: Investigation Subtable and True If Includes At Least One need an Investigation source", r.Field)
	}

	fallback, err := pickFallback(r)
	if err != nil {
		return nil, err
	}

	switch {
	case r.RunsheetIndex:
		if len(r.Field) != 1 {
			return nil, fmt.Errorf("Runsheet Index takes a single ISA Field Name")
		}
		return &IndexRule{RuleMeta: meta, Field: r.Field[0], Column: r.Column.Name}, nil

	case r.MultipleValues:
		return compileSplitRule(meta, r, fallback)

	case r.MultipleColumns:
		if r.MatchRegex == "" {
			return nil, fmt.Errorf("Matches Multiple Columns needs Match Regex")
		}
		if r.URLMapping || r.Remapping != nil || fallback != nil {
			return nil, fmt.Errorf("column scans cannot combine URL mapping, remapping or fallbacks")
		}
		re, err := regexp.Compile(`^(?:` + r.MatchRegex + `)`)
		if err != nil {
			return nil, fmt.Errorf("Match Regex: %w", err)
		}
		return &ColumnScanRule{RuleMeta: meta, Pattern: re, AppendFollowing: r.AppendFollowing}, nil

	case r.MatchRegex != "":
		return nil, fmt.Errorf("%q: Match Regex needs Multiple Values Per Entry or Matches Multiple Columns", r.Field)
	}

	if r.Column.Name == "" {
		return nil, fmt.Errorf("%q: Runsheet Column Name must be a single name", r.Field)
	}
	if r.Remapping != nil {
		mapping, kind, err := compileMapping(r.Remapping)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", r.Field, err)
		}
		return &RemapRule{
			RuleMeta:   meta,
			Candidates: r.Field,
			Column:     r.Column.Name,
			Mapping:    mapping,
			ValueKind:  kind,
			ResolveURL: r.URLMapping,
			Fallback:   fallback,
		}, nil
	}
	return &CopyRule{
		RuleMeta:   meta,
		Candidates: r.Field,
		Column:     r.Column.Name,
		ResolveURL: r.URLMapping,
		Fallback:   fallback,
	}, nil
}

func compileInvestigationRule(meta RuleMeta, r *rawRule) (Rule, error) {
	if r.Subtable == "" {
		return nil, fmt.Errorf("%q: Investigation Subtable is required", r.Field)
	}
	if !isa.IsSection(r.Subtable) {
		return nil, fmt.Errorf("unknown Investigation Subtable %q", r.Subtable)
	}
	if len(r.Field) != 1 || r.Column.Name == "" {
		return nil, fmt.Errorf("investigation rules map one field to one column")
	}
	if r.MultipleValues || r.MultipleColumns || r.URLMapping || r.Remapping != nil {
		return nil, fmt.Errorf("%q: unsupported modifier for an investigation rule", r.Field[0])
	}
	if len(r.TrueIfIncludes) > 0 {
		targets := make([]string, len(r.TrueIfIncludes))
		for i, t := range r.TrueIfIncludes {
			targets[i] = strings.ToLower(strings.TrimSpace(t))
		}
		return &PresenceRule{RuleMeta: meta, Subtable: r.Subtable, Field: r.Field[0], Column: r.Column.Name, Targets: targets}, nil
	}
	return &InvestigationRule{RuleMeta: meta, Subtable: r.Subtable, Field: r.Field[0], Column: r.Column.Name}, nil
}

func compileSplitRule(meta RuleMeta, r *rawRule, fallback *Literal) (Rule, error) {
	if len(r.Column.Split) == 0 {
		return nil, fmt.Errorf("%q: split rules need a list of {index, name} columns", r.Field)
	}
	if r.Remapping != nil || fallback != nil {
		return nil, fmt.Errorf("%q: split rules cannot remap or fall back", r.Field)
	}
	rule := &SplitRule{
		RuleMeta:   meta,
		Candidates: r.Field,
		Columns:    r.Column.Split,
		ResolveURL: r.URLMapping,
	}
	switch {
	case r.MatchRegex != "" && r.Delimiter != nil:
		return nil, fmt.Errorf("%q: set either Match Regex or Multiple Values Delimiter", r.Field)
	case r.MatchRegex != "":
		re, err := regexp.Compile(r.MatchRegex)
		if err != nil {
			return nil, fmt.Errorf("Match Regex: %w", err)
		}
		rule.Pattern = re
	case r.Delimiter != nil && *r.Delimiter != "":
		rule.Delimiter = *r.Delimiter
		expr := rule.Delimiter
		if len([]rune(expr)) == 1 {
			expr = regexp.QuoteMeta(expr)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("Multiple Values Delimiter: %w", err)
		}
		rule.Separator = re
	default:
		return nil, fmt.Errorf("%q: split rules need Match Regex or Multiple Values Delimiter", r.Field)
	}

	seen := make(map[int]bool)
	for _, c := range rule.Columns {
		if c.Index < 0 || seen[c.Index] {
			return nil, fmt.Errorf("%q: split column index %d is negative or repeated", r.Field, c.Index)
		}
		seen[c.Index] = true
	}

	if r.ExtractReadSuffix != nil {
		rule.ExtractSuffix = *r.ExtractReadSuffix
	} else {
		rule.ExtractSuffix = rule.Columns[0].Name == suffixMarkerColumn
	}
	return rule, nil
}

func pickFallback(r *rawRule) (*Literal, error) {
	if r.ValueIfNotFound != nil && r.FallbackValue != nil {
		return nil, fmt.Errorf("%q: set either Value If Not Found or Fallback Value", r.Field)
	}
	if r.ValueIfNotFound != nil {
		return r.ValueIfNotFound, nil
	}
	return r.FallbackValue, nil
}

// compileMapping flattens remap literals. The column is bool only when every
// mapped value is a YAML boolean.
func compileMapping(raw map[string]*Literal) (map[string]string, frame.Kind, error) {
	if len(raw) == 0 {
		return nil, frame.String, fmt.Errorf("Remapping is empty")
	}
	out := make(map[string]string, len(raw))
	kind := frame.Bool
	for k, v := range raw {
		if v == nil {
			return nil, frame.String, fmt.Errorf("Remapping of %q has no value", k)
		}
		out[k] = v.Value
		if v.Kind != frame.Bool {
			kind = frame.String
		}
	}
	return out, kind, nil
}
