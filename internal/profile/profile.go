// Package profile loads assay profiles: the declarative configuration that
// selects assay tables and maps ISA fields to runsheet columns.
package profile

import (
	"fmt"
	"strconv"

	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/isa"
)

// Default option values.
const (
	DefaultGroupsSeparator = " & "
	DefaultAmpliconNaming  = "Library Selection"
	AmpliconName           = "amplicon"
	LatestVersion          = "Latest"
)

// Profile is a compiled assay profile.
type Profile struct {
	Name       string
	Version    string
	AssayTypes []isa.AssayType
	Rules      []Rule
	Options    Options
	Schema     *SchemaSpec // nil unless the profile carries its own schema
}

// Options tune post-processing and output naming.
type Options struct {
	// NamingColumn is matched case-insensitively as a substring of runsheet
	// column names to disambiguate outputs when several assays match.
	NamingColumn       string
	DeriveGroups       bool
	GroupsSeparator    string
	AssertFactorValues bool
}

// SchemaSpec is a runsheet schema declared inside a profile.
type SchemaSpec struct {
	Columns        []SchemaColumn `yaml:"Columns"`
	PairedEndCheck bool           `yaml:"Paired End Check"`
}

// SchemaColumn declares one runsheet column.
type SchemaColumn struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"` // "string" or "bool"
	Required    *bool  `yaml:"required"`
	SingleValue bool   `yaml:"single value"`
}

// IsRequired reports whether the column must exist; columns are required
// unless declared otherwise.
func (c SchemaColumn) IsRequired() bool {
	return c.Required == nil || *c.Required
}

// ColumnKind maps the declared type to a frame kind.
func (c SchemaColumn) ColumnKind() (frame.Kind, error) {
	switch c.Type {
	case "", "str", "string":
		return frame.String, nil
	case "bool", "boolean":
		return frame.Bool, nil
	}
	return frame.String, fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
}

// Provider supplies profiles by name and version.
type Provider interface {
	Profile(name, version string) (*Profile, error)
	Names() []string
}

// ID returns "name v<version>".
func (p *Profile) ID() string {
	return fmt.Sprintf("%s v%s", p.Name, p.Version)
}

// versionLess orders versions numerically when both parse as numbers.
func versionLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}
