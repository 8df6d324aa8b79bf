package profile

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/isa"
)

const header = `
NAME: custom
VERSION: 1
ISA Meta:
  Valid Study Assay Technology And Measurement Types:
    - measurement: transcription profiling
      technology: RNA Sequencing (RNA-Seq)
Staging:
  General:
    Required Metadata:
      From ISA:
`

func parseRules(t *testing.T, rules string) *Profile {
	t.Helper()
	p, err := Parse([]byte(header + rules))
	require.NoError(t, err)
	return p
}

func TestPackagedProfiles(t *testing.T) {
	p := Packaged()
	assert.Equal(t, []string{"amplicon", "bulkRNASeq", "metagenomics", "methylSeq"}, p.Names())

	for _, name := range p.Names() {
		t.Run(name, func(t *testing.T) {
			prof, err := p.Profile(name, LatestVersion)
			require.NoError(t, err)
			assert.Equal(t, name, prof.Name)
			assert.NotEmpty(t, prof.AssayTypes)
			assert.NotEmpty(t, prof.Rules)
		})
	}
}

func TestPackagedBulkRNASeqRules(t *testing.T) {
	prof, err := Packaged().Profile("bulkRNASeq", "3")
	require.NoError(t, err)

	assert.Equal(t, []isa.AssayType{{Measurement: "transcription profiling", Technology: "RNA Sequencing (RNA-Seq)"}}, prof.AssayTypes)
	assert.False(t, prof.Options.DeriveGroups)
	assert.Empty(t, prof.Options.NamingColumn)
	assert.True(t, prof.Options.AssertFactorValues)

	kinds := make([]string, len(prof.Rules))
	for i, r := range prof.Rules {
		kinds[i] = r.Kind()
	}
	assert.Equal(t, []string{
		"presence", "investigation", "investigation", "investigation",
		"index", "copy", "remap", "copy", "split", "column_scan",
	}, kinds)

	presence := prof.Rules[0].(*PresenceRule)
	assert.Contains(t, presence.Targets, "spike-in protocol")

	remap := prof.Rules[6].(*RemapRule)
	assert.Equal(t, frame.Bool, remap.ValueKind)
	assert.Equal(t, frame.True, remap.Mapping["PAIRED"])
	assert.Equal(t, frame.False, remap.Mapping["SINGLE"])

	stranded := prof.Rules[7].(*CopyRule)
	assert.False(t, stranded.Meta().Autoload)
	require.NotNil(t, stranded.Fallback)
	assert.Equal(t, "UNKNOWN", stranded.Fallback.Value)

	split := prof.Rules[8].(*SplitRule)
	assert.True(t, split.ResolveURL)
	assert.False(t, split.ExtractSuffix)
	assert.Equal(t, []SplitColumn{{Index: 0, Name: "read1_path"}, {Index: 1, Name: "read2_path", Optional: true}}, split.Columns)
	assert.Equal(t, []string{"a.fq", "b.fq"}, split.Separator.Split("a.fq ,  b.fq", -1))

	scan := prof.Rules[9].(*ColumnScanRule)
	assert.Equal(t, []Source{SourceAssay, SourceSample}, scan.Meta().Sources)
	assert.True(t, scan.Pattern.MatchString("Factor Value[Spaceflight]"))
	assert.False(t, scan.Pattern.MatchString("Comment[Factor Value[x]]"), "pattern is anchored")
}

func TestPackagedAmpliconOptions(t *testing.T) {
	prof, err := Packaged().Profile("amplicon", "")
	require.NoError(t, err)
	assert.Equal(t, "Library Selection", prof.Options.NamingColumn)
	assert.True(t, prof.Options.DeriveGroups)
	assert.Equal(t, " & ", prof.Options.GroupsSeparator)

	var suffix, primers *SplitRule
	for _, r := range prof.Rules {
		if s, ok := r.(*SplitRule); ok {
			switch s.Columns[0].Name {
			case "raw_R1_suffix":
				suffix = s
			case "F_Primer":
				primers = s
			}
		}
	}
	require.NotNil(t, suffix)
	require.NotNil(t, primers)
	assert.True(t, suffix.ExtractSuffix)
	assert.False(t, suffix.ResolveURL)
	assert.NotNil(t, primers.Pattern)
	assert.Nil(t, primers.Separator)
}

func TestProfileVersionSelection(t *testing.T) {
	doc := func(v string) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte(
			"NAME: demo\nVERSION: \"" + v + "\"\n" +
				"ISA Meta:\n  Valid Study Assay Technology And Measurement Types:\n    - {measurement: m, technology: t}\n")}
	}
	fsys := fstest.MapFS{
		"demo_v2.yaml":  doc("2"),
		"demo_v10.yaml": doc("10"),
		"demo_v9.yaml":  doc("9"),
		"README.md":     &fstest.MapFile{Data: []byte("ignored")},
		"bad_v1.yaml":   doc("1"),
	}
	p, err := NewFSProvider(fsys)
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "9", "10"}, p.Versions("demo"))

	latest, err := p.Profile("demo", LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, "10", latest.Version)

	v9, err := p.Profile("demo", "v9")
	require.NoError(t, err)
	assert.Equal(t, "9", v9.Version)

	_, err = p.Profile("demo", "3")
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = p.Profile("missing", "")
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = p.Profile("bad", "1")
	require.Error(t, err, "file name and NAME disagree")
	assert.Contains(t, err.Error(), "demo v1")
}

func TestFileProviderAndChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(header+`
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name: read1_path
Runsheet Schema:
  Columns:
    - {name: read1_path, type: string}
    - {name: paired_end, type: bool, required: false, single value: true}
  Paired End Check: false
`), 0644))

	fp := FileProvider{Path: path}
	assert.Equal(t, []string{"custom"}, fp.Names())

	chain := Chain{fp, Packaged()}
	assert.Contains(t, chain.Names(), "custom")
	assert.Contains(t, chain.Names(), "bulkRNASeq")

	prof, err := chain.Profile("custom", LatestVersion)
	require.NoError(t, err)
	require.NotNil(t, prof.Schema)
	assert.Len(t, prof.Schema.Columns, 2)
	assert.True(t, prof.Schema.Columns[0].IsRequired())
	assert.False(t, prof.Schema.Columns[1].IsRequired())

	_, err = chain.Profile("nope", "")
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestRuleCompilationErrors(t *testing.T) {
	tests := []struct {
		name  string
		rules string
	}{
		{"unknown source", `
        - ISA Field Name: x
          ISA Table Source: Protocol
          Runsheet Column Name: x`},
		{"split without delimiter", `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Multiple Values Per Entry: true
          Runsheet Column Name: [{name: a, index: 0}]`},
		{"split with single column name", `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Multiple Values Per Entry: true
          Multiple Values Delimiter: ","
          Runsheet Column Name: a`},
		{"split with remap", `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Multiple Values Per Entry: true
          Multiple Values Delimiter: ","
          Runsheet Column Name: [{name: a, index: 0}]
          Remapping: {x: y}`},
		{"repeated split index", `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Multiple Values Per Entry: true
          Multiple Values Delimiter: ","
          Runsheet Column Name: [{name: a, index: 0}, {name: b, index: 0}]`},
		{"regex without mode", `
        - ISA Field Name: x
          ISA Table Source: Sample
          Match Regex: "x"
          Runsheet Column Name: x`},
		{"bad regex", `
        - ISA Field Name: x
          ISA Table Source: Sample
          Matches Multiple Columns: true
          Match Regex: "Factor Value[("`},
		{"both fallbacks", `
        - ISA Field Name: x
          ISA Table Source: Sample
          Runsheet Column Name: x
          Fallback Value: a
          Value If Not Found: b`},
		{"investigation without subtable", `
        - ISA Field Name: Study Protocol Type
          ISA Table Source: Investigation
          Runsheet Column Name: x`},
		{"unknown subtable", `
        - ISA Field Name: Study Protocol Type
          ISA Table Source: Investigation
          Investigation Subtable: PROTOCOLS
          Runsheet Column Name: x`},
		{"presence on assay", `
        - ISA Field Name: x
          ISA Table Source: Assay
          Runsheet Column Name: x
          True If Includes At Least One: [a]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(header + tt.rules))
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindConfig), err.Error())
		})
	}
}

func TestDelimiterSemantics(t *testing.T) {
	p := parseRules(t, `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Multiple Values Per Entry: true
          Multiple Values Delimiter: "."
          Runsheet Column Name: [{name: a, index: 0}, {name: b, index: 1}]
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Multiple Values Per Entry: true
          Multiple Values Delimiter: "[;|]"
          Extract Read Suffix: false
          Runsheet Column Name: [{name: raw_R1_suffix, index: 0}]
`)
	literal := p.Rules[0].(*SplitRule)
	assert.Equal(t, []string{"a", "b", "c"}, literal.Separator.Split("a.b.c", -1), "one character is literal")

	re := p.Rules[1].(*SplitRule)
	assert.Equal(t, []string{"a", "b", "c"}, re.Separator.Split("a;b|c", -1))
	assert.False(t, re.ExtractSuffix, "explicit flag wins over the column name")
}

func TestLiteralKinds(t *testing.T) {
	p := parseRules(t, `
        - ISA Field Name: x
          ISA Table Source: Sample
          Runsheet Column Name: flag
          Fallback Value: false
        - ISA Field Name: y
          ISA Table Source: Sample
          Runsheet Column Name: label
          Value If Not Found: "false"
        - ISA Field Name: z
          ISA Table Source: Sample
          Runsheet Column Name: mixed
          Remapping: {a: true, b: "no"}
`)
	assert.Equal(t, &Literal{Value: frame.False, Kind: frame.Bool}, p.Rules[0].(*CopyRule).Fallback)
	assert.Equal(t, &Literal{Value: "false", Kind: frame.String}, p.Rules[1].(*CopyRule).Fallback)
	mixed := p.Rules[2].(*RemapRule)
	assert.Equal(t, frame.String, mixed.ValueKind)
	assert.Equal(t, "True", mixed.Mapping["a"])
}

func TestColumns(t *testing.T) {
	prof, err := Packaged().Profile("bulkRNASeq", LatestVersion)
	require.NoError(t, err)
	var all []string
	for _, r := range prof.Rules {
		all = append(all, Columns(r)...)
	}
	assert.Contains(t, all, "has_ERCC")
	assert.Contains(t, all, "read2_path")
	assert.NotContains(t, all, "sample_name")
}
