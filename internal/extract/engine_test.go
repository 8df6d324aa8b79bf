package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/isa"
	"github.com/nishad/runsheet/internal/profile"
	"github.com/nishad/runsheet/internal/testutil"
)

const profileHeader = `
NAME: test
VERSION: 1
ISA Meta:
  Valid Study Assay Technology And Measurement Types:
    - {measurement: transcription profiling, technology: RNA Sequencing (RNA-Seq)}
Staging:
  General:
    Required Metadata:
      From ISA:
`

func rules(t *testing.T, yaml string) []profile.Rule {
	t.Helper()
	p, err := profile.Parse([]byte(profileHeader + yaml))
	require.NoError(t, err)
	return p.Rules
}

func investigation(t *testing.T, protocols ...string) *isa.Investigation {
	t.Helper()
	inv, _, err := isa.ParseInvestigation([]byte(testutil.Investigation{
		Protocols: protocols,
		Assays: []testutil.StudyAssay{
			{FileName: "a_one.txt", Measurement: "transcription profiling", Technology: "RNA Sequencing (RNA-Seq)", Platform: "Illumina NovaSeq"},
			{FileName: "a_two.txt", Measurement: "transcription profiling", Technology: "RNA Sequencing (RNA-Seq)", Platform: "Illumina HiSeq"},
		},
	}.String()))
	require.NoError(t, err)
	return inv
}

func merged(t *testing.T, sample, assay testutil.TSV) *frame.Frame {
	t.Helper()
	s, err := isa.ParseTable("s.txt", []byte(sample.String()))
	require.NoError(t, err)
	a, err := isa.ParseTable("a.txt", []byte(assay.String()))
	require.NoError(t, err)
	f, _, err := isa.Merge(s, a)
	require.NoError(t, err)
	return f
}

func extract(t *testing.T, resolver URLResolver, in Input) (*Result, error) {
	t.Helper()
	if in.Investigation == nil {
		in.Investigation = investigation(t)
	}
	if in.Accession == "" {
		in.Accession = "OSD-1"
	}
	return NewEngine(resolver, nil).Extract(context.Background(), in)
}

func TestPresenceRule(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Study Protocol Type
          ISA Table Source: Investigation
          Investigation Subtable: STUDY PROTOCOLS
          Runsheet Column Name: has_ERCC
          True If Includes At Least One: [Spike-In Protocol, spike-in control]
`)
	m := merged(t, testutil.SampleTable("S1", "S2"), testutil.PairedEndAssay("S1", "S2"))

	for _, tt := range []struct {
		protocols []string
		want      string
	}{
		{[]string{"nucleic acid extraction", "  SPIKE-IN protocol "}, frame.True},
		{[]string{"nucleic acid extraction"}, frame.False},
	} {
		res, err := extract(t, nil, Input{Merged: m, Rules: rs, Investigation: investigation(t, tt.protocols...)})
		require.NoError(t, err)
		kind, _ := res.Runsheet.Kind("has_ERCC")
		assert.Equal(t, frame.Bool, kind)
		assert.Equal(t, []string{tt.want, tt.want}, res.Runsheet.Values("has_ERCC"))
	}
}

func TestInvestigationRuleUsesAssayRecord(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Study Assay Technology Platform
          ISA Table Source: Investigation
          Investigation Subtable: STUDY ASSAYS
          Runsheet Column Name: platform
`)
	m := merged(t, testutil.SampleTable("S1"), testutil.PairedEndAssay("S1"))

	res, err := extract(t, nil, Input{Merged: m, Rules: rs, AssayRecord: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Illumina HiSeq"}, res.Runsheet.Values("platform"))

	_, err = extract(t, nil, Input{Merged: m, Rules: rs, AssayRecord: 5})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindColumn))
}

func TestCopyWithCandidatesAndURLs(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: [Characteristics[organism], Characteristics[Organism]]
          ISA Table Source: Sample
          Runsheet Column Name: organism
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name: reads
          GLDS URL Mapping: true
`)
	assay := testutil.TSV{
		Header: []string{"Sample Name", "Raw Data File"},
		Rows:   [][]string{{"S1", "S1.fastq.gz"}, {"S2", "S2.fastq.gz"}},
	}
	m := merged(t, testutil.SampleTable("S1", "S2"), assay)
	resolver := &testutil.MockResolver{Prefix: "https://osdr.nasa.gov/geode-py/ws/studies/OSD-1/download?source=datamanager&file="}

	res, err := extract(t, resolver, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mus musculus", "Mus musculus"}, res.Runsheet.Values("organism"))
	assert.Equal(t, []string{resolver.Prefix + "S1.fastq.gz", resolver.Prefix + "S2.fastq.gz"}, res.Runsheet.Values("reads"))
	assert.Equal(t, []string{"S1.fastq.gz", "S2.fastq.gz"}, resolver.Calls())
}

func TestURLResolutionFailureNamesFile(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name: reads
          GLDS URL Mapping: true
`)
	assay := testutil.TSV{Header: []string{"Sample Name", "Raw Data File"}, Rows: [][]string{{"S1", "S1.fastq.gz"}}}
	m := merged(t, testutil.SampleTable("S1"), assay)

	_, err := extract(t, &testutil.MockResolver{URLs: map[string]string{}}, Input{Merged: m, Rules: rs})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindRemote))
	assert.Contains(t, err.Error(), "S1.fastq.gz")

	_, err = extract(t, nil, Input{Merged: m, Rules: rs})
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestDuplicatedHeaderUsesExactColumn(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name: reads
`)
	assay := testutil.TSV{
		Header: []string{"Sample Name", "Raw Data File", "Raw Data File"},
		Rows:   [][]string{{"S1", "S1_R1.fastq.gz", "S1_R2.fastq.gz"}},
	}
	m := merged(t, testutil.SampleTable("S1"), assay)
	require.True(t, m.Has("Raw Data File.1"))

	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1_R1.fastq.gz"}, res.Runsheet.Values("reads"))
}

func TestMissingColumn(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Characteristics[Strain]
          ISA Table Source: Sample
          Runsheet Column Name: strain
`)
	m := merged(t, testutil.SampleTable("S1"), testutil.PairedEndAssay("S1"))
	_, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindColumn))
	assert.Contains(t, err.Error(), "Characteristics[Strain]")
}

func TestFallbackValue(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: [Characteristics[Strain], Characteristics[strain]]
          ISA Table Source: Sample
          Runsheet Column Name: strain
          Fallback Value: C57BL/6J
        - ISA Field Name: Parameter Value[Spike-in]
          ISA Table Source: Assay
          Runsheet Column Name: spiked
          Value If Not Found: false
          Remapping: {yes: true}
`)
	m := merged(t, testutil.SampleTable("S1", "S2"), testutil.PairedEndAssay("S1", "S2"))
	core, logs := observer.New(zap.WarnLevel)

	res, err := NewEngine(nil, zap.New(core)).Extract(context.Background(), Input{
		Merged: m, Rules: rs, Investigation: investigation(t), Accession: "OSD-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"C57BL/6J", "C57BL/6J"}, res.Runsheet.Values("strain"))
	assert.Equal(t, []string{frame.False, frame.False}, res.Runsheet.Values("spiked"))
	kind, _ := res.Runsheet.Kind("spiked")
	assert.Equal(t, frame.Bool, kind)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, WarnFallbackValue, res.Warnings[0].Kind)
	assert.Equal(t, "strain", res.Warnings[0].Subject)
	assert.Equal(t, 2, logs.Len())
}

func TestRemap(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Parameter Value[Library Layout]
          ISA Table Source: Assay
          Runsheet Column Name: paired_end
          Remapping: {PAIRED: true, SINGLE: false}
`)
	assay := testutil.PairedEndAssay("S1", "S2")
	m := merged(t, testutil.SampleTable("S1", "S2"), assay)

	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Equal(t, []string{frame.True, frame.True}, res.Runsheet.Values("paired_end"))

	assay.Rows[1][1] = "MATE PAIR"
	m = merged(t, testutil.SampleTable("S1", "S2"), assay)
	_, err = extract(t, nil, Input{Merged: m, Rules: rs})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
	assert.Contains(t, err.Error(), "MATE PAIR")
}

const readRule = `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name:
            - {name: read1_path, index: 0}
            - {name: read2_path, index: 1, optional: true}
          Multiple Values Per Entry: true
          Multiple Values Delimiter: '\s*,\s*'
`

func readsAssay(cells ...string) testutil.TSV {
	t := testutil.TSV{Header: []string{"Sample Name", "Raw Data File"}}
	for i, c := range cells {
		t.Rows = append(t.Rows, []string{fmt.Sprintf("S%d", i+1), c})
	}
	return t
}

func TestSplitSwapsReadPairs(t *testing.T) {
	m := merged(t, testutil.SampleTable("S1", "S2", "S3"), readsAssay(
		"S1_R1_raw.fastq.gz, S1_R2_raw.fastq.gz",
		"S2_R2_raw.fastq.gz,S2_R1_raw.fastq.gz",
		"s3-r2.fq ,s3-r1.fq",
	))
	res, err := extract(t, nil, Input{Merged: m, Rules: rules(t, readRule)})
	require.NoError(t, err)

	assert.Equal(t, []string{"S1_R1_raw.fastq.gz", "S2_R1_raw.fastq.gz", "s3-r1.fq"}, res.Runsheet.Values("read1_path"))
	assert.Equal(t, []string{"S1_R2_raw.fastq.gz", "S2_R2_raw.fastq.gz", "s3-r2.fq"}, res.Runsheet.Values("read2_path"))
}

func TestSplitCaseInsensitiveSwap(t *testing.T) {
	m := merged(t, testutil.SampleTable("S1"), readsAssay("s1_r2.fq.gz, s1_r1.fq.gz"))
	res, err := extract(t, nil, Input{Merged: m, Rules: rules(t, readRule)})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1_r1.fq.gz"}, res.Runsheet.Values("read1_path"))
	assert.Equal(t, []string{"s1_r2.fq.gz"}, res.Runsheet.Values("read2_path"))
}

func TestSplitSingleEndOmitsOptionalColumn(t *testing.T) {
	m := merged(t, testutil.SampleTable("S1", "S2"), readsAssay("S1_raw.fastq.gz", "S2_raw.fastq.gz"))
	res, err := extract(t, nil, Input{Merged: m, Rules: rules(t, readRule)})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1_raw.fastq.gz", "S2_raw.fastq.gz"}, res.Runsheet.Values("read1_path"))
	assert.False(t, res.Runsheet.Has("read2_path"))
}

func TestSplitRequiredIndexMissing(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name:
            - {name: read1_path, index: 0}
            - {name: read2_path, index: 1}
          Multiple Values Per Entry: true
          Multiple Values Delimiter: ","
`)
	m := merged(t, testutil.SampleTable("S1"), readsAssay("S1_raw.fastq.gz"))
	_, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindColumn))
	assert.Contains(t, err.Error(), "read2_path")
}

func TestSplitByRegexMatches(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Parameter Value[Primer Info]
          ISA Table Source: Assay
          Runsheet Column Name:
            - {name: F_Primer, index: 0}
            - {name: R_Primer, index: 1, optional: true}
          Multiple Values Per Entry: true
          Match Regex: '[ACGTURYSWKMBDHVNI]{10,}'
`)
	assay := testutil.TSV{
		Header: []string{"Sample Name", "Parameter Value[Primer Info]"},
		Rows: [][]string{
			{"S1", "F: GTGCCAGCMGCCGCGGTAA, R: GGACTACHVGGGTWTCTAAT"},
			{"S2", "see protocol"},
		},
	}
	m := merged(t, testutil.SampleTable("S1", "S2"), assay)
	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Equal(t, []string{"GTGCCAGCMGCCGCGGTAA", "see protocol"}, res.Runsheet.Values("F_Primer"))
	assert.Equal(t, []string{"GGACTACHVGGGTWTCTAAT", "see protocol"}, res.Runsheet.Values("R_Primer"),
		"cells without a match keep the whole value in both parts")
}

func TestSplitRegexCaptureGroup(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Parameter Value[Primer Info]
          ISA Table Source: Assay
          Runsheet Column Name:
            - {name: F_Primer, index: 0}
            - {name: R_Primer, index: 1}
          Multiple Values Per Entry: true
          Match Regex: '(?:Forward|Reverse) ?: ?(?P<primer>[A-Z]+)'
`)
	assay := testutil.TSV{
		Header: []string{"Sample Name", "Parameter Value[Primer Info]"},
		Rows:   [][]string{{"S1", "Forward: AAAA; Reverse: CCCC"}},
	}
	m := merged(t, testutil.SampleTable("S1"), assay)
	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA"}, res.Runsheet.Values("F_Primer"))
	assert.Equal(t, []string{"CCCC"}, res.Runsheet.Values("R_Primer"))
}

func TestSplitExtractsSuffixes(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Raw Data File
          ISA Table Source: Assay
          Runsheet Column Name:
            - {name: raw_R1_suffix, index: 0}
            - {name: raw_R2_suffix, index: 1, optional: true}
          Multiple Values Per Entry: true
          Multiple Values Delimiter: '\s*,\s*'
`)
	m := merged(t, testutil.SampleTable("S1", "S2"), readsAssay(
		"S1_R2_raw.fastq.gz, S1_R1_raw.fastq.gz",
		"S2_R1_raw.fastq.gz, S2_R2_raw.fastq.gz",
	))
	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Equal(t, []string{"_R1_raw.fastq.gz", "_R1_raw.fastq.gz"}, res.Runsheet.Values("raw_R1_suffix"))
	assert.Equal(t, []string{"_R2_raw.fastq.gz", "_R2_raw.fastq.gz"}, res.Runsheet.Values("raw_R2_suffix"))

	m = merged(t, testutil.SampleTable("S1"), readsAssay("S1_R1_L001-R1-raw.fastq.gz"))
	_, err = extract(t, nil, Input{Merged: m, Rules: rs})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindSuffix))
	assert.Contains(t, err.Error(), "S1_R1_L001-R1-raw.fastq.gz")
}

func TestColumnScanAppendsUnits(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Factor Value[{factor_name}]
          ISA Table Source: [Assay, Sample]
          Matches Multiple Columns: true
          Match Regex: "Factor Value\\[.*\\]"
          Append Column Following: "Unit"
`)
	sample := testutil.TSV{
		Header: []string{"Sample Name", "Factor Value[Spaceflight]", "Factor Value[Dose]", "Comment[x]", "Unit", "Factor Value[Age]", "Characteristics[Sex]", "Unit"},
		Rows:   [][]string{{"S1", "Space Flight", "10", "c", "Gy", "8", "female", "week"}},
	}
	m := merged(t, sample, testutil.TSV{Header: []string{"Sample Name"}, Rows: [][]string{{"S1"}}})
	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)

	assert.Equal(t, []string{"Factor Value[Spaceflight]", "Factor Value[Dose]", "Factor Value[Age]"}, res.Runsheet.Columns())
	assert.Equal(t, []string{"Space Flight"}, res.Runsheet.Values("Factor Value[Spaceflight]"), "next owner column stops the scan")
	assert.Equal(t, []string{"10 Gy"}, res.Runsheet.Values("Factor Value[Dose]"))
	assert.Equal(t, []string{"8"}, res.Runsheet.Values("Factor Value[Age]"), "unit after another owner is not attributed")
}

func TestAutoloadFalseSkipped(t *testing.T) {
	rs := rules(t, `
        - ISA Field Name: Characteristics[Missing]
          ISA Table Source: Sample
          Runsheet Column Name: missing
          Autoload: false
        - ISA Field Name: Sample Name
          ISA Table Source: Assay
          Runsheet Column Name: sample_name
          Runsheet Index: true
`)
	m := merged(t, testutil.SampleTable("S1"), testutil.PairedEndAssay("S1"))
	res, err := extract(t, nil, Input{Merged: m, Rules: rs})
	require.NoError(t, err)
	assert.Empty(t, res.Runsheet.Columns())
	assert.Equal(t, []string{"S1"}, res.Runsheet.Index())
}

func TestExtractHonoursCancellation(t *testing.T) {
	m := merged(t, testutil.SampleTable("S1"), testutil.PairedEndAssay("S1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(nil, nil).Extract(ctx, Input{Merged: m, Rules: rules(t, readRule), Investigation: investigation(t)})
	assert.ErrorIs(t, err, context.Canceled)
}
