package testutil

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// StudyAssay is one STUDY ASSAYS record.
type StudyAssay struct {
	FileName    string
	Measurement string
	Technology  string
	Platform    string
}

// Investigation describes an investigation file fixture. Zero values render
// a minimal but complete file.
type Investigation struct {
	Identifier string
	Protocols  []string // Study Protocol Type, one record each
	Factors    []string // Study Factor Name, one record each
	Assays     []StudyAssay
	Omit       []string // section headers to leave out
}

type field struct {
	name   string
	values []string
}

// String renders the investigation in ISA-Tab layout: one field per row,
// one record per column, every value quoted.
func (inv Investigation) String() string {
	id := inv.Identifier
	if id == "" {
		id = "OSD-1"
	}
	protocols := inv.Protocols
	if len(protocols) == 0 {
		protocols = []string{"nucleic acid extraction"}
	}
	factors := inv.Factors
	if len(factors) == 0 {
		factors = []string{"Spaceflight"}
	}

	var measurement, technology, platform, files []string
	for _, a := range inv.Assays {
		measurement = append(measurement, a.Measurement)
		technology = append(technology, a.Technology)
		platform = append(platform, a.Platform)
		files = append(files, a.FileName)
	}
	protocolNames := make([]string, len(protocols))
	for i := range protocols {
		protocolNames[i] = fmt.Sprintf("protocol %d", i+1)
	}

	sections := []struct {
		header string
		fields []field
	}{
		{"ONTOLOGY SOURCE REFERENCE", []field{{"Term Source Name", []string{"OBI"}}}},
		{"INVESTIGATION", []field{{"Investigation Identifier", []string{id}}, {"Investigation Title", []string{"fixture"}}}},
		{"INVESTIGATION PUBLICATIONS", []field{{"Investigation PubMed ID", nil}}},
		{"INVESTIGATION CONTACTS", []field{{"Investigation Person Last Name", nil}}},
		{"STUDY", []field{{"Study Identifier", []string{id}}, {"Study File Name", []string{"s_fixture.txt"}}}},
		{"STUDY DESIGN DESCRIPTORS", []field{{"Study Design Type", []string{"spaceflight study"}}}},
		{"STUDY PUBLICATIONS", []field{{"Study PubMed ID", nil}}},
		{"STUDY FACTORS", []field{{"Study Factor Name", factors}}},
		{"STUDY ASSAYS", []field{
			{"Study Assay Measurement Type", measurement},
			{"Study Assay Technology Type", technology},
			{"Study Assay Technology Platform", platform},
			{"Study Assay File Name", files},
		}},
		{"STUDY PROTOCOLS", []field{{"Study Protocol Name", protocolNames}, {"Study Protocol Type", protocols}}},
		{"STUDY CONTACTS", []field{{"Study Person Last Name", []string{"Doe"}}}},
	}

	omit := make(map[string]bool, len(inv.Omit))
	for _, o := range inv.Omit {
		omit[o] = true
	}

	var b strings.Builder
	for _, s := range sections {
		if omit[s.header] {
			continue
		}
		b.WriteString(s.header)
		b.WriteString("\n")
		for _, f := range s.fields {
			b.WriteString(f.name)
			for _, v := range f.values {
				b.WriteString("\t\"")
				b.WriteString(v)
				b.WriteString("\"")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// TSV is a sample or assay table fixture.
type TSV struct {
	Header []string
	Rows   [][]string
}

// String renders the table tab-separated with a trailing newline.
func (t TSV) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Header, "\t"))
	b.WriteString("\n")
	for _, r := range t.Rows {
		b.WriteString(strings.Join(r, "\t"))
		b.WriteString("\n")
	}
	return b.String()
}

// WriteArchive zips files (member name to content) into dir/name and
// returns the archive path.
func WriteArchive(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer out.Close()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := zip.NewWriter(out)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("failed to add %s: %v", n, err)
		}
		if _, err := w.Write([]byte(files[n])); err != nil {
			t.Fatalf("failed to write %s: %v", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive: %v", err)
	}
	return path
}

// PairedEndAssay returns an RNA-Seq style assay table with paired reads for
// each sample.
func PairedEndAssay(samples ...string) TSV {
	t := TSV{Header: []string{
		"Sample Name",
		"Parameter Value[Library Layout]",
		"Parameter Value[Library Selection]",
		"Raw Data File",
	}}
	for _, s := range samples {
		base := strings.ReplaceAll(s, " ", "_")
		t.Rows = append(t.Rows, []string{
			s, "PAIRED", "RANDOM",
			fmt.Sprintf("%s_R1_raw.fastq.gz, %s_R2_raw.fastq.gz", base, base),
		})
	}
	return t
}

// SampleTable returns a sample table with organism and one spaceflight
// factor with a unit column.
func SampleTable(samples ...string) TSV {
	t := TSV{Header: []string{
		"Source Name",
		"Sample Name",
		"Characteristics[Organism]",
		"Factor Value[Spaceflight]",
		"Factor Value[Duration]",
		"Unit",
	}}
	for i, s := range samples {
		flight := "Space Flight"
		if i%2 == 1 {
			flight = "Ground Control"
		}
		t.Rows = append(t.Rows, []string{"src " + s, s, "Mus musculus", flight, "30", "day"})
	}
	return t
}
