// Package writer names, encodes and stores finished runsheets.
package writer

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
)

// NameParts are the pieces of a runsheet filename.
type NameParts struct {
	Accession string
	Profile   string
	Version   string

	// Set only when one archive yields several runsheets.
	Multiple      bool
	AssayFile     string
	Disambiguator string
}

// FileName builds the output filename:
//
//	{accession}_{profile}_v{version}_runsheet.csv
//	{accession}{_DISAMBIGUATOR}_{assay}_{profile}_v{version}_runsheet.csv
func FileName(p NameParts) string {
	if !p.Multiple {
		return fmt.Sprintf("%s_%s_v%s_runsheet.csv", p.Accession, p.Profile, p.Version)
	}
	assay := filepath.Base(p.AssayFile)
	assay = strings.TrimSuffix(assay, filepath.Ext(assay))
	var dis string
	if p.Disambiguator != "" {
		dis = "_" + p.Disambiguator
	}
	return fmt.Sprintf("%s%s_%s_%s_v%s_runsheet.csv", p.Accession, dis, assay, p.Profile, p.Version)
}

// Disambiguation is the outcome of looking up the naming column.
type Disambiguation struct {
	Value  string
	Column string // matched runsheet column, empty when none matched
}

// Inconsistent reports whether the matched column spells the naming term
// differently than configured.
func (d Disambiguation) Inconsistent(term string) bool {
	return d.Column != "" && !strings.Contains(d.Column, term)
}

// Disambiguate derives the filename disambiguator from the first runsheet
// column whose name contains term, ignoring case. The first row's value is
// trimmed, upper-cased and has spaces and path separators replaced with "_".
// An empty value or a missing column yields the profile name. An empty term
// yields nothing.
func Disambiguate(f *frame.Frame, term, profileName string) Disambiguation {
	if term == "" {
		return Disambiguation{}
	}
	lower := strings.ToLower(term)
	for _, c := range f.Columns() {
		if !strings.Contains(strings.ToLower(c), lower) {
			continue
		}
		d := Disambiguation{Value: profileName, Column: c}
		if keys := f.Index(); len(keys) > 0 {
			v, _ := f.Get(keys[0], c)
			if v = strings.TrimSpace(v); v != "" {
				d.Value = strings.ToUpper(slugReplacer.Replace(v))
			}
		}
		return d
	}
	return Disambiguation{Value: profileName}
}

var slugReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// Namer hands out filenames for one conversion run and rejects repeats.
type Namer struct {
	mu   sync.Mutex
	used map[string]string
}

// NewNamer creates an empty namer.
func NewNamer() *Namer {
	return &Namer{used: make(map[string]string)}
}

// Reserve claims name for the runsheet of assay.
func (n *Namer) Reserve(name, assay string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if prev, ok := n.used[name]; ok {
		return errors.E(errors.Op("writer.Reserve"), errors.KindStructure, fmt.Sprintf(
			"runsheets for %s and %s would both be written to %s", prev, assay, name))
	}
	n.used[name] = assay
	return nil
}
