package isa

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nishad/runsheet/internal/errors"
)

// File name prefixes of the ISA-Tab members.
const (
	InvestigationPrefix = "i_"
	SamplePrefix        = "s_"
	AssayPrefix         = "a_"
)

// Archive is an ISA-Tab zip extracted to a private temporary directory.
// The directory lives until Close; hold it with defer.
type Archive struct {
	source string
	dir    string
	files  []string // absolute paths, sorted
}

// OpenArchive extracts every member of the zip at path.
func OpenArchive(path string) (a *Archive, err error) {
	const op errors.Op = "isa.OpenArchive"

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to open ISA archive %s", path))
	}
	defer zr.Close()

	dir, err := os.MkdirTemp("", "runsheet-isa-*")
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, "failed to create extraction directory")
	}
	a = &Archive{source: path, dir: dir}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || skipMember(zf.Name) {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(zf.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return nil, errors.E(op, errors.KindIO, fmt.Sprintf("archive member %q escapes extraction directory", zf.Name))
		}
		if err := extractMember(zf, target); err != nil {
			return nil, errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to extract %s", zf.Name))
		}
		a.files = append(a.files, target)
	}
	sort.Strings(a.files)

	return a, nil
}

func skipMember(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, "._")
}

func extractMember(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Close removes the extraction directory.
func (a *Archive) Close() error {
	if a == nil || a.dir == "" {
		return nil
	}
	err := os.RemoveAll(a.dir)
	a.dir = ""
	a.files = nil
	return err
}

// Source returns the path of the zip the archive was opened from.
func (a *Archive) Source() string { return a.source }

// Files returns the extracted member paths.
func (a *Archive) Files() []string {
	out := make([]string, len(a.files))
	copy(out, a.files)
	return out
}

// Lookup resolves a member by base file name.
func (a *Archive) Lookup(name string) (string, bool) {
	for _, f := range a.files {
		if filepath.Base(f) == name {
			return f, true
		}
	}
	return "", false
}

func (a *Archive) withPrefix(prefix string) []string {
	var out []string
	for _, f := range a.files {
		if strings.HasPrefix(filepath.Base(f), prefix) {
			out = append(out, f)
		}
	}
	return out
}

func (a *Archive) exactlyOne(prefix, what string) (string, error) {
	matches := a.withPrefix(prefix)
	if len(matches) != 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return "", errors.E(errors.Op("isa.Archive"), errors.KindStructure,
			fmt.Sprintf("expected exactly one %s file (prefix %q) in %s, found %d: %v",
				what, prefix, filepath.Base(a.source), len(matches), names))
	}
	return matches[0], nil
}

// Investigation returns the single i_ member.
func (a *Archive) Investigation() (string, error) {
	return a.exactlyOne(InvestigationPrefix, "investigation")
}

// SampleTable returns the single s_ member.
func (a *Archive) SampleTable() (string, error) {
	return a.exactlyOne(SamplePrefix, "sample table")
}

// AssayTables returns every a_ member.
func (a *Archive) AssayTables() []string {
	return a.withPrefix(AssayPrefix)
}
