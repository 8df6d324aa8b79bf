package profile

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/nishad/runsheet/internal/errors"
)

//go:embed configs/*.yaml
var packaged embed.FS

var fileNamePattern = regexp.MustCompile(`^(.+)_v([^_]+)\.ya?ml$`)

// FSProvider serves profiles stored as "<name>_v<version>.yaml" files at the
// root of a file system.
type FSProvider struct {
	fsys  fs.FS
	files map[string]map[string]string // name -> version -> file
}

// NewFSProvider indexes the profile files of fsys.
func NewFSProvider(fsys fs.FS) (*FSProvider, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, errors.E(errors.Op("profile.NewFSProvider"), errors.KindIO, err, "failed to list profiles")
	}
	p := &FSProvider{fsys: fsys, files: make(map[string]map[string]string)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if p.files[m[1]] == nil {
			p.files[m[1]] = make(map[string]string)
		}
		p.files[m[1]][m[2]] = e.Name()
	}
	return p, nil
}

// Packaged returns the provider of the built-in profiles.
func Packaged() *FSProvider {
	sub, err := fs.Sub(packaged, "configs")
	if err != nil {
		panic(err)
	}
	p, err := NewFSProvider(sub)
	if err != nil {
		panic(err)
	}
	return p
}

// Directory serves profiles from a directory on disk.
func Directory(dir string) (*FSProvider, error) {
	return NewFSProvider(os.DirFS(dir))
}

// Names returns the available profile names, sorted.
func (p *FSProvider) Names() []string {
	out := make([]string, 0, len(p.files))
	for n := range p.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Versions returns the available versions of a profile, oldest first.
func (p *FSProvider) Versions(name string) []string {
	out := make([]string, 0, len(p.files[name]))
	for v := range p.files[name] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return versionLess(out[i], out[j]) })
	return out
}

// Profile loads a profile. Version "Latest" or "" selects the highest.
func (p *FSProvider) Profile(name, version string) (*Profile, error) {
	const op errors.Op = "profile.Profile"

	versions := p.Versions(name)
	if len(versions) == 0 {
		return nil, errors.E(op, errors.KindConfig,
			fmt.Sprintf("unknown profile %q, available: %s", name, strings.Join(p.Names(), ", ")))
	}
	if version == "" || version == LatestVersion {
		version = versions[len(versions)-1]
	}
	version = strings.TrimPrefix(version, "v")
	file, ok := p.files[name][version]
	if !ok {
		return nil, errors.E(op, errors.KindConfig,
			fmt.Sprintf("profile %q has no version %q, available: %s", name, version, strings.Join(versions, ", ")))
	}

	b, err := fs.ReadFile(p.fsys, file)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to read %s", file))
	}
	prof, err := Parse(b)
	if err != nil {
		return nil, errors.WrapMsg(op, path.Base(file), err)
	}
	if prof.Name != name || prof.Version != version {
		return nil, errors.E(op, errors.KindConfig,
			fmt.Sprintf("%s declares %s, expected %s v%s", file, prof.ID(), name, version))
	}
	return prof, nil
}

// FileProvider serves the single profile in a YAML file. Any requested name
// and version resolve to it.
type FileProvider struct {
	Path string
}

// Profile loads the file.
func (p FileProvider) Profile(name, version string) (*Profile, error) {
	const op errors.Op = "profile.FileProvider"

	b, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to read profile %s", p.Path))
	}
	prof, err := Parse(b)
	if err != nil {
		return nil, errors.WrapMsg(op, p.Path, err)
	}
	return prof, nil
}

// Names returns the file's profile name, if it parses.
func (p FileProvider) Names() []string {
	prof, err := p.Profile("", "")
	if err != nil {
		return nil
	}
	return []string{prof.Name}
}

// Chain consults providers in order; the first that knows a name serves it.
type Chain []Provider

// Profile implements Provider.
func (c Chain) Profile(name, version string) (*Profile, error) {
	for _, p := range c {
		for _, n := range p.Names() {
			if n == name {
				return p.Profile(name, version)
			}
		}
	}
	return nil, errors.E(errors.Op("profile.Chain"), errors.KindConfig,
		fmt.Sprintf("unknown profile %q, available: %s", name, strings.Join(c.Names(), ", ")))
}

// Names implements Provider.
func (c Chain) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c {
		for _, n := range p.Names() {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}
