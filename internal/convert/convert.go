// Package convert turns an ISA-Tab archive into one runsheet per matching
// assay table.
package convert

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/extract"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/isa"
	"github.com/nishad/runsheet/internal/profile"
	"github.com/nishad/runsheet/internal/schema"
	"github.com/nishad/runsheet/internal/writer"
)

const ampliconNotice = "datasets annotated before 2022 may not convert as intended with the amplicon profile"

// Request describes one conversion.
type Request struct {
	Accession      string
	ArchivePath    string
	Profile        string
	ProfileVersion string // empty means latest
	ProfileFile    string // custom profile YAML, overrides Profile
	Injections     []extract.Injection

	// AssertFactorValues overrides the profile option when set.
	AssertFactorValues *bool
}

// Deps are the collaborators of a conversion. Nil fields take defaults:
// packaged profiles, built-in schemas, a no-op logger. A nil Resolver fails
// rules that map file URLs; a nil Sink skips writing.
type Deps struct {
	Profiles profile.Provider
	Schemas  schema.Provider
	Resolver extract.URLResolver
	Sink     writer.Sink
	Logger   *zap.Logger
}

// Runsheet is one finished runsheet.
type Runsheet struct {
	AssayFile  string         `json:"assay_file"`
	AssayType  isa.AssayType  `json:"assay_type"`
	FileName   string         `json:"file_name"`
	Location   string         `json:"location,omitempty"`
	Rows       int            `json:"rows"`
	Columns    []string       `json:"columns"`
	Validation *schema.Result `json:"validation"`
	Frame      *frame.Frame   `json:"-"`
}

// Result is the outcome of a successful conversion.
type Result struct {
	Accession string            `json:"accession"`
	Profile   string            `json:"profile"`
	Encoding  isa.Encoding      `json:"encoding"`
	Runsheets []Runsheet        `json:"runsheets"`
	Warnings  []extract.Warning `json:"warnings,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

type conversion struct {
	req    Request
	deps   Deps
	logger *zap.Logger
	prof   *profile.Profile
	result *Result
}

// Run executes a conversion. Assay tables are processed one after another,
// each written before the next starts; the first error aborts the run.
func Run(ctx context.Context, req Request, deps Deps) (*Result, error) {
	const op errors.Op = "convert.Run"
	start := time.Now()

	if req.Accession == "" {
		return nil, errors.E(op, errors.KindConfig, "accession is required")
	}
	if req.ArchivePath == "" {
		return nil, errors.E(op, errors.KindConfig, "ISA archive path is required")
	}
	if deps.Profiles == nil {
		deps.Profiles = profile.Packaged()
	}
	if deps.Schemas == nil {
		deps.Schemas = schema.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	prof, err := loadProfile(req, deps.Profiles)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	c := &conversion{
		req:    req,
		deps:   deps,
		logger: deps.Logger.With(zap.String("accession", req.Accession), zap.String("profile", prof.ID())),
		prof:   prof,
		result: &Result{Accession: req.Accession, Profile: prof.ID()},
	}
	if err := c.run(ctx); err != nil {
		return nil, errors.Wrap(op, err)
	}
	c.result.Duration = time.Since(start)
	c.logger.Info("conversion finished",
		zap.Int("runsheets", len(c.result.Runsheets)),
		zap.Int("warnings", len(c.result.Warnings)),
		zap.Duration("duration", c.result.Duration))
	return c.result, nil
}

func loadProfile(req Request, provider profile.Provider) (*profile.Profile, error) {
	if req.ProfileFile != "" {
		return profile.FileProvider{Path: req.ProfileFile}.Profile(req.Profile, req.ProfileVersion)
	}
	if req.Profile == "" {
		return nil, errors.E(errors.KindConfig, "a profile name or profile file is required")
	}
	return provider.Profile(req.Profile, req.ProfileVersion)
}

func (c *conversion) warn(kind extract.WarningKind, subject, msg string) {
	c.logger.Warn(msg, zap.String("kind", string(kind)), zap.String("subject", subject))
	c.result.Warnings = append(c.result.Warnings, extract.Warning{Kind: kind, Subject: subject, Message: msg})
}

// recordingMembers remembers listed assay files the archive lacks.
type recordingMembers struct {
	isa.Members
	missing []string
}

func (m *recordingMembers) Lookup(name string) (string, bool) {
	p, ok := m.Members.Lookup(name)
	if !ok {
		m.missing = append(m.missing, name)
	}
	return p, ok
}

func (c *conversion) run(ctx context.Context) error {
	if c.prof.Name == profile.AmpliconName {
		c.warn(extract.WarnProfileNotice, c.prof.Name, ampliconNotice)
	}

	archive, err := isa.OpenArchive(c.req.ArchivePath)
	if err != nil {
		return err
	}
	defer archive.Close()
	c.logger.Debug("extracted ISA archive", zap.Strings("files", archive.Files()))

	invPath, err := archive.Investigation()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(invPath)
	if err != nil {
		return errors.E(errors.KindIO, err)
	}
	inv, enc, err := isa.ParseInvestigation(b)
	if err != nil {
		return err
	}
	c.result.Encoding = enc
	if enc != isa.UTF8 {
		c.warn(extract.WarnEncodingFallback, "investigation", fmt.Sprintf("investigation file is not UTF-8, decoded as %s", enc))
	}

	members := &recordingMembers{Members: archive}
	matches, err := isa.LocateAssays(inv, c.prof.AssayTypes, members, c.logger)
	if err != nil {
		return err
	}
	for _, name := range members.missing {
		c.warn(extract.WarnMissingAssayFile, name, "assay table listed in the investigation is missing from the archive")
	}

	samplePath, err := archive.SampleTable()
	if err != nil {
		return err
	}
	sample, err := isa.ReadTable(samplePath)
	if err != nil {
		return err
	}
	if sample.Encoding != isa.UTF8 {
		c.warn(extract.WarnEncodingFallback, sample.Name, fmt.Sprintf("sample table is not UTF-8, decoded as %s", sample.Encoding))
	}

	engine := extract.NewEngine(c.deps.Resolver, c.logger)
	namer := writer.NewNamer()
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return errors.E(err)
		}
		rs, err := c.convertAssay(ctx, engine, namer, sample, inv, m, len(matches) > 1)
		if err != nil {
			return errors.WrapMsg(errors.Op("convert.assay"), m.Name, err)
		}
		c.result.Runsheets = append(c.result.Runsheets, *rs)
	}
	return nil
}

func (c *conversion) convertAssay(ctx context.Context, engine *extract.Engine, namer *writer.Namer,
	sample *isa.Table, inv *isa.Investigation, m isa.AssayMatch, multiple bool) (*Runsheet, error) {

	logger := c.logger.With(zap.String("assay", m.Name))
	logger.Info("converting assay table", zap.Stringer("assay_type", m.Type))

	assay, err := isa.ReadTable(m.Path)
	if err != nil {
		return nil, err
	}
	if assay.Encoding != isa.UTF8 {
		c.warn(extract.WarnEncodingFallback, assay.Name, fmt.Sprintf("assay table is not UTF-8, decoded as %s", assay.Encoding))
	}

	merged, report, err := isa.Merge(sample, assay)
	if err != nil {
		return nil, err
	}
	if report.Dropped() {
		c.warn(extract.WarnDroppedSamples, m.Name, fmt.Sprintf(
			"samples not in both tables were dropped: sample table only %v, assay table only %v",
			report.SampleOnly, report.AssayOnly))
	}

	draft, err := engine.Extract(ctx, extract.Input{
		Merged:        merged,
		Investigation: inv,
		Rules:         c.prof.Rules,
		Accession:     c.req.Accession,
		AssayRecord:   m.Record,
	})
	if err != nil {
		return nil, err
	}
	c.result.Warnings = append(c.result.Warnings, draft.Warnings...)

	out, err := extract.PostProcess(draft.Runsheet, extract.PostOptions{
		Injections:      c.req.Injections,
		DeriveGroups:    c.prof.Options.DeriveGroups,
		GroupsSeparator: c.prof.Options.GroupsSeparator,
	}, logger)
	if err != nil {
		return nil, err
	}
	if renamed := renamedSamples(out); len(renamed) > 0 {
		c.warn(extract.WarnRenamedSamples, m.Name, fmt.Sprintf(
			"whitespace in sample names replaced with underscores: %s", strings.Join(renamed, ", ")))
	}

	sch, err := schema.ForProfile(c.deps.Schemas, c.prof)
	if err != nil {
		return nil, err
	}
	assertFactors := c.prof.Options.AssertFactorValues
	if c.req.AssertFactorValues != nil {
		assertFactors = *c.req.AssertFactorValues
	}
	validation, err := schema.Validate(sch, out, schema.Options{AssertFactorValues: assertFactors})
	if err != nil {
		return nil, err
	}

	parts := writer.NameParts{
		Accession: c.req.Accession,
		Profile:   c.prof.Name,
		Version:   c.prof.Version,
		Multiple:  multiple,
		AssayFile: m.Name,
	}
	if multiple {
		term := c.prof.Options.NamingColumn
		d := writer.Disambiguate(out, term, c.prof.Name)
		if d.Inconsistent(term) {
			c.warn(extract.WarnNamingColumn, m.Name, fmt.Sprintf("inconsistent naming column %q, expected %q", d.Column, term))
		}
		parts.Disambiguator = d.Value
	}
	name := writer.FileName(parts)
	if err := namer.Reserve(name, m.Name); err != nil {
		return nil, err
	}

	rs := &Runsheet{
		AssayFile:  m.Name,
		AssayType:  m.Type,
		FileName:   name,
		Rows:       out.Len(),
		Columns:    append([]string{out.IndexName()}, out.Columns()...),
		Validation: validation,
		Frame:      out,
	}
	if c.deps.Sink == nil {
		return rs, nil
	}

	data, err := writer.EncodeCSV(out)
	if err != nil {
		return nil, err
	}
	logger.Info("writing runsheet",
		zap.String("file", name), zap.Int("rows", rs.Rows), zap.Int("columns", len(rs.Columns)))
	if rs.Location, err = c.deps.Sink.Write(ctx, name, data); err != nil {
		return nil, err
	}
	return rs, nil
}

func renamedSamples(f *frame.Frame) []string {
	var out []string
	for _, k := range f.Index() {
		if orig, _ := f.Get(k, extract.OriginalSampleColumn); orig != k {
			out = append(out, orig)
		}
	}
	return out
}
