// Package extract applies profile rules to a merged sample/assay table and
// produces the draft runsheet.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
	"github.com/nishad/runsheet/internal/isa"
	"github.com/nishad/runsheet/internal/profile"
)

// URLResolver maps a data file name of an accession to its download URL.
type URLResolver interface {
	ResolveFileURL(ctx context.Context, accession, filename string) (string, error)
}

// Owner column prefixes. A unit column belongs to the nearest owner to its left.
var ownerPrefixes = []string{"Parameter Value[", "Factor Value[", "Characteristics["}

// Engine executes extraction rules.
type Engine struct {
	resolver URLResolver
	logger   *zap.Logger
}

// NewEngine creates an engine. resolver may be nil when no rule maps URLs.
func NewEngine(resolver URLResolver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{resolver: resolver, logger: logger}
}

// Input is everything one extraction reads.
type Input struct {
	Merged        *frame.Frame
	Investigation *isa.Investigation
	Rules         []profile.Rule
	Accession     string
	AssayRecord   int // record of the assay in STUDY ASSAYS
}

// Result is a draft runsheet and the warnings recorded while building it.
type Result struct {
	Runsheet *frame.Frame
	Warnings []Warning
}

type run struct {
	*Engine
	ctx    context.Context
	in     Input
	out    *frame.Frame
	result *Result
}

// Extract runs investigation rules first, then assay and sample rules, each
// in profile order. Rules with Autoload off are skipped in the second pass.
func (e *Engine) Extract(ctx context.Context, in Input) (*Result, error) {
	const op errors.Op = "extract.Extract"

	out, err := frame.New(in.Merged.IndexName(), in.Merged.Index())
	if err != nil {
		return nil, errors.E(op, errors.KindStructure, err)
	}
	r := &run{Engine: e, ctx: ctx, in: in, out: out, result: &Result{Runsheet: out}}

	for _, rule := range in.Rules {
		if !isInvestigation(rule) {
			continue
		}
		if err := r.apply(rule); err != nil {
			return nil, errors.Wrap(op, err)
		}
	}
	for _, rule := range in.Rules {
		if isInvestigation(rule) || !rule.Meta().Autoload {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.E(op, err)
		}
		if err := r.apply(rule); err != nil {
			return nil, errors.Wrap(op, err)
		}
	}
	return r.result, nil
}

func isInvestigation(rule profile.Rule) bool {
	src := rule.Meta().Sources
	return len(src) > 0 && src[0] == profile.SourceInvestigation
}

func (r *run) apply(rule profile.Rule) error {
	r.logger.Debug("applying rule",
		zap.Int("position", rule.Meta().Position),
		zap.String("kind", rule.Kind()),
		zap.Strings("columns", profile.Columns(rule)))

	switch rule := rule.(type) {
	case *profile.PresenceRule:
		return r.presence(rule)
	case *profile.InvestigationRule:
		return r.investigationField(rule)
	case *profile.IndexRule:
		return nil
	case *profile.CopyRule:
		return r.copy(rule)
	case *profile.RemapRule:
		return r.remap(rule)
	case *profile.SplitRule:
		return r.split(rule)
	case *profile.ColumnScanRule:
		return r.scan(rule)
	default:
		return errors.E(errors.KindConfig, fmt.Sprintf("unsupported rule type %T", rule))
	}
}

func (r *run) subtable(name, field string) (*isa.Subtable, error) {
	st, ok := r.in.Investigation.Section(name)
	if !ok {
		return nil, errors.E(errors.KindStructure, fmt.Sprintf("investigation has no %s section", name))
	}
	if !st.HasField(field) {
		return nil, errors.E(errors.KindColumn, fmt.Sprintf("investigation section %s has no field %q, found %v", name, field, st.Fields))
	}
	return st, nil
}

func (r *run) presence(rule *profile.PresenceRule) error {
	st, err := r.subtable(rule.Subtable, rule.Field)
	if err != nil {
		return err
	}
	values, _ := st.Column(rule.Field)
	found := false
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		for _, t := range rule.Targets {
			if v == t {
				found = true
			}
		}
	}
	r.out.SetConstant(rule.Column, frame.Bool, frame.FormatBool(found))
	return nil
}

func (r *run) investigationField(rule *profile.InvestigationRule) error {
	st, err := r.subtable(rule.Subtable, rule.Field)
	if err != nil {
		return err
	}
	v, ok := st.Value(r.in.AssayRecord, rule.Field)
	if !ok {
		return errors.E(errors.KindColumn, fmt.Sprintf(
			"investigation section %s has %d record(s), assay record %d is out of range for %q",
			rule.Subtable, st.Len(), r.in.AssayRecord, rule.Field))
	}
	r.out.SetConstant(rule.Column, frame.String, v)
	return nil
}

// resolve finds the source column among candidates.
func (r *run) resolve(candidates []string) (string, error) {
	res := r.in.Merged.Resolve(candidates)
	switch res.Status {
	case frame.Found:
		return res.Column, nil
	case frame.Ambiguous:
		return "", errors.E(errors.KindColumn, fmt.Sprintf(
			"column %v is ambiguous in the sample and assay tables, candidates %v", candidates, res.Ambiguous))
	default:
		return "", errors.E(errors.KindColumn, fmt.Sprintf(
			"could not find required column %v in either ISA sample or assay table, found %v",
			candidates, r.in.Merged.Columns()))
	}
}

// fallback fills column with a configured literal after a failed lookup.
func (r *run) fallback(column string, lit *profile.Literal, cause error) {
	r.out.SetConstant(column, lit.Kind, lit.Value)
	r.logger.Warn("using configured fallback value",
		zap.String("column", column),
		zap.String("value", lit.Value),
		zap.Error(cause))
	r.result.Warnings = append(r.result.Warnings, Warning{
		Kind:    WarnFallbackValue,
		Subject: column,
		Message: fmt.Sprintf("%v; using configured fallback value %q", cause, lit.Value),
	})
}

func (r *run) source(candidates []string) (frame.Series, error) {
	col, err := r.resolve(candidates)
	if err != nil {
		return frame.Series{}, err
	}
	s, _ := r.in.Merged.Series(col)
	return s, nil
}

func (r *run) copy(rule *profile.CopyRule) error {
	s, err := r.source(rule.Candidates)
	if err != nil {
		if rule.Fallback != nil && errors.IsKind(err, errors.KindColumn) {
			r.fallback(rule.Column, rule.Fallback, err)
			return nil
		}
		return err
	}
	if rule.ResolveURL {
		if err := r.resolveURLs(s); err != nil {
			return err
		}
	}
	return r.set(rule.Column, s)
}

func (r *run) remap(rule *profile.RemapRule) error {
	s, err := r.source(rule.Candidates)
	if err != nil {
		if rule.Fallback != nil && errors.IsKind(err, errors.KindColumn) {
			r.fallback(rule.Column, rule.Fallback, err)
			return nil
		}
		return err
	}
	if rule.ResolveURL {
		if err := r.resolveURLs(s); err != nil {
			return err
		}
	}
	mapped := frame.NewSeries(rule.ValueKind)
	for _, k := range r.out.Index() {
		v := s.Values[k]
		m, ok := rule.Mapping[v]
		if !ok {
			keys := make([]string, 0, len(rule.Mapping))
			for key := range rule.Mapping {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			return errors.E(errors.KindConfig, fmt.Sprintf(
				"no remapping for value %q of sample %q in column %q, known values %v", v, k, rule.Column, keys))
		}
		mapped.Values[k] = m
	}
	return r.set(rule.Column, mapped)
}

func (r *run) split(rule *profile.SplitRule) error {
	col, err := r.resolve(rule.Candidates)
	if err != nil {
		return err
	}
	keys := r.in.Merged.Index()
	rows, width := splitColumn(rule, r.in.Merged.Values(col))

	for _, sc := range rule.Columns {
		if sc.Index >= width {
			if sc.Optional {
				continue
			}
			return errors.E(errors.KindColumn, fmt.Sprintf(
				"could not populate runsheet column %q from part %d of %q, cells have at most %d part(s)",
				sc.Name, sc.Index, col, width))
		}
		s := frame.NewSeries(frame.String)
		for i, k := range keys {
			s.Values[k] = rows[i][sc.Index]
		}
		if rule.ResolveURL {
			if err := r.resolveURLs(s); err != nil {
				return err
			}
		}
		if rule.ExtractSuffix {
			for _, k := range keys {
				v := s.Values[k]
				if v == "" {
					continue
				}
				suffix, err := ReadSuffix(v)
				if err != nil {
					return err
				}
				s.Values[k] = suffix
			}
		}
		if err := r.set(sc.Name, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) scan(rule *profile.ColumnScanRule) error {
	cols := r.in.Merged.Columns()
	for i, name := range cols {
		if !rule.Pattern.MatchString(name) {
			continue
		}
		s, _ := r.in.Merged.Series(name)
		if rule.AppendFollowing != "" {
			if unit, ok := followingUnit(cols[i+1:], rule.AppendFollowing); ok {
				units, _ := r.in.Merged.Series(unit)
				for k, v := range s.Values {
					if u := units.Values[k]; u != "" {
						s.Values[k] = v + " " + u
					}
				}
			}
		}
		if err := r.set(name, s); err != nil {
			return err
		}
	}
	return nil
}

// followingUnit returns the first column starting with prefix before the
// next owner column.
func followingUnit(cols []string, prefix string) (string, bool) {
	for _, c := range cols {
		for _, owner := range ownerPrefixes {
			if strings.HasPrefix(c, owner) {
				return "", false
			}
		}
		if strings.HasPrefix(c, prefix) {
			return c, true
		}
	}
	return "", false
}

func (r *run) resolveURLs(s frame.Series) error {
	if r.resolver == nil {
		return errors.E(errors.KindConfig, "a rule maps file URLs but no URL resolver is configured")
	}
	for _, k := range r.out.Index() {
		name := s.Values[k]
		if name == "" {
			continue
		}
		u, err := r.resolver.ResolveFileURL(r.ctx, r.in.Accession, name)
		if err != nil {
			return errors.E(errors.KindRemote, err, fmt.Sprintf("failed to resolve URL of %s for %s", name, r.in.Accession))
		}
		s.Values[k] = u
	}
	return nil
}

func (r *run) set(column string, s frame.Series) error {
	if err := r.out.Set(column, s); err != nil {
		return errors.E(errors.KindStructure, err)
	}
	return nil
}
