// Package frame provides the keyed, column-ordered table used for merged
// sample/assay rows and for runsheets. Rows are identified by a unique key
// (the sample identifier); columns are only ever assigned from series keyed
// the same way, so row identity never depends on positional alignment.
package frame

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind is the value type of a column.
type Kind uint8

const (
	String Kind = iota
	Bool
)

// String returns the name of the kind.
func (k Kind) String() string {
	if k == Bool {
		return "bool"
	}
	return "string"
}

// Boolean cell values as written to runsheets.
const (
	True  = "True"
	False = "False"
)

// FormatBool renders a boolean cell.
func FormatBool(b bool) string {
	if b {
		return True
	}
	return False
}

// ParseBool reads a boolean cell, accepting any letter case.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Series is a column detached from a frame, keyed by row key.
type Series struct {
	Kind   Kind
	Values map[string]string
}

// NewSeries creates an empty series of the given kind.
func NewSeries(kind Kind) Series {
	return Series{Kind: kind, Values: make(map[string]string)}
}

type column struct {
	kind   Kind
	values []string // aligned with Frame.index
}

// Frame is an ordered collection of named columns over a unique row index.
type Frame struct {
	indexName string
	index     []string
	pos       map[string]int
	order     []string
	cols      map[string]*column
}

// New creates an empty frame over the given row keys. Keys must be unique.
func New(indexName string, keys []string) (*Frame, error) {
	f := &Frame{
		indexName: indexName,
		index:     make([]string, len(keys)),
		pos:       make(map[string]int, len(keys)),
		cols:      make(map[string]*column),
	}
	for i, k := range keys {
		if _, dup := f.pos[k]; dup {
			return nil, fmt.Errorf("duplicate row key %q", k)
		}
		f.index[i] = k
		f.pos[k] = i
	}
	return f, nil
}

// IndexName returns the label of the row index.
func (f *Frame) IndexName() string { return f.indexName }

// Index returns a copy of the row keys in order.
func (f *Frame) Index() []string {
	out := make([]string, len(f.index))
	copy(out, f.index)
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Kind returns the kind of a column.
func (f *Frame) Kind(name string) (Kind, bool) {
	c, ok := f.cols[name]
	if !ok {
		return String, false
	}
	return c.kind, true
}

// Get returns one cell.
func (f *Frame) Get(key, name string) (string, bool) {
	c, ok := f.cols[name]
	if !ok {
		return "", false
	}
	i, ok := f.pos[key]
	if !ok {
		return "", false
	}
	return c.values[i], true
}

// Values returns a column's cells in row order.
func (f *Frame) Values(name string) []string {
	c, ok := f.cols[name]
	if !ok {
		return nil
	}
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Series returns a column as a keyed series.
func (f *Frame) Series(name string) (Series, bool) {
	c, ok := f.cols[name]
	if !ok {
		return Series{}, false
	}
	s := Series{Kind: c.kind, Values: make(map[string]string, len(f.index))}
	for i, k := range f.index {
		s.Values[k] = c.values[i]
	}
	return s, true
}

// Set assigns a column from a series. The series' key set must equal the
// frame's index exactly. An existing column keeps its position.
func (f *Frame) Set(name string, s Series) error {
	if err := f.checkKeys(s.Values); err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	values := make([]string, len(f.index))
	for i, k := range f.index {
		values[i] = s.Values[k]
	}
	f.put(name, &column{kind: s.Kind, values: values})
	return nil
}

// SetConstant fills a column with one value for every row.
func (f *Frame) SetConstant(name string, kind Kind, value string) {
	values := make([]string, len(f.index))
	for i := range values {
		values[i] = value
	}
	f.put(name, &column{kind: kind, values: values})
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *Frame) put(name string, c *column) {
	if _, exists := f.cols[name]; !exists {
		f.order = append(f.order, name)
	}
	f.cols[name] = c
}

func (f *Frame) checkKeys(values map[string]string) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("series has %d rows, frame has %d", len(values), len(f.index))
	}
	var missing []string
	for _, k := range f.index {
		if _, ok := values[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("series is missing row keys %v", missing)
	}
	return nil
}

// Reindex returns a copy of the frame with every row key passed through fn.
// Renamed keys must stay unique.
func (f *Frame) Reindex(fn func(string) string) (*Frame, error) {
	keys := make([]string, len(f.index))
	for i, k := range f.index {
		keys[i] = fn(k)
	}
	out, err := New(f.indexName, keys)
	if err != nil {
		return nil, fmt.Errorf("reindex: %w", err)
	}
	for _, name := range f.order {
		c := f.cols[name]
		values := make([]string, len(c.values))
		copy(values, c.values)
		out.put(name, &column{kind: c.kind, values: values})
	}
	return out, nil
}

// ResolveStatus is the outcome of a candidate column lookup.
type ResolveStatus uint8

const (
	Absent ResolveStatus = iota
	Found
	Ambiguous
)

// Resolution reports which column, if any, a candidate list resolved to.
type Resolution struct {
	Status    ResolveStatus
	Column    string
	Ambiguous []string // Columns that tied for the last ambiguous candidate
}

var mangleSuffix = regexp.MustCompile(`\.\d+$`)

// Resolve walks candidates in order and returns the first one found among
// the columns. An exact name wins. Otherwise the renamed copies of a
// duplicated header ("Name.1", "Name.2") are considered, and more than one
// copy makes the candidate ambiguous so the walk continues.
func (f *Frame) Resolve(candidates []string) Resolution {
	var res Resolution
	for _, cand := range candidates {
		if _, ok := f.cols[cand]; ok {
			return Resolution{Status: Found, Column: cand}
		}
		var hits []string
		for _, name := range f.order {
			if mangleSuffix.MatchString(name) && mangleSuffix.ReplaceAllString(name, "") == cand {
				hits = append(hits, name)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return Resolution{Status: Found, Column: hits[0]}
		default:
			res = Resolution{Status: Ambiguous, Ambiguous: hits}
		}
	}
	return res
}

// DistinctValues returns the sorted distinct values of a column.
func (f *Frame) DistinctValues(name string) []string {
	c, ok := f.cols[name]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	for _, v := range c.values {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
