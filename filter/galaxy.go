package filter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/mapping"
)

// Entry is one compiled Galaxy tag constraint: a key with its accepted
// values, or a universal match accepting any value.
type Entry struct {
	Key       string
	Values    []string
	Universal bool
}

// TagFilter maps tag keys to accepted values. An empty, non-nil value
// list is the universal match. The universal match is sticky: once a key
// is universal, narrower values seen later are dropped, and a universal
// match seen after narrower values wipes them.
type TagFilter map[string][]string

// Update applies one entry to the filter, with the absorption rule
// above.
func (f TagFilter) Update(e Entry) {
	cur, ok := f[e.Key]
	if ok && len(cur) == 0 {
		return
	}
	if e.Universal {
		f[e.Key] = []string{}
		return
	}
	f[e.Key] = append(cur, e.Values...)
}

// dedupe removes repeated values, keeping the first occurrence.
func (f TagFilter) dedupe() {
	for key, vals := range f {
		if len(vals) < 2 {
			continue
		}
		seen := make(map[string]struct{}, len(vals))
		kept := vals[:0]
		for _, v := range vals {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			kept = append(kept, v)
		}
		f[key] = kept
	}
}

// Equal reports whether both filters accept the same keys and values.
func (f TagFilter) Equal(other TagFilter) bool {
	if len(f) != len(other) {
		return false
	}
	for key, vals := range f {
		ovals, ok := other[key]
		if !ok || len(vals) != len(ovals) {
			return false
		}
		for i := range vals {
			if vals[i] != ovals[i] {
				return false
			}
		}
	}
	return true
}

// Galaxy compiles matchers into the JSON tag filters of the remote
// extraction API.
type Galaxy struct{}

// Entries compiles a matcher into tag filter entries. NotEquals has no
// counterpart in the API and compiles to nothing; Comparison and NotNull
// degrade to the universal match.
func (Galaxy) Entries(e expr.Expr) ([]Entry, error) {
	switch n := e.(type) {
	case nil:
		return nil, errors.Wrap(expr.ErrMalformed, "nil node")
	case expr.Equals:
		return []Entry{{Key: n.Key, Values: []string{n.Value}}}, nil
	case expr.NotEquals:
		return nil, nil
	case expr.Comparison:
		return []Entry{{Key: n.Key, Universal: true}}, nil
	case expr.NotNull:
		return []Entry{{Key: n.Key, Universal: true}}, nil
	case expr.In:
		return []Entry{{Key: n.Key, Values: n.Values}}, nil
	case expr.And:
		return galaxyPair(n.Left, n.Right)
	case expr.Or:
		return galaxyPair(n.Left, n.Right)
	}
	return nil, errors.Wrapf(expr.ErrMalformed, "unknown node %T", e)
}

func galaxyPair(left, right expr.Expr) ([]Entry, error) {
	l, err := Galaxy{}.Entries(left)
	if err != nil {
		return nil, err
	}
	r, err := Galaxy{}.Entries(right)
	if err != nil {
		return nil, err
	}
	return append(l, r...), nil
}

// Fragments returns the entries as JSON object members, for parity with
// the other compilers.
func (c Galaxy) Fragments(e expr.Expr) ([]string, error) {
	entries, err := c.Entries(e)
	if err != nil {
		return nil, err
	}
	frags := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Universal {
			frags = append(frags, fmt.Sprintf("%q:[]", entry.Key))
			continue
		}
		quoted := make([]string, len(entry.Values))
		for i, v := range entry.Values {
			quoted[i] = fmt.Sprintf("%q", v)
		}
		frags = append(frags, fmt.Sprintf("%q:[%s]", entry.Key, strings.Join(quoted, ",")))
	}
	return frags, nil
}

// Filters holds the aggregated tag filters and attribute columns per
// element kind.
type Filters struct {
	Point   TagFilter
	Line    TagFilter
	Polygon TagFilter

	GeometryTypes []string

	PointColumns   []string
	LineColumns    []string
	PolygonColumns []string
}

// MasterTags returns the single filter applied to all element kinds when
// the per-kind filters are pairwise identical.
func (f Filters) MasterTags() (TagFilter, bool) {
	if f.Point.Equal(f.Line) && f.Line.Equal(f.Polygon) {
		return f.Point, true
	}
	return nil, false
}

// MasterColumns returns the shared attribute column list when the
// per-kind lists are identical.
func (f Filters) MasterColumns() ([]string, bool) {
	if stringsEqual(f.PointColumns, f.LineColumns) && stringsEqual(f.LineColumns, f.PolygonColumns) {
		return f.PointColumns, true
	}
	return nil, false
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Filters aggregates all themes of a mapping into per-kind filters.
func (c Galaxy) Filters(m *mapping.Mapping) (Filters, error) {
	return c.aggregate(m.Themes)
}

// ThemeFilters aggregates a single theme, for per-theme (HDX) requests.
func (c Galaxy) ThemeFilters(t mapping.Theme) (Filters, error) {
	return c.aggregate([]mapping.Theme{t})
}

func (c Galaxy) aggregate(themes []mapping.Theme) (Filters, error) {
	f := Filters{
		Point:   TagFilter{},
		Line:    TagFilter{},
		Polygon: TagFilter{},
	}
	var kinds fragmentSet
	var pointCols, lineCols, polyCols fragmentSet
	for i := range themes {
		t := &themes[i]
		if !t.HasElementKind() {
			continue
		}
		entries, err := c.Entries(t.Matcher)
		if err != nil {
			return Filters{}, errors.Wrapf(err, "theme %s", t.Name)
		}
		if t.Points {
			kinds.add("point")
			pointCols.add(t.Keys...)
			for _, e := range entries {
				f.Point.Update(e)
			}
		}
		if t.Lines {
			kinds.add("line")
			lineCols.add(t.Keys...)
			for _, e := range entries {
				f.Line.Update(e)
			}
		}
		if t.Polygons {
			kinds.add("polygon")
			polyCols.add(t.Keys...)
			for _, e := range entries {
				f.Polygon.Update(e)
			}
		}
	}
	f.Point.dedupe()
	f.Line.dedupe()
	f.Polygon.dedupe()
	f.GeometryTypes = kinds.frags
	f.PointColumns = pointCols.frags
	f.LineColumns = lineCols.frags
	f.PolygonColumns = polyCols.frags
	return f, nil
}
