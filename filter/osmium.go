package filter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/mapping"
)

// Osmium compiles matchers into osmium tags-filter expressions.
type Osmium struct{}

func (Osmium) Fragments(e expr.Expr) ([]string, error) {
	return walk(e, osmiumLeaf)
}

func osmiumLeaf(e expr.Expr) ([]string, error) {
	switch n := e.(type) {
	case expr.Equals:
		return []string{fmt.Sprintf("%s=%s", n.Key, n.Value)}, nil
	case expr.NotEquals:
		return []string{fmt.Sprintf("%s!=%s", n.Key, n.Value)}, nil
	case expr.Comparison:
		// tags-filter has no relational matching
		return nil, &UnsupportedOperatorError{Op: string(n.Op)}
	case expr.NotNull:
		return nil, &UnsupportedOperatorError{Op: "notnull"}
	case expr.In:
		return []string{fmt.Sprintf("%s=%s", n.Key, strings.Join(n.Values, ","))}, nil
	}
	panic("unreachable")
}

// Filters merges the fragments of all themes into one set of
// tags-filter arguments, prefixed with the matched element types:
// n/ for nodes, w/ for ways, w/ and r/ for polygons.
func (c Osmium) Filters(m *mapping.Mapping) ([]string, error) {
	var set fragmentSet
	for i := range m.Themes {
		t := &m.Themes[i]
		if !t.HasElementKind() {
			continue
		}
		frags, err := c.Fragments(t.Matcher)
		if err != nil {
			return nil, errors.Wrapf(err, "theme %s", t.Name)
		}
		for _, f := range frags {
			if t.Points {
				set.add("n/" + f)
			}
			if t.Lines {
				set.add("w/" + f)
			}
			if t.Polygons {
				set.add("w/"+f, "r/"+f)
			}
		}
	}
	return set.frags, nil
}
