package filter

import (
	"fmt"
	"strings"

	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/mapping"
)

// Overpass compiles matchers into Overpass QL tag filters.
type Overpass struct{}

func (Overpass) Fragments(e expr.Expr) ([]string, error) {
	return walk(e, overpassLeaf)
}

// Keys and values are always quoted to handle keys with colons
// (addr:housenumber etc.).
func overpassLeaf(e expr.Expr) ([]string, error) {
	switch n := e.(type) {
	case expr.Equals:
		return []string{fmt.Sprintf("['%s'='%s']", n.Key, n.Value)}, nil
	case expr.NotEquals:
		return []string{fmt.Sprintf("['%s'!='%s']", n.Key, n.Value)}, nil
	case expr.Comparison:
		// no relational filters in Overpass QL, degrade to key presence
		return []string{fmt.Sprintf("['%s']", n.Key)}, nil
	case expr.NotNull:
		return []string{fmt.Sprintf("['%s']", n.Key)}, nil
	case expr.In:
		return []string{fmt.Sprintf("['%s'~'%s']", n.Key, strings.Join(n.Values, "|"))}, nil
	}
	panic("unreachable")
}

// Filters merges the fragments of all themes into node, way, and
// relation filter sets.
func (c Overpass) Filters(m *mapping.Mapping) (ElementFilters, error) {
	return elementFilters(m, c)
}
