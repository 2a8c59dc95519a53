package filter

import (
	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/mapping"
)

// OQL compiles matchers for the Hootenanny translation engine. The
// engine reads Overpass QL, so fragments mirror the Overpass compiler;
// only the query envelope built around them differs.
type OQL struct{}

func (OQL) Fragments(e expr.Expr) ([]string, error) {
	return walk(e, overpassLeaf)
}

func (c OQL) Filters(m *mapping.Mapping) (ElementFilters, error) {
	return elementFilters(m, c)
}
