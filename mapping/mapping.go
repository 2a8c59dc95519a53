// Package mapping defines themes, the named tag matching rules that
// select which OSM elements an extract keeps. A Mapping is an ordered
// list of themes; themes are independent, their filters combine with OR
// within the same element kind. Themes are built once from configuration
// and are read-only afterwards, the filter compilers never modify them.
package mapping

import (
	"github.com/osmexport/osmextract/expr"
)

// Theme is one tag matching rule: a matcher expression, the element
// kinds it applies to, and the tag keys projected into output columns.
type Theme struct {
	Name     string
	Keys     []string
	Points   bool
	Lines    bool
	Polygons bool
	Matcher  expr.Expr
	// Where carries the raw SQL-like where clause from the
	// configuration. Parsing it into Matcher is up to the caller.
	Where string
}

// HasElementKind reports whether the theme contributes to any element
// kind. Themes without one are skipped by all compilers.
func (t *Theme) HasElementKind() bool {
	return t.Points || t.Lines || t.Polygons
}

// Mapping is an ordered collection of themes. Order only affects
// deterministic output, not semantics.
type Mapping struct {
	Themes []Theme
}
