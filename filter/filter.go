// Package filter compiles theme matcher expressions into the native
// filter syntax of each extraction backend. Compilation is pure: it
// depends only on the expression tree and the enabled element kinds of a
// theme, never on geometry, hostnames, or prior invocations.
package filter

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/mapping"
)

// Compiler translates one matcher expression into an ordered list of
// backend filter fragments.
type Compiler interface {
	Fragments(e expr.Expr) ([]string, error)
}

// UnsupportedOperatorError is returned when a backend has no equivalent
// for a relational operator in its filter grammar.
type UnsupportedOperatorError struct {
	Op string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("%s where clause not supported", e.Op)
}

// walk compiles a tree depth-first. And and Or both concatenate the
// fragments of their subtrees; none of the backends expresses real
// boolean combination, they all list constraints. Leaves are compiled by
// the backend-specific leaf func.
func walk(e expr.Expr, leaf func(e expr.Expr) ([]string, error)) ([]string, error) {
	switch n := e.(type) {
	case nil:
		return nil, errors.Wrap(expr.ErrMalformed, "nil node")
	case expr.And:
		return walkPair(n.Left, n.Right, leaf)
	case expr.Or:
		return walkPair(n.Left, n.Right, leaf)
	case expr.Equals, expr.NotEquals, expr.Comparison, expr.NotNull, expr.In:
		return leaf(e)
	}
	return nil, errors.Wrapf(expr.ErrMalformed, "unknown node %T", e)
}

func walkPair(left, right expr.Expr, leaf func(e expr.Expr) ([]string, error)) ([]string, error) {
	l, err := walk(left, leaf)
	if err != nil {
		return nil, err
	}
	r, err := walk(right, leaf)
	if err != nil {
		return nil, err
	}
	return append(l, r...), nil
}

// ElementFilters holds the merged fragments of all themes, keyed by OSM
// element type. Fragments are deduplicated, first occurrence wins the
// position.
type ElementFilters struct {
	Nodes     []string
	Ways      []string
	Relations []string
}

type fragmentSet struct {
	seen  map[string]struct{}
	frags []string
}

func (s *fragmentSet) add(frags ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, f := range frags {
		if _, ok := s.seen[f]; ok {
			continue
		}
		s.seen[f] = struct{}{}
		s.frags = append(s.frags, f)
	}
}

// elementFilters merges the per-theme fragments for backends with a
// node/way/relation element model. Points map to nodes, lines to ways,
// polygons to ways and relations since polygons are stored as either.
func elementFilters(m *mapping.Mapping, c Compiler) (ElementFilters, error) {
	var nodes, ways, relations fragmentSet
	for i := range m.Themes {
		t := &m.Themes[i]
		if !t.HasElementKind() {
			continue
		}
		frags, err := c.Fragments(t.Matcher)
		if err != nil {
			return ElementFilters{}, errors.Wrapf(err, "theme %s", t.Name)
		}
		if t.Points {
			nodes.add(frags...)
		}
		if t.Lines {
			ways.add(frags...)
		}
		if t.Polygons {
			ways.add(frags...)
			relations.add(frags...)
		}
	}
	return ElementFilters{
		Nodes:     nodes.frags,
		Ways:      ways.frags,
		Relations: relations.frags,
	}, nil
}
