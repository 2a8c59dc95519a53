// Package expr defines the prefix expression tree that describes which OSM
// elements a theme matches. The tree is built once (from a parsed where
// clause or from a structured tag mapping) and is read-only afterwards.
// All backend filter compilers consume the same tree.
package expr

import (
	"github.com/pkg/errors"
)

// Expr is a node of a tag matcher expression.
type Expr interface {
	isExpr()
}

// CompareOp is a relational operator of a value-less Comparison node.
type CompareOp string

const (
	Less         CompareOp = "<"
	Greater      CompareOp = ">"
	LessEqual    CompareOp = "<="
	GreaterEqual CompareOp = ">="
)

// Equals matches elements with tag key=value.
type Equals struct {
	Key   string
	Value string
}

// NotEquals matches elements where tag key is not value.
type NotEquals struct {
	Key   string
	Value string
}

// Comparison is a relational constraint on a key without a value.
// Backends either reject it or degrade it to a key-present check.
type Comparison struct {
	Op  CompareOp
	Key string
}

// NotNull matches elements that have the key with any value.
type NotNull struct {
	Key string
}

// In matches elements where the key has one of Values. The value
// order is preserved in compiled fragments.
type In struct {
	Key    string
	Values []string
}

// And combines two subtrees.
type And struct {
	Left, Right Expr
}

// Or combines two subtrees.
type Or struct {
	Left, Right Expr
}

func (Equals) isExpr()     {}
func (NotEquals) isExpr()  {}
func (Comparison) isExpr() {}
func (NotNull) isExpr()    {}
func (In) isExpr()         {}
func (And) isExpr()        {}
func (Or) isExpr()         {}

// ErrMalformed is returned for trees that do not match the known
// node variants (nil subtrees, unknown comparison operators).
var ErrMalformed = errors.New("malformed expression")

// Validate checks the tree shape without compiling it.
func Validate(e Expr) error {
	switch n := e.(type) {
	case nil:
		return errors.Wrap(ErrMalformed, "nil node")
	case Equals, NotEquals, NotNull:
		return nil
	case Comparison:
		switch n.Op {
		case Less, Greater, LessEqual, GreaterEqual:
			return nil
		}
		return errors.Wrapf(ErrMalformed, "unknown comparison operator %q", n.Op)
	case In:
		if len(n.Values) == 0 {
			return errors.Wrapf(ErrMalformed, "empty value list for %q", n.Key)
		}
		return nil
	case And:
		if err := Validate(n.Left); err != nil {
			return err
		}
		return Validate(n.Right)
	case Or:
		if err := Validate(n.Left); err != nil {
			return err
		}
		return Validate(n.Right)
	}
	return errors.Wrapf(ErrMalformed, "unknown node %T", e)
}

// Matches evaluates the expression against a tag map. Comparison and
// NotNull degrade to a key-present check, same as the Overpass compiler.
func Matches(e Expr, tags map[string]string) bool {
	switch n := e.(type) {
	case Equals:
		return tags[n.Key] == n.Value
	case NotEquals:
		v, ok := tags[n.Key]
		return ok && v != n.Value
	case Comparison:
		_, ok := tags[n.Key]
		return ok
	case NotNull:
		_, ok := tags[n.Key]
		return ok
	case In:
		v, ok := tags[n.Key]
		if !ok {
			return false
		}
		for _, want := range n.Values {
			if v == want {
				return true
			}
		}
		return false
	case And:
		return Matches(n.Left, tags) && Matches(n.Right, tags)
	case Or:
		return Matches(n.Left, tags) || Matches(n.Right, tags)
	}
	return false
}
