package filter

import (
	"reflect"
	"testing"

	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/mapping"
)

func TestOverpassFragments(t *testing.T) {
	tests := []struct {
		expr expr.Expr
		want []string
	}{
		{expr.Equals{Key: "amenity", Value: "school"}, []string{"['amenity'='school']"}},
		{expr.NotEquals{Key: "access", Value: "private"}, []string{"['access'!='private']"}},
		{expr.Comparison{Op: expr.Less, Key: "admin_level"}, []string{"['admin_level']"}},
		{expr.Comparison{Op: expr.GreaterEqual, Key: "admin_level"}, []string{"['admin_level']"}},
		{expr.NotNull{Key: "name"}, []string{"['name']"}},
		{expr.In{Key: "highway", Values: []string{"primary", "secondary"}}, []string{"['highway'~'primary|secondary']"}},
		{
			expr.And{Left: expr.Equals{Key: "building", Value: "yes"}, Right: expr.NotNull{Key: "name"}},
			[]string{"['building'='yes']", "['name']"},
		},
		{
			expr.Or{Left: expr.Equals{Key: "natural", Value: "water"}, Right: expr.Equals{Key: "waterway", Value: "riverbank"}},
			[]string{"['natural'='water']", "['waterway'='riverbank']"},
		},
	}
	for _, test := range tests {
		got, err := Overpass{}.Fragments(test.expr)
		if err != nil {
			t.Fatalf("%#v: %v", test.expr, err)
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%#v: got %v, want %v", test.expr, got, test.want)
		}
	}
}

func TestOverpassFragmentsMalformed(t *testing.T) {
	if _, err := (Overpass{}).Fragments(nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := (Overpass{}).Fragments(expr.And{Left: expr.NotNull{Key: "name"}}); err == nil {
		t.Fatal("expected error for nil subtree")
	}
}

// A quoted key with a colon must survive quoting.
func TestOverpassColonKey(t *testing.T) {
	got, err := Overpass{}.Fragments(expr.NotNull{Key: "addr:housenumber"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "['addr:housenumber']" {
		t.Fatal(got)
	}
}

func TestOverpassFilters(t *testing.T) {
	m := &mapping.Mapping{Themes: []mapping.Theme{
		{
			Name:    "schools",
			Points:  true,
			Matcher: expr.Equals{Key: "amenity", Value: "school"},
		},
	}}
	ef, err := Overpass{}.Filters(m)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ef.Nodes, []string{"['amenity'='school']"}) {
		t.Fatal(ef.Nodes)
	}
	if len(ef.Ways) != 0 || len(ef.Relations) != 0 {
		t.Fatalf("%v %v", ef.Ways, ef.Relations)
	}
}

func TestOverpassFiltersPolygons(t *testing.T) {
	m := &mapping.Mapping{Themes: []mapping.Theme{
		{
			Name:     "buildings",
			Polygons: true,
			Matcher:  expr.Equals{Key: "building", Value: "yes"},
		},
	}}
	ef, err := Overpass{}.Filters(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(ef.Nodes) != 0 {
		t.Fatal(ef.Nodes)
	}
	// polygons are stored as ways or relations
	if !reflect.DeepEqual(ef.Ways, []string{"['building'='yes']"}) {
		t.Fatal(ef.Ways)
	}
	if !reflect.DeepEqual(ef.Relations, []string{"['building'='yes']"}) {
		t.Fatal(ef.Relations)
	}
}

func TestOverpassFiltersDeduplicate(t *testing.T) {
	matcher := expr.Equals{Key: "amenity", Value: "school"}
	m := &mapping.Mapping{Themes: []mapping.Theme{
		{Name: "a", Points: true, Lines: true, Matcher: matcher},
		{Name: "b", Points: true, Matcher: matcher},
		{Name: "empty", Matcher: expr.Equals{Key: "x", Value: "y"}},
	}}
	ef, err := Overpass{}.Filters(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(ef.Nodes) != 1 || len(ef.Ways) != 1 {
		t.Fatalf("%v %v", ef.Nodes, ef.Ways)
	}
}

// And and Or compile identically: the fragment list of a combined tree
// is the concatenation of its subtrees, regardless of nesting.
func TestFragmentConcatenation(t *testing.T) {
	a := expr.Equals{Key: "a", Value: "1"}
	b := expr.NotEquals{Key: "b", Value: "0"}
	c := expr.In{Key: "c", Values: []string{"2", "3"}}

	compilers := []Compiler{Overpass{}, OQL{}, Osmium{}, Galaxy{}}
	for _, compiler := range compilers {
		nestedLeft, err := compiler.Fragments(expr.And{Left: expr.Or{Left: a, Right: b}, Right: c})
		if err != nil {
			t.Fatal(err)
		}
		nestedRight, err := compiler.Fragments(expr.Or{Left: a, Right: expr.And{Left: b, Right: c}})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(nestedLeft, nestedRight) {
			t.Errorf("%T: %v != %v", compiler, nestedLeft, nestedRight)
		}

		var concat []string
		for _, e := range []expr.Expr{a, b, c} {
			frags, err := compiler.Fragments(e)
			if err != nil {
				t.Fatal(err)
			}
			concat = append(concat, frags...)
		}
		if !reflect.DeepEqual(nestedLeft, concat) {
			t.Errorf("%T: %v != %v", compiler, nestedLeft, concat)
		}
	}
}
