package mapping

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/osmexport/osmextract/expr"
)

type themeConfig struct {
	Name    string              `yaml:"name"`
	Types   []string            `yaml:"types"`
	Select  []string            `yaml:"select"`
	Mapping map[string][]string `yaml:"mapping"`
	Where   string              `yaml:"where"`
}

type mappingConfig struct {
	Themes []themeConfig `yaml:"themes"`
}

// FromFile reads a theme mapping from a YAML file.
func FromFile(filename string) (*Mapping, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return New(b)
}

// New parses a theme mapping from YAML.
func New(b []byte) (*Mapping, error) {
	conf := mappingConfig{}
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return nil, err
	}

	m := Mapping{}
	for _, tc := range conf.Themes {
		theme, err := newTheme(tc)
		if err != nil {
			return nil, err
		}
		m.Themes = append(m.Themes, theme)
	}
	return &m, nil
}

func newTheme(tc themeConfig) (Theme, error) {
	if tc.Name == "" {
		return Theme{}, errors.New("theme without name")
	}
	t := Theme{
		Name:  tc.Name,
		Keys:  tc.Select,
		Where: tc.Where,
	}

	if tc.Types == nil {
		// all kinds unless limited explicitly
		t.Points, t.Lines, t.Polygons = true, true, true
	}
	for _, typ := range tc.Types {
		switch typ {
		case "points":
			t.Points = true
		case "lines":
			t.Lines = true
		case "polygons":
			t.Polygons = true
		default:
			return Theme{}, errors.Errorf("theme %s: unknown type %q", tc.Name, typ)
		}
	}

	if len(tc.Mapping) == 0 && tc.Where == "" {
		return Theme{}, errors.Errorf("theme %s: missing mapping or where clause", tc.Name)
	}
	if len(tc.Mapping) > 0 {
		t.Matcher = matcherFromKeyValues(tc.Mapping)
	}
	return t, nil
}

// matcherFromKeyValues builds the matcher expression for a structured
// key/values mapping. Keys are sorted for deterministic trees.
func matcherFromKeyValues(kv map[string][]string) expr.Expr {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matcher expr.Expr
	for _, k := range keys {
		var e expr.Expr
		switch vals := kv[k]; len(vals) {
		case 0:
			e = expr.NotNull{Key: k}
		case 1:
			e = expr.Equals{Key: k, Value: vals[0]}
		default:
			e = expr.In{Key: k, Values: vals}
		}
		if matcher == nil {
			matcher = e
		} else {
			matcher = expr.Or{Left: matcher, Right: e}
		}
	}
	return matcher
}
