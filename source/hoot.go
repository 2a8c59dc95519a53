package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/filter"
	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/log"
	"github.com/osmexport/osmextract/mapping"
)

// Hootenanny drives the hoot translation engine: it downloads the
// region through an Overpass service into an intermediate PBF and then
// converts it once per configured schema and output extension.
type Hootenanny struct {
	// Hoot is the path of the hoot binary, "hoot" if empty.
	Hoot string
	// Hostname is the base URL of the Overpass service hoot reads from.
	Hostname string
	Region   geom.Region
	// OutputDir receives the intermediate PBF and all converted
	// artifacts, named {Name}.{schema}.{ext}.
	OutputDir   string
	Name        string
	UseExisting bool
	Mapping     *mapping.Mapping
	// Extensions are the output formats, e.g. shp, gpkg.
	Extensions []string
	// Schemas maps schema names to their translation scripts. The OSM
	// schema converts without a direction override.
	Schemas map[string]string
	// MaxGridSize overrides the download size limit of hoot's Overpass
	// reader.
	MaxGridSize float64
	TempDir     string
	Runner      Runner
}

func (s *Hootenanny) Resolve(ctx context.Context) (string, error) {
	if useExisting(s.intermediatePBF(), s.UseExisting) {
		return s.OutputDir, nil
	}
	if err := s.fetch(ctx); err != nil {
		return "", err
	}
	return s.OutputDir, nil
}

func (s *Hootenanny) intermediatePBF() string {
	return filepath.Join(s.OutputDir, s.Name+".osm.pbf")
}

// Query returns the OQL query for the mapping. The region is not part
// of the query, hoot gets it as a bounds parameter.
func (s *Hootenanny) Query() (string, error) {
	var query string
	if s.Mapping != nil {
		filters, err := filter.OQL{}.Filters(s.Mapping)
		if err != nil {
			return "", err
		}
		var nodes, ways, relations []string
		for _, f := range filters.Nodes {
			nodes = append(nodes, fmt.Sprintf("node%s;", f))
		}
		for _, f := range filters.Ways {
			ways = append(ways, fmt.Sprintf("way%s;", f))
		}
		for _, f := range filters.Relations {
			relations = append(relations, fmt.Sprintf("relation%s;", f))
		}
		query = fmt.Sprintf("((\n%s\n);\n(\n%s\n);>;\n(\n%s\n);>>;>;)",
			strings.Join(nodes, "\n"),
			strings.Join(ways, "\n"),
			strings.Join(relations, "\n"),
		)
	} else {
		query = "(node;<;>>;>;)"
	}
	return fmt.Sprintf("[out:json][bbox];%s;out meta;", query), nil
}

func (s *Hootenanny) fetch(ctx context.Context) error {
	defer log.Step("Converting with Hootenanny")()

	query, err := s.Query()
	if err != nil {
		return err
	}
	queryPath := filepath.Join(s.TempDir, "query.oql")
	if err := os.WriteFile(queryPath, []byte(query), 0644); err != nil {
		return errors.Wrap(err, "writing query file")
	}

	u, err := url.Parse(s.Hostname)
	if err != nil {
		return errors.Wrapf(err, "parsing hostname %s", s.Hostname)
	}

	hoot := s.Hoot
	if hoot == "" {
		hoot = "hoot"
	}
	run := runner(s.Runner)

	tempPBF := s.intermediatePBF()
	maxSize := strconv.FormatFloat(s.MaxGridSize, 'g', -1, 64)
	err = run.Run(ctx, hoot, "convert",
		"-D", "overpass.api.host="+u.Hostname(),
		"-D", "overpass.api.query.path="+queryPath,
		"-D", "bounds="+s.Region.OQLBounds(),
		"-D", "reader.http.bbox.max.download.size="+maxSize,
		strings.TrimRight(s.Hostname, "/")+"/api/interpreter", tempPBF)
	if err != nil {
		return err
	}

	// deterministic conversion order
	schemas := make([]string, 0, len(s.Schemas))
	for schema := range s.Schemas {
		schemas = append(schemas, schema)
	}
	sort.Strings(schemas)

	for _, ext := range s.Extensions {
		for _, schema := range schemas {
			args := []string{"convert", "-D", "schema.translation.script=" + s.Schemas[schema]}
			if schema != "OSM" {
				args = append(args, "-D", "schema.translation.direction=toogr")
			}
			dest := filepath.Join(s.OutputDir, fmt.Sprintf("%s.%s.%s", s.Name, schema, ext))
			args = append(args, tempPBF, dest)
			if err := run.Run(ctx, hoot, args...); err != nil {
				return err
			}
		}
	}
	return os.Remove(queryPath)
}
