package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/log"
)

// OsmExpress clips an extract out of an OSM Express database with the
// osmx binary.
type OsmExpress struct {
	// Osmx is the path of the osmx binary.
	Osmx string
	// DB is the path of the .osmx database.
	DB          string
	Region      geom.Region
	Output      string
	UseExisting bool
	TempDir     string
	Runner      Runner
}

func (s *OsmExpress) Resolve(ctx context.Context) (string, error) {
	if useExisting(s.Output, s.UseExisting) {
		return s.Output, nil
	}
	if err := s.fetch(ctx); err != nil {
		return "", err
	}
	return s.Output, nil
}

func (s *OsmExpress) fetch(ctx context.Context) error {
	defer log.Step("Extracting from OSM Express db")()

	regionJSON := filepath.Join(s.TempDir, "region.json")
	buf, err := json.Marshal(s.Region.GeoJSON())
	if err != nil {
		return err
	}
	if err := os.WriteFile(regionJSON, buf, 0644); err != nil {
		return errors.Wrap(err, "writing region descriptor")
	}

	err = runner(s.Runner).Run(ctx, s.Osmx,
		"extract", s.DB, s.Output, "--region", regionJSON)
	if err != nil {
		return err
	}
	return os.Remove(regionJSON)
}
