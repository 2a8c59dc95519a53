package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/filter"
	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/log"
	"github.com/osmexport/osmextract/mapping"
)

// clipAreaLimit is the region area (square degrees) above which the
// region covers most of a large extract and clipping first is not worth
// the extra pass: the tag filter then reads the source file directly.
const clipAreaLimit = 6e4

// Osmium clips and tag-filters a local planet or region file with the
// osmium binary.
type Osmium struct {
	// OsmiumPath is the path of the osmium binary.
	OsmiumPath string
	// Source is the planet or region file the extract is cut from.
	Source      string
	Region      geom.Region
	Output      string
	UseExisting bool
	TempDir     string
	// Mapping enables the tags-filter pass. Without it the output is
	// only clipped.
	Mapping *mapping.Mapping
	Runner  Runner
}

func (s *Osmium) Resolve(ctx context.Context) (string, error) {
	if useExisting(s.Output, s.UseExisting) {
		return s.Output, nil
	}

	planetAsSource := true
	if s.Region.Area() < clipAreaLimit {
		if err := s.clip(ctx); err != nil {
			return "", err
		}
		planetAsSource = false
	}

	if s.Mapping != nil {
		filters, err := filter.Osmium{}.Filters(s.Mapping)
		if err != nil {
			return "", err
		}
		if err := s.tagsFilter(ctx, filters, planetAsSource); err != nil {
			return "", err
		}
	}
	return s.Output, nil
}

func (s *Osmium) clip(ctx context.Context) error {
	defer log.Step("Clipping extract")()

	regionJSON := filepath.Join(s.TempDir, "region.json")
	buf, err := json.Marshal(s.Region.GeoJSONFeature())
	if err != nil {
		return err
	}
	if err := os.WriteFile(regionJSON, buf, 0644); err != nil {
		return errors.Wrap(err, "writing region descriptor")
	}

	err = runner(s.Runner).Run(ctx, s.OsmiumPath,
		"extract", "-p", regionJSON, s.Source, "-o", s.Output, "--overwrite")
	if err != nil {
		return err
	}
	return os.Remove(regionJSON)
}

func (s *Osmium) tagsFilter(ctx context.Context, filters []string, planetAsSource bool) error {
	defer log.Step("Filtering tags")()

	src := s.Output
	if planetAsSource {
		src = s.Source
	}

	args := []string{"tags-filter", src}
	args = append(args, filters...)
	args = append(args, "-o", s.Output)
	if !planetAsSource {
		args = append(args, "--overwrite")
	}
	return runner(s.Runner).Run(ctx, s.OsmiumPath, args...)
}
