// Package extract builds the configured extraction source and runs it.
package extract

import (
	"context"
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/config"
	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/log"
	"github.com/osmexport/osmextract/mapping"
	"github.com/osmexport/osmextract/source"
)

func Extract(ctx context.Context, opts config.Extract) error {
	if opts.Base.Quiet {
		log.SetMinLevel(log.LWarn)
	}

	var m *mapping.Mapping
	if opts.Base.MappingFile != "" {
		var err error
		m, err = mapping.FromFile(opts.Base.MappingFile)
		if err != nil {
			return err
		}
	}

	var region geom.Region
	if opts.Bbox != "" || opts.Polygon != "" {
		var err error
		region, err = opts.Region()
		if err != nil {
			return err
		}
	}

	if opts.Source == "galaxy" {
		return galaxy(ctx, opts, region, m)
	}

	s, err := buildSource(opts, region, m)
	if err != nil {
		return err
	}
	path, err := s.Resolve(ctx)
	if err != nil {
		return err
	}
	log.Printf("[info] extract at %s", path)
	return nil
}

func buildSource(opts config.Extract, region geom.Region, m *mapping.Mapping) (source.Source, error) {
	switch opts.Source {
	case "pbf":
		return &source.PBF{Path: opts.Input}, nil
	case "osmx":
		return &source.OsmExpress{
			Osmx:        opts.Base.Osmx,
			DB:          opts.Input,
			Region:      region,
			Output:      opts.Output,
			UseExisting: opts.UseExisting,
			TempDir:     opts.Base.TempDir,
		}, nil
	case "osmium":
		return &source.Osmium{
			OsmiumPath:  opts.Base.Osmium,
			Source:      opts.Input,
			Region:      region,
			Output:      opts.Output,
			UseExisting: opts.UseExisting,
			TempDir:     opts.Base.TempDir,
			Mapping:     m,
		}, nil
	case "overpass":
		return &source.Overpass{
			Hostname:    opts.Base.Overpass,
			Region:      region,
			Output:      opts.Output,
			UseExisting: opts.UseExisting,
			TempDir:     opts.Base.TempDir,
			OsmConvert:  opts.Base.Osmconvert,
			Mapping:     m,
			UseCurl:     opts.UseCurl,
			Verify:      opts.Verify,
		}, nil
	case "hoot":
		schemas, err := opts.SchemaMap()
		if err != nil {
			return nil, err
		}
		return &source.Hootenanny{
			Hoot:        opts.Base.Hoot,
			Hostname:    opts.Base.Overpass,
			Region:      region,
			OutputDir:   opts.Output,
			Name:        opts.Name,
			UseExisting: opts.UseExisting,
			Mapping:     m,
			Extensions:  opts.FormatList(),
			Schemas:     schemas,
			MaxGridSize: opts.MaxGridSize,
			TempDir:     opts.Base.TempDir,
		}, nil
	}
	return nil, errors.Errorf("unknown source %s", opts.Source)
}

// galaxy has no local artifact, the API responses are written to stdout.
func galaxy(ctx context.Context, opts config.Extract, region geom.Region, m *mapping.Mapping) error {
	s := &source.Galaxy{
		Hostname: opts.Base.Galaxy,
		Region:   region,
		Mapping:  m,
		FileName: opts.Name,
	}
	outputFormat := "geojson"
	if formats := opts.FormatList(); len(formats) > 0 {
		outputFormat = formats[0]
	}

	var responses []source.GalaxyResponse
	var err error
	if opts.PerTheme {
		responses, err = s.FetchPerTheme(ctx, outputFormat)
	} else {
		responses, err = s.Fetch(ctx, outputFormat)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(responses)
}
