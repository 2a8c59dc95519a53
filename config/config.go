package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/osmexport/osmextract/geom"
)

// Config is the optional JSON configuration file. Command line flags
// take precedence over its values.
type Config struct {
	TempDir    string `json:"tempdir"`
	Overpass   string `json:"overpass"`
	Galaxy     string `json:"galaxy"`
	Osmium     string `json:"osmium"`
	Osmx       string `json:"osmx"`
	Osmconvert string `json:"osmconvert"`
	Hoot       string `json:"hoot"`
}

const defaultTempDir = "/tmp/osmextract"
const defaultOverpass = "https://overpass-api.de"
const defaultOsmium = "osmium"
const defaultOsmx = "osmx"
const defaultOsmconvert = "osmconvert"
const defaultHoot = "hoot"

var ExtractFlags = flag.NewFlagSet("extract", flag.ExitOnError)

type Base struct {
	ConfigFile  string
	MappingFile string
	TempDir     string
	Quiet       bool
	Overpass    string
	Galaxy      string
	Osmium      string
	Osmx        string
	Osmconvert  string
	Hoot        string
}

func (o *Base) updateFromConfig() error {
	conf := &Config{}

	if o.ConfigFile != "" {
		f, err := os.Open(o.ConfigFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(conf); err != nil {
			return errors.Wrapf(err, "parsing %s", o.ConfigFile)
		}
	}

	if conf.TempDir != "" && o.TempDir == defaultTempDir {
		o.TempDir = conf.TempDir
	}
	if conf.Overpass != "" && o.Overpass == defaultOverpass {
		o.Overpass = conf.Overpass
	}
	if conf.Galaxy != "" && o.Galaxy == "" {
		o.Galaxy = conf.Galaxy
	}
	if conf.Osmium != "" && o.Osmium == defaultOsmium {
		o.Osmium = conf.Osmium
	}
	if conf.Osmx != "" && o.Osmx == defaultOsmx {
		o.Osmx = conf.Osmx
	}
	if conf.Osmconvert != "" && o.Osmconvert == defaultOsmconvert {
		o.Osmconvert = conf.Osmconvert
	}
	if conf.Hoot != "" && o.Hoot == defaultHoot {
		o.Hoot = conf.Hoot
	}
	return nil
}

// Extract holds the options of the extract command.
type Extract struct {
	Base        Base
	Source      string
	Input       string
	Output      string
	Name        string
	Bbox        string
	Polygon     string
	UseExisting bool
	UseCurl     bool
	Verify      bool
	PerTheme    bool
	Formats     string
	Schemas     string
	MaxGridSize float64
}

var sources = []string{"pbf", "osmx", "osmium", "overpass", "galaxy", "hoot"}

func (o *Extract) check() []error {
	errs := []error{}
	valid := false
	for _, s := range sources {
		if o.Source == s {
			valid = true
		}
	}
	if !valid {
		errs = append(errs, errors.Errorf("-source must be one of %s", strings.Join(sources, ", ")))
	}
	switch o.Source {
	case "pbf", "osmx", "osmium":
		if o.Input == "" {
			errs = append(errs, errors.Errorf("missing -input for source %s", o.Source))
		}
	}
	if o.Source != "pbf" && o.Bbox == "" && o.Polygon == "" {
		errs = append(errs, errors.New("missing -bbox or -polygon"))
	}
	if o.Bbox != "" && o.Polygon != "" {
		errs = append(errs, errors.New("-bbox and -polygon are exclusive"))
	}
	if o.Output == "" && o.Source != "galaxy" {
		errs = append(errs, errors.New("missing -output"))
	}
	return errs
}

// Region returns the extraction region from the -bbox or -polygon flag.
func (o *Extract) Region() (geom.Region, error) {
	if o.Polygon != "" {
		doc, err := os.ReadFile(o.Polygon)
		if err != nil {
			return geom.Region{}, err
		}
		return geom.RegionFromGeoJSON(doc)
	}
	parts := strings.Split(o.Bbox, ",")
	if len(parts) != 4 {
		return geom.Region{}, errors.Errorf("invalid bbox %q, expected south,west,north,east", o.Bbox)
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geom.Region{}, errors.Errorf("invalid bbox %q, expected south,west,north,east", o.Bbox)
		}
		coords[i] = v
	}
	return geom.NewBBox(coords[1], coords[0], coords[3], coords[2]), nil
}

// FormatList returns the -formats flag as a list of extensions.
func (o *Extract) FormatList() []string {
	var formats []string
	for _, f := range strings.Split(o.Formats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

// SchemaMap returns the -schemas flag as a schema name to translation
// script map.
func (o *Extract) SchemaMap() (map[string]string, error) {
	schemas := map[string]string{}
	for _, pair := range strings.Split(o.Schemas, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		name, script, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Errorf("invalid schema %q, expected name=script", pair)
		}
		schemas[name] = script
	}
	return schemas, nil
}

var ExtractOptions = Extract{}

func addBaseFlags(opts *Base, flags *flag.FlagSet) {
	flags.StringVar(&opts.ConfigFile, "config", "", "config (json)")
	flags.StringVar(&opts.MappingFile, "mapping", "", "mapping file (yaml)")
	flags.StringVar(&opts.TempDir, "tempdir", defaultTempDir, "directory for scratch files")
	flags.BoolVar(&opts.Quiet, "quiet", false, "quiet log output")
	flags.StringVar(&opts.Overpass, "overpass", defaultOverpass, "Overpass API base URL")
	flags.StringVar(&opts.Galaxy, "galaxy", "", "Galaxy API request URL")
	flags.StringVar(&opts.Osmium, "osmium", defaultOsmium, "osmium binary")
	flags.StringVar(&opts.Osmx, "osmx", defaultOsmx, "osmx binary")
	flags.StringVar(&opts.Osmconvert, "osmconvert", defaultOsmconvert, "osmconvert binary")
	flags.StringVar(&opts.Hoot, "hoot", defaultHoot, "hoot binary")
}

func UsageExtract() {
	fmt.Fprintf(os.Stderr, "Usage: %s %s [args]\n\n", os.Args[0], os.Args[1])
	ExtractFlags.PrintDefaults()
	os.Exit(2)
}

func init() {
	ExtractFlags.Usage = UsageExtract

	addBaseFlags(&ExtractOptions.Base, ExtractFlags)
	ExtractFlags.StringVar(&ExtractOptions.Source, "source", "overpass", "extraction source ("+strings.Join(sources, ", ")+")")
	ExtractFlags.StringVar(&ExtractOptions.Input, "input", "", "local source file (planet PBF or osmx database)")
	ExtractFlags.StringVar(&ExtractOptions.Output, "output", "", "output file")
	ExtractFlags.StringVar(&ExtractOptions.Name, "name", "extract", "export name")
	ExtractFlags.StringVar(&ExtractOptions.Bbox, "bbox", "", "region as south,west,north,east")
	ExtractFlags.StringVar(&ExtractOptions.Polygon, "polygon", "", "region as GeoJSON polygon file")
	ExtractFlags.BoolVar(&ExtractOptions.UseExisting, "use-existing", false, "skip the backend if the output already exists")
	ExtractFlags.BoolVar(&ExtractOptions.UseCurl, "curl", false, "download Overpass responses with curl")
	ExtractFlags.BoolVar(&ExtractOptions.Verify, "verify", false, "verify the produced PBF header")
	ExtractFlags.BoolVar(&ExtractOptions.PerTheme, "per-theme", false, "request one Galaxy extract per theme and element kind")
	ExtractFlags.StringVar(&ExtractOptions.Formats, "formats", "shp", "hoot output formats, comma separated")
	ExtractFlags.StringVar(&ExtractOptions.Schemas, "schemas", "", "hoot schemas as name=script pairs, comma separated")
	ExtractFlags.Float64Var(&ExtractOptions.MaxGridSize, "max-grid-size", 1.0, "hoot Overpass reader download size limit")
}

func ParseExtract(args []string) Extract {
	if len(args) == 0 {
		UsageExtract()
	}
	if err := ExtractFlags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := ExtractOptions.Base.updateFromConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	errs := ExtractOptions.check()
	if len(errs) != 0 {
		reportErrors(errs)
		UsageExtract()
	}
	return ExtractOptions
}

func reportErrors(errs []error) {
	fmt.Println("errors in config/options:")
	for _, err := range errs {
		fmt.Printf("\t%s\n", err)
	}
	os.Exit(1)
}
