package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	osmpbf "github.com/omniscale/go-osm/parser/pbf"
	"github.com/pkg/errors"

	"github.com/osmexport/osmextract"
	"github.com/osmexport/osmextract/filter"
	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/log"
	"github.com/osmexport/osmextract/mapping"
)

const (
	overpassMaxSize = 2147483648
	overpassTimeout = 1600
)

// Overpass fetches an extract from an Overpass query service and
// converts the OSM XML response into a PBF with osmconvert.
type Overpass struct {
	// Hostname is the base URL of the service, e.g.
	// https://overpass-api.de. Queries go to {Hostname}/api/interpreter.
	Hostname    string
	Region      geom.Region
	Output      string
	UseExisting bool
	TempDir     string
	// OsmConvert is the path of the osmconvert binary, "osmconvert" if
	// empty.
	OsmConvert string
	Mapping    *mapping.Mapping
	// UseCurl posts the query with the curl binary instead of the
	// builtin HTTP client.
	UseCurl bool
	// Verify parses the header of the produced PBF after conversion.
	Verify bool
	Runner Runner
	Client *http.Client
}

func (s *Overpass) Resolve(ctx context.Context) (string, error) {
	if useExisting(s.Output, s.UseExisting) {
		return s.Output, nil
	}
	if err := s.fetch(ctx); err != nil {
		return "", err
	}
	return s.Output, nil
}

// Query returns the full Overpass QL query for the region and mapping.
func (s *Overpass) Query() (string, error) {
	spatial := s.Region.OverpassGeom()

	var query string
	if s.Mapping != nil {
		filters, err := filter.Overpass{}.Filters(s.Mapping)
		if err != nil {
			return "", err
		}
		var nodes, ways, relations []string
		for _, f := range filters.Nodes {
			nodes = append(nodes, fmt.Sprintf("node(%s)%s;", spatial, f))
		}
		for _, f := range filters.Ways {
			ways = append(ways, fmt.Sprintf("way(%s)%s;", spatial, f))
		}
		for _, f := range filters.Relations {
			relations = append(relations, fmt.Sprintf("relation(%s)%s;", spatial, f))
		}
		query = fmt.Sprintf("((\n%s\n);\n(\n%s\n);>;\n(\n%s\n);>>;>;)",
			strings.Join(nodes, "\n"),
			strings.Join(ways, "\n"),
			strings.Join(relations, "\n"),
		)
	} else {
		query = fmt.Sprintf("(node(%s);<;>>;>;)", spatial)
	}

	return fmt.Sprintf("[maxsize:%d][timeout:%d];%s;out meta;",
		overpassMaxSize, overpassTimeout, query), nil
}

func (s *Overpass) interpreterURL() string {
	return strings.TrimRight(s.Hostname, "/") + "/api/interpreter"
}

func (s *Overpass) fetch(ctx context.Context) error {
	defer log.Step("Fetching from Overpass")()

	query, err := s.Query()
	if err != nil {
		return err
	}

	tmpPath := filepath.Join(s.TempDir, "tmp.osm.xml")
	if s.UseCurl {
		err = s.postCurl(ctx, query, tmpPath)
	} else {
		err = s.post(ctx, query, tmpPath)
	}
	if err != nil {
		return err
	}

	if err := checkOverpassResponse(tmpPath); err != nil {
		return err
	}

	osmconvert := s.OsmConvert
	if osmconvert == "" {
		osmconvert = "osmconvert"
	}
	err = runner(s.Runner).Run(ctx, osmconvert, tmpPath, "--out-pbf", "-o="+s.Output)
	if err != nil {
		return err
	}

	if s.Verify {
		if err := verifyPBF(s.Output); err != nil {
			return err
		}
	}
	return os.Remove(tmpPath)
}

func (s *Overpass) postCurl(ctx context.Context, query, dest string) error {
	queryPath := filepath.Join(s.TempDir, "query.txt")
	if err := os.WriteFile(queryPath, []byte(query), 0644); err != nil {
		return errors.Wrap(err, "writing query file")
	}
	return runner(s.Runner).Run(ctx, "curl",
		"-X", "POST", "-d", "@"+queryPath, s.interpreterURL(), "-o", dest)
}

func (s *Overpass) post(ctx context.Context, query, dest string) error {
	client := s.Client
	if client == nil {
		client = newOverpassClient()
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		s.interpreterURL(), strings.NewReader(query))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "osmextract "+osmextract.Version)

	resp, err := client.Do(req)
	if err != nil {
		return &BackendError{Backend: "overpass", Err: err}
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return &BackendError{Backend: "overpass", Reason: "reading response", Err: err}
	}
	return out.Close()
}

func newOverpassClient() *http.Client {
	return &http.Client{
		// the service may block up to its query timeout before
		// answering
		Timeout: (overpassTimeout + 60) * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			Dial: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).Dial,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// checkOverpassResponse sniffs the first lines of the response for the
// error markers the service uses instead of HTTP status codes: an HTML
// error document or a remark element.
func checkOverpassResponse(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var sample []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for len(sample) < 6 && scanner.Scan() {
		sample = append(sample, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(sample) > 1 && strings.Contains(sample[1], "DOCTYPE html") {
		return &BackendError{Backend: "overpass", Reason: "HTML error response"}
	}
	if len(sample) > 5 && strings.Contains(sample[5], "remark") {
		return &BackendError{Backend: "overpass", Reason: strings.TrimSpace(sample[5])}
	}
	return nil
}

// verifyPBF parses the header of the converted artifact to catch
// truncated or invalid output early.
func verifyPBF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	parser := osmpbf.New(f, osmpbf.Config{})
	if _, err := parser.Header(); err != nil {
		return &BackendError{Backend: "osmconvert", Reason: "invalid pbf output", Err: err}
	}
	return nil
}
