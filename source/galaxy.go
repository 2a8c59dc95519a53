package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/osmexport/osmextract"
	"github.com/osmexport/osmextract/filter"
	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/log"
	"github.com/osmexport/osmextract/mapping"
)

// galaxyTimeout bounds one extraction request. The backend produces the
// artifact synchronously, large regions take a while.
const galaxyTimeout = 45 * time.Minute

// Galaxy requests an extract from the remote extraction API. The
// backend materializes the artifact out of band, only the JSON responses
// are returned.
type Galaxy struct {
	// Hostname is the full request URL of the API.
	Hostname string
	Region   geom.Region
	// Mapping must be set: the API request carries the tag and
	// attribute filters and there is no meaningful empty default.
	Mapping  *mapping.Mapping
	FileName string
	Client   *http.Client
}

// GalaxyRequest is the request body of the extraction API.
type GalaxyRequest struct {
	FileName     string               `json:"fileName"`
	Geometry     interface{}          `json:"geometry"`
	OutputType   string               `json:"outputType"`
	GeometryType []string             `json:"geometryType"`
	OsmTags      filter.TagFilter     `json:"osmTags,omitempty"`
	Filters      GalaxyRequestFilters `json:"filters"`
}

type GalaxyRequestFilters struct {
	Tags       map[string]filter.TagFilter `json:"tags"`
	Attributes map[string][]string         `json:"attributes"`
}

// GalaxyResponse is the API response, echoed to the caller verbatim.
// Per-theme fetches annotate it with theme and output_name.
type GalaxyResponse map[string]interface{}

// Fetch posts one extraction request built from all themes of the
// mapping and returns the response.
func (s *Galaxy) Fetch(ctx context.Context, outputFormat string) ([]GalaxyResponse, error) {
	defer log.Step("Requesting extract from Galaxy")()

	if s.Mapping == nil {
		return nil, errors.New("galaxy: mapping required")
	}
	filters, err := filter.Galaxy{}.Filters(s.Mapping)
	if err != nil {
		return nil, err
	}
	body := s.request(filters, outputFormat, s.FileName, filters.GeometryTypes)
	resp, err := s.post(ctx, body)
	if err != nil {
		return nil, err
	}
	return []GalaxyResponse{resp}, nil
}

// FetchPerTheme posts one request per theme and element kind (the HDX
// export mode) and never merges filters across themes.
func (s *Galaxy) FetchPerTheme(ctx context.Context, outputFormat string) ([]GalaxyResponse, error) {
	defer log.Step("Requesting per-theme extracts from Galaxy")()

	if s.Mapping == nil {
		return nil, errors.New("galaxy: mapping required")
	}

	var responses []GalaxyResponse
	for _, t := range s.Mapping.Themes {
		filters, err := filter.Galaxy{}.ThemeFilters(t)
		if err != nil {
			return nil, err
		}
		kinds := filters.GeometryTypes
		if len(kinds) == 0 {
			kinds = []string{"point", "line", "polygon"}
		}
		for _, kind := range kinds {
			name := fmt.Sprintf("%s-%s-%s", s.FileName, t.Name, kind)
			body := s.request(filters, outputFormat, name, []string{kind})
			resp, err := s.post(ctx, body)
			if err != nil {
				return nil, err
			}
			resp["theme"] = t.Name
			resp["output_name"] = outputFormat
			responses = append(responses, resp)
		}
	}
	return responses, nil
}

func (s *Galaxy) request(f filter.Filters, outputFormat, fileName string, geometryTypes []string) GalaxyRequest {
	var geometry interface{}
	if s.Region.IsPolygon() {
		geometry = s.Region.GeoJSON()
	} else {
		geometry = s.Region.BBoxString()
	}

	body := GalaxyRequest{
		FileName:     fileName,
		Geometry:     geometry,
		OutputType:   outputFormat,
		GeometryType: geometryTypes,
	}

	master, masterOK := f.MasterTags()
	columns, columnsOK := f.MasterColumns()

	if masterOK && len(master) > 0 {
		body.Filters.Tags = map[string]filter.TagFilter{"all_geometry": master}
		if columnsOK && len(columns) > 0 {
			body.Filters.Attributes = map[string][]string{"all_geometry": columns}
		} else {
			// the master tag filter is repeated at the top level for
			// older API deployments
			body.OsmTags = master
			body.Filters.Attributes = map[string][]string{
				"point":   f.PointColumns,
				"line":    f.LineColumns,
				"polygon": f.PolygonColumns,
			}
		}
		return body
	}

	body.Filters.Tags = map[string]filter.TagFilter{
		"point":   f.Point,
		"line":    f.Line,
		"polygon": f.Polygon,
	}
	if columnsOK && len(columns) > 0 {
		body.Filters.Attributes = map[string][]string{"all_geometry": columns}
	} else {
		body.Filters.Attributes = map[string][]string{
			"point":   f.PointColumns,
			"line":    f.LineColumns,
			"polygon": f.PolygonColumns,
		}
	}
	return body
}

func (s *Galaxy) post(ctx context.Context, body GalaxyRequest) (GalaxyResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.Hostname, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "osmextract "+osmextract.Version)

	client := s.Client
	if client == nil {
		client = newGalaxyClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &BackendError{Backend: "galaxy", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &BackendError{
			Backend: "galaxy",
			Reason:  fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	decoded := GalaxyResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &BackendError{Backend: "galaxy", Reason: "decoding response", Err: err}
	}
	return decoded, nil
}

func newGalaxyClient() *http.Client {
	return &http.Client{
		Timeout: galaxyTimeout,
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
