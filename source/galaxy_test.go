package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmexport/osmextract/expr"
	"github.com/osmexport/osmextract/filter"
	"github.com/osmexport/osmextract/geom"
	"github.com/osmexport/osmextract/mapping"
)

func galaxyServer(t *testing.T, requests *[]GalaxyRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req GalaxyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"submitted","track_link":"/tasks/1"}`))
	}))
}

func TestGalaxyFetchMasterFilter(t *testing.T) {
	var requests []GalaxyRequest
	ts := galaxyServer(t, &requests)
	defer ts.Close()

	s := &Galaxy{
		Hostname: ts.URL,
		Region:   geom.NewBBox(5.9, 47.2, 10.5, 55.1),
		FileName: "test-export",
		Client:   ts.Client(),
		Mapping: &mapping.Mapping{Themes: []mapping.Theme{
			{
				Name:   "schools",
				Points: true, Lines: true, Polygons: true,
				Keys:    []string{"name", "amenity"},
				Matcher: expr.Equals{Key: "amenity", Value: "school"},
			},
		}},
	}

	responses, err := s.Fetch(context.Background(), "geojson")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "submitted", responses[0]["status"])

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "test-export", req.FileName)
	assert.Equal(t, "geojson", req.OutputType)
	assert.Equal(t, []string{"point", "line", "polygon"}, req.GeometryType)
	assert.Equal(t, "47.2,5.9,55.1,10.5", req.Geometry)

	// identical per-kind filters collapse into all_geometry
	require.Contains(t, req.Filters.Tags, "all_geometry")
	assert.Equal(t, filter.TagFilter{"amenity": {"school"}}, req.Filters.Tags["all_geometry"])
	assert.Equal(t, []string{"name", "amenity"}, req.Filters.Attributes["all_geometry"])
}

func TestGalaxyFetchPerKindFilter(t *testing.T) {
	var requests []GalaxyRequest
	ts := galaxyServer(t, &requests)
	defer ts.Close()

	s := &Galaxy{
		Hostname: ts.URL,
		Region:   geom.NewBBox(5.9, 47.2, 10.5, 55.1),
		FileName: "test-export",
		Client:   ts.Client(),
		Mapping: &mapping.Mapping{Themes: []mapping.Theme{
			{
				Name: "schools", Points: true,
				Keys:    []string{"amenity"},
				Matcher: expr.Equals{Key: "amenity", Value: "school"},
			},
			{
				Name: "roads", Lines: true,
				Keys:    []string{"highway"},
				Matcher: expr.In{Key: "highway", Values: []string{"primary"}},
			},
		}},
	}

	_, err := s.Fetch(context.Background(), "shp")
	require.NoError(t, err)

	require.Len(t, requests, 1)
	req := requests[0]
	require.NotContains(t, req.Filters.Tags, "all_geometry")
	assert.Equal(t, filter.TagFilter{"amenity": {"school"}}, req.Filters.Tags["point"])
	assert.Equal(t, filter.TagFilter{"highway": {"primary"}}, req.Filters.Tags["line"])
	assert.Empty(t, req.Filters.Tags["polygon"])
	assert.Equal(t, []string{"amenity"}, req.Filters.Attributes["point"])
	assert.Equal(t, []string{"highway"}, req.Filters.Attributes["line"])
}

func TestGalaxyFetchPolygonGeometry(t *testing.T) {
	var requests []GalaxyRequest
	ts := galaxyServer(t, &requests)
	defer ts.Close()

	region, err := geom.NewPolygon([]geom.Point{{Long: 8, Lat: 53}, {Long: 9, Lat: 53}, {Long: 9, Lat: 54}, {Long: 8, Lat: 53}})
	require.NoError(t, err)

	s := &Galaxy{
		Hostname: ts.URL,
		Region:   region,
		FileName: "poly-export",
		Client:   ts.Client(),
		Mapping: &mapping.Mapping{Themes: []mapping.Theme{
			{Name: "water", Polygons: true, Matcher: expr.Equals{Key: "natural", Value: "water"}},
		}},
	}
	_, err = s.Fetch(context.Background(), "geojson")
	require.NoError(t, err)

	require.Len(t, requests, 1)
	geometry, ok := requests[0].Geometry.(map[string]interface{})
	require.True(t, ok, "polygon regions are sent as GeoJSON")
	assert.Equal(t, "Polygon", geometry["type"])
}

func TestGalaxyFetchPerTheme(t *testing.T) {
	var requests []GalaxyRequest
	ts := galaxyServer(t, &requests)
	defer ts.Close()

	s := &Galaxy{
		Hostname: ts.URL,
		Region:   geom.NewBBox(5.9, 47.2, 10.5, 55.1),
		FileName: "hdx-export",
		Client:   ts.Client(),
		Mapping: &mapping.Mapping{Themes: []mapping.Theme{
			{
				Name: "schools", Points: true, Polygons: true,
				Matcher: expr.Equals{Key: "amenity", Value: "school"},
			},
			{
				// no element kind set: defaults to all three
				Name:    "everything",
				Matcher: expr.NotNull{Key: "name"},
			},
		}},
	}

	responses, err := s.FetchPerTheme(context.Background(), "gpkg")
	require.NoError(t, err)

	// one request per theme and element kind
	require.Len(t, requests, 5)
	assert.Equal(t, "hdx-export-schools-point", requests[0].FileName)
	assert.Equal(t, []string{"point"}, requests[0].GeometryType)
	assert.Equal(t, "hdx-export-schools-polygon", requests[1].FileName)
	assert.Equal(t, "hdx-export-everything-point", requests[2].FileName)
	assert.Equal(t, "hdx-export-everything-line", requests[3].FileName)
	assert.Equal(t, "hdx-export-everything-polygon", requests[4].FileName)

	require.Len(t, responses, 5)
	for _, resp := range responses {
		assert.Equal(t, "gpkg", resp["output_name"])
	}
	assert.Equal(t, "schools", responses[0]["theme"])
	assert.Equal(t, "everything", responses[2]["theme"])
}

func TestGalaxyRequiresMapping(t *testing.T) {
	s := &Galaxy{Hostname: "http://galaxy.example.com", Region: geom.NewBBox(0, 0, 1, 1)}
	_, err := s.Fetch(context.Background(), "geojson")
	require.Error(t, err)
	_, err = s.FetchPerTheme(context.Background(), "geojson")
	require.Error(t, err)
}

func TestGalaxyHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	s := &Galaxy{
		Hostname: ts.URL,
		Region:   geom.NewBBox(0, 0, 1, 1),
		Client:   ts.Client(),
		Mapping: &mapping.Mapping{Themes: []mapping.Theme{
			{Name: "schools", Points: true, Matcher: expr.Equals{Key: "amenity", Value: "school"}},
		}},
	}
	_, err := s.Fetch(context.Background(), "geojson")
	require.Error(t, err)
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Contains(t, backendErr.Reason, "502")
}
