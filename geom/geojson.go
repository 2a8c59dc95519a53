package geom

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Geometry is a GeoJSON geometry object. Only polygons occur here;
// bounding box regions are encoded as a five point ring.
type Geometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// Feature is a GeoJSON feature wrapping a single geometry. The local
// extractor expects region descriptors in this form.
type Feature struct {
	Type     string   `json:"type"`
	Geometry Geometry `json:"geometry"`
}

// GeoJSON returns the region as a GeoJSON polygon geometry.
func (r Region) GeoJSON() Geometry {
	var ring [][]float64
	if r.exterior != nil {
		ring = make([][]float64, len(r.exterior))
		for i, p := range r.exterior {
			ring[i] = []float64{p.Long, p.Lat}
		}
	} else {
		b := r.bounds
		ring = [][]float64{
			{b.West, b.South},
			{b.East, b.South},
			{b.East, b.North},
			{b.West, b.North},
			{b.West, b.South},
		}
	}
	return Geometry{Type: "Polygon", Coordinates: [][][]float64{ring}}
}

// GeoJSONFeature returns the region wrapped as a GeoJSON feature.
func (r Region) GeoJSONFeature() Feature {
	return Feature{Type: "Feature", Geometry: r.GeoJSON()}
}

// RegionFromGeoJSON parses a GeoJSON document (a polygon geometry, or a
// feature wrapping one) into a region. Only the exterior ring is used.
func RegionFromGeoJSON(doc []byte) (Region, error) {
	var feature Feature
	if err := json.Unmarshal(doc, &feature); err != nil {
		return Region{}, errors.Wrap(err, "parsing GeoJSON")
	}
	geometry := feature.Geometry
	if feature.Type != "Feature" {
		if err := json.Unmarshal(doc, &geometry); err != nil {
			return Region{}, errors.Wrap(err, "parsing GeoJSON")
		}
	}
	if geometry.Type != "Polygon" {
		return Region{}, errors.Errorf("unsupported geometry type %q", geometry.Type)
	}
	if len(geometry.Coordinates) == 0 {
		return Region{}, errors.New("polygon without exterior ring")
	}
	ring := geometry.Coordinates[0]
	exterior := make([]Point, len(ring))
	for i, coord := range ring {
		if len(coord) < 2 {
			return Region{}, errors.Errorf("invalid coordinate %v", coord)
		}
		exterior[i] = Point{Long: coord[0], Lat: coord[1]}
	}
	return NewPolygon(exterior)
}
