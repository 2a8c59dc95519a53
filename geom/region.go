// Package geom provides the extraction region geometry and its
// backend-specific encodings. A Region is a single polygon or a bounding
// box; it is never modified after construction, sources only read it.
package geom

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Point struct {
	Long float64
	Lat  float64
}

type Bounds struct {
	West  float64
	South float64
	East  float64
	North float64
}

// Region is the area an extract is clipped to.
type Region struct {
	exterior []Point // nil for plain bounding boxes
	bounds   Bounds
}

// NewPolygon creates a polygon region from an exterior ring. The ring
// must be closed (first == last) and contain at least four points.
func NewPolygon(exterior []Point) (Region, error) {
	if len(exterior) < 4 {
		return Region{}, errors.Errorf("polygon ring with %d points", len(exterior))
	}
	if exterior[0] != exterior[len(exterior)-1] {
		return Region{}, errors.New("polygon ring not closed")
	}
	r := Region{exterior: exterior}
	r.bounds = Bounds{exterior[0].Long, exterior[0].Lat, exterior[0].Long, exterior[0].Lat}
	for _, p := range exterior[1:] {
		if p.Long < r.bounds.West {
			r.bounds.West = p.Long
		}
		if p.Long > r.bounds.East {
			r.bounds.East = p.Long
		}
		if p.Lat < r.bounds.South {
			r.bounds.South = p.Lat
		}
		if p.Lat > r.bounds.North {
			r.bounds.North = p.Lat
		}
	}
	return r, nil
}

// NewBBox creates a bounding box region.
func NewBBox(west, south, east, north float64) Region {
	return Region{bounds: Bounds{west, south, east, north}}
}

// IsPolygon reports whether the region is a real polygon and not just a
// bounding box.
func (r Region) IsPolygon() bool {
	return r.exterior != nil
}

// Exterior returns the exterior ring of a polygon region, nil for boxes.
func (r Region) Exterior() []Point {
	return r.exterior
}

// Bounds returns the bounding box, clamped to valid lon/lat ranges.
func (r Region) Bounds() Bounds {
	b := r.bounds
	if b.West < -180 {
		b.West = -180
	}
	if b.South < -90 {
		b.South = -90
	}
	if b.East > 180 {
		b.East = 180
	}
	if b.North > 90 {
		b.North = 90
	}
	return b
}

// Area returns the planar area in square degrees. Used by the local
// extractor source to decide whether clipping before tag filtering is
// worth an extra pass over the data.
func (r Region) Area() float64 {
	if r.exterior == nil {
		b := r.bounds
		return (b.East - b.West) * (b.North - b.South)
	}
	// shoelace formula
	area := 0.0
	for i := 0; i < len(r.exterior)-1; i++ {
		p, q := r.exterior[i], r.exterior[i+1]
		area += p.Long*q.Lat - q.Long*p.Lat
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}

// BBoxString returns the clamped bounds as "south,west,north,east", the
// order Overpass and the Galaxy API expect.
func (r Region) BBoxString() string {
	b := r.Bounds()
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// OverpassGeom returns the spatial literal for an Overpass query: a
// quoted poly filter for polygons, the bbox string otherwise.
func (r Region) OverpassGeom() string {
	if r.exterior == nil {
		return r.BBoxString()
	}
	coords := make([]string, len(r.exterior))
	for i, p := range r.exterior {
		coords[i] = fmt.Sprintf("%g %g", p.Lat, p.Long)
	}
	return fmt.Sprintf("poly:%q", strings.Join(coords, " "))
}

// OQLBounds returns the bounds parameter for the translation engine:
// semicolon separated lon,lat pairs for polygons, the bbox string
// otherwise.
func (r Region) OQLBounds() string {
	if r.exterior == nil {
		return r.BBoxString()
	}
	coords := make([]string, len(r.exterior))
	for i, p := range r.exterior {
		coords[i] = fmt.Sprintf("%g,%g", p.Long, p.Lat)
	}
	return strings.Join(coords, ";")
}
