package geom

import (
	"encoding/json"
	"testing"
)

func TestNewPolygon(t *testing.T) {
	if _, err := NewPolygon([]Point{{0, 0}, {1, 0}, {1, 1}}); err == nil {
		t.Fatal("expected error for short ring")
	}
	if _, err := NewPolygon([]Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}); err == nil {
		t.Fatal("expected error for unclosed ring")
	}
	r, err := NewPolygon([]Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsPolygon() {
		t.Fatal("not a polygon")
	}
	if b := r.Bounds(); b != (Bounds{0, 0, 2, 2}) {
		t.Fatal(b)
	}
	if a := r.Area(); a != 4 {
		t.Fatal(a)
	}
}

func TestBBox(t *testing.T) {
	r := NewBBox(-200, -100, 200, 100)
	if r.IsPolygon() {
		t.Fatal("bbox reported as polygon")
	}
	if b := r.Bounds(); b != (Bounds{-180, -90, 180, 90}) {
		t.Fatal(b)
	}
	if s := r.BBoxString(); s != "-90,-180,90,180" {
		t.Fatal(s)
	}
}

func TestOverpassGeom(t *testing.T) {
	r := NewBBox(5.9, 47.2, 10.5, 55.1)
	if s := r.OverpassGeom(); s != "47.2,5.9,55.1,10.5" {
		t.Fatal(s)
	}

	p, err := NewPolygon([]Point{{8, 53}, {9, 53}, {9, 54}, {8, 53}})
	if err != nil {
		t.Fatal(err)
	}
	if s := p.OverpassGeom(); s != `poly:"53 8 53 9 54 9 53 8"` {
		t.Fatal(s)
	}
	if s := p.OQLBounds(); s != "8,53;9,53;9,54;8,53" {
		t.Fatal(s)
	}
}

func TestGeoJSON(t *testing.T) {
	p, err := NewPolygon([]Point{{8, 53}, {9, 53}, {9, 54}, {8, 53}})
	if err != nil {
		t.Fatal(err)
	}
	buf, err := json.Marshal(p.GeoJSONFeature())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[8,53],[9,53],[9,54],[8,53]]]}}`
	if string(buf) != want {
		t.Fatal(string(buf))
	}

	box := NewBBox(0, 0, 1, 2)
	g := box.GeoJSON()
	if len(g.Coordinates[0]) != 5 {
		t.Fatal(g.Coordinates)
	}
}

func TestRegionFromGeoJSON(t *testing.T) {
	geometry := `{"type": "Polygon", "coordinates": [[[8, 53], [9, 53], [9, 54], [8, 53]]]}`
	r, err := RegionFromGeoJSON([]byte(geometry))
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsPolygon() {
		t.Fatal("not a polygon")
	}
	if b := r.Bounds(); b != (Bounds{8, 53, 9, 54}) {
		t.Fatal(b)
	}

	feature := `{"type": "Feature", "geometry": ` + geometry + `}`
	r2, err := RegionFromGeoJSON([]byte(feature))
	if err != nil {
		t.Fatal(err)
	}
	if r2.Bounds() != r.Bounds() {
		t.Fatal(r2.Bounds())
	}

	for _, doc := range []string{
		`{"type": "Point", "coordinates": [1, 2]}`,
		`{"type": "Polygon", "coordinates": []}`,
		`not json`,
	} {
		if _, err := RegionFromGeoJSON([]byte(doc)); err == nil {
			t.Fatalf("no error for %s", doc)
		}
	}
}
