package pipeline

import (
	"testing"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
)

// TestFilterClampsZoomRange exercises spec.md §8's literal scenario: on top
// of from_debug(format=mvt), filter(level_min=1, level_max=3) returns a tile
// for any coordinate with 1<=z<=3 and nothing outside that range.
func TestFilterClampsZoomRange(t *testing.T) {
	debug := NewFromDebug(format.MVT)
	min := uint8(1)
	max := uint8(3)
	f := NewFilter(debug, FilterOptions{LevelMin: &min, LevelMax: &max})

	p, err := f.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if got, ok := p.Pyramid.ZoomMin(); !ok || got != 1 {
		t.Fatalf("ZoomMin = %d,%v, want 1,true", got, ok)
	}
	if got, ok := p.Pyramid.ZoomMax(); !ok || got != 3 {
		t.Fatalf("ZoomMax = %d,%v, want 3,true", got, ok)
	}

	for _, c := range []coord.Coord{{Level: 1, X: 0, Y: 0}, {Level: 2, X: 1, Y: 1}, {Level: 3, X: 2, Y: 2}} {
		if !p.Pyramid.ContainsCoord(c) {
			t.Fatalf("expected pyramid to contain %v", c)
		}
		s, err := f.GetStream(coord.NewFull(c.Level))
		if err != nil {
			t.Fatalf("GetStream: %v", err)
		}
		found := false
		for _, item := range s.Items {
			if item.Coord == c {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected a tile at %v", c)
		}
	}

	for _, z := range []uint8{0, 4} {
		c := coord.Coord{Level: z, X: 0, Y: 0}
		if p.Pyramid.ContainsCoord(c) {
			t.Fatalf("expected pyramid to exclude level %d", z)
		}
		s, err := f.GetStream(coord.NewFull(z))
		if err != nil {
			t.Fatalf("GetStream: %v", err)
		}
		if len(s.Items) != 0 {
			t.Fatalf("expected no tiles at level %d, got %d", z, len(s.Items))
		}
	}
}

func TestFilterBboxNarrowsPyramid(t *testing.T) {
	debug := NewFromDebug(format.MVT)
	bbox := &LonLatBBox{MinLon: -1, MinLat: -1, MaxLon: 1, MaxLat: 1}
	f := NewFilter(debug, FilterOptions{Bbox: bbox})

	p, err := f.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	full := coord.NewFull(4)
	clamped := p.Pyramid.Level(4)
	if clamped.Count() >= full.Count() {
		t.Fatalf("expected bbox filter to shrink level 4, got count %d (full %d)", clamped.Count(), full.Count())
	}
}
