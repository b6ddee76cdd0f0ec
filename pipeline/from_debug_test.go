package pipeline

import (
	"testing"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
)

func TestFromDebugVectorTileLayersCarryCoordinate(t *testing.T) {
	d := NewFromDebug(format.MVT)
	c := coord.Coord{Level: 3, X: 1, Y: 2}
	s, err := d.GetStream(coord.NewFull(3))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	var found bool
	var value interface{}
	for _, item := range s.Items {
		if item.Coord != c {
			continue
		}
		found = true
		layers, err := item.Value.Vector()
		if err != nil {
			t.Fatalf("Vector: %v", err)
		}
		names := map[string]bool{}
		for _, layer := range layers {
			names[layer.Name] = true
		}
		for _, want := range []string{"background", "debug_x", "debug_y", "debug_z"} {
			if !names[want] {
				t.Fatalf("missing layer %q, have %v", want, names)
			}
		}
		for _, layer := range layers {
			switch layer.Name {
			case "debug_x":
				value = layer.Features[0].Properties["value"]
				if value != float64(1) {
					t.Fatalf("debug_x value = %v, want 1", value)
				}
			case "debug_y":
				value = layer.Features[0].Properties["value"]
				if value != float64(2) {
					t.Fatalf("debug_y value = %v, want 2", value)
				}
			case "debug_z":
				value = layer.Features[0].Properties["value"]
				if value != float64(3) {
					t.Fatalf("debug_z value = %v, want 3", value)
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected a tile at %v", c)
	}
}

func TestFromDebugRasterTileDecodes(t *testing.T) {
	d := NewFromDebug(format.PNG)
	c := coord.Coord{Level: 3, X: 1, Y: 2}
	s, err := d.GetStream(coord.NewFull(3))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	for _, item := range s.Items {
		if item.Coord != c {
			continue
		}
		img, err := item.Value.Image()
		if err != nil {
			t.Fatalf("Image: %v", err)
		}
		b := img.Bounds()
		if b.Dx() != 256 || b.Dy() != 256 {
			t.Fatalf("expected 256x256, got %dx%d", b.Dx(), b.Dy())
		}
		return
	}
	t.Fatalf("expected a tile at %v", c)
}

func TestFromDebugParametersAdvertiseUncompressed(t *testing.T) {
	d := NewFromDebug(format.Unknown)
	p, err := d.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if p.Format != format.MVT {
		t.Fatalf("expected default format MVT, got %v", p.Format)
	}
	if p.Compression != format.Uncompressed {
		t.Fatalf("expected Uncompressed, got %v", p.Compression)
	}
	if zmax, ok := p.Pyramid.ZoomMax(); !ok || zmax != debugMaxZoom {
		t.Fatalf("ZoomMax = %d,%v, want %d,true", zmax, ok, debugMaxZoom)
	}
}
