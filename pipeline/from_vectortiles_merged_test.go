package pipeline

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// vectorLeaf is a minimal Operation returning one fixed MVT tile with a
// single named layer, used to exercise from_vectortiles_merged's layer join.
type vectorLeaf struct {
	layerName string
	value     string
}

func (v *vectorLeaf) Parameters() (Parameters, error) {
	return Parameters{Format: format.MVT, Compression: format.Uncompressed, Pyramid: coord.NewFullPyramid(2)}, nil
}

func (v *vectorLeaf) TileJSON() (pmtiles.TileJSON, error) { return pmtiles.TileJSON{}, nil }

func (v *vectorLeaf) Traversal() (coord.Traversal, error) { return coord.Any, nil }

func (v *vectorLeaf) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	c := coord.Coord{Level: 0, X: 0, Y: 0}
	mt := maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.Level))
	bound := mt.Bound()
	square := orb.Polygon{orb.Ring{
		bound.Min,
		orb.Point{bound.Max[0], bound.Min[1]},
		bound.Max,
		orb.Point{bound.Min[0], bound.Max[1]},
		bound.Min,
	}}
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(square)
	f.Properties["value"] = v.value
	fc.Append(f)
	layer := mvt.NewLayer(v.layerName, fc)
	layer.ProjectToTile(mt)

	encoded, err := tile.EncodeVector(mvt.Layers{layer})
	if err != nil {
		return tile.Stream[*tile.Tile]{}, err
	}
	return tile.FromItems([]tile.Item[*tile.Tile]{
		{Coord: c, Value: tile.New(format.MVT, format.Uncompressed, encoded)},
	}), nil
}

func TestFromVectortilesMergedJoinsLayersByName(t *testing.T) {
	a := &vectorLeaf{layerName: "roads", value: "a"}
	b := &vectorLeaf{layerName: "buildings", value: "b"}

	merged, err := NewFromVectortilesMerged([]Operation{a, b})
	if err != nil {
		t.Fatalf("NewFromVectortilesMerged: %v", err)
	}
	s, err := merged.GetStream(coord.NewFull(0))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if len(s.Items) != 1 {
		t.Fatalf("expected exactly one merged tile, got %d", len(s.Items))
	}
	layers, err := s.Items[0].Value.Vector()
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	names := map[string]bool{}
	for _, l := range layers {
		names[l.Name] = true
	}
	if !names["roads"] || !names["buildings"] {
		t.Fatalf("expected both roads and buildings layers, got %v", names)
	}
}

func TestFromVectortilesMergedConcatenatesSameNamedLayer(t *testing.T) {
	a := &vectorLeaf{layerName: "roads", value: "a"}
	b := &vectorLeaf{layerName: "roads", value: "b"}

	merged, err := NewFromVectortilesMerged([]Operation{a, b})
	if err != nil {
		t.Fatalf("NewFromVectortilesMerged: %v", err)
	}
	s, err := merged.GetStream(coord.NewFull(0))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	layers, err := s.Items[0].Value.Vector()
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("expected a single merged 'roads' layer, got %d layers", len(layers))
	}
	if len(layers[0].Features) != 2 {
		t.Fatalf("expected features from both sources concatenated, got %d", len(layers[0].Features))
	}
}

func TestFromVectortilesMergedRejectsRasterSource(t *testing.T) {
	rasterLeaf := NewFromDebug(format.PNG)
	vectorSrc := &vectorLeaf{layerName: "roads", value: "a"}
	if _, err := NewFromVectortilesMerged([]Operation{rasterLeaf, vectorSrc}); err == nil {
		t.Fatalf("expected a raster source to be rejected")
	}
}
