package pmtiles

import (
	"fmt"
	"sort"
	"testing"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
)

// fakeSource is a minimal TileSource over a full pyramid of synthetic tiles,
// used to drive Write without a real pipeline operation.
type fakeSource struct {
	maxZoom     uint8
	duplicate   bool // makes every tile at a level share one payload, exercising dedup
	compression format.Compression
}

func (s *fakeSource) Traversal() (coord.Traversal, error) {
	return coord.New(coord.PMTiles, 4, 256)
}

func (s *fakeSource) Pyramid() *coord.Pyramid {
	return coord.NewFullPyramid(s.maxZoom)
}

func (s *fakeSource) TileType() format.Format { return format.MVT }

func (s *fakeSource) TileCompression() format.Compression { return s.compression }

func (s *fakeSource) Metadata() (map[string]interface{}, error) {
	return map[string]interface{}{"name": "fake", "format": "mvt"}, nil
}

func (s *fakeSource) GetStream(bbox coord.BBox) ([]TileResult, error) {
	coords := bbox.Coords()
	// the writer requires AddTileIsNew calls in strictly increasing tile_id
	// order, so a source must yield each block's tiles in Hilbert order.
	sort.Slice(coords, func(i, j int) bool { return coords[i].ID() < coords[j].ID() })

	var out []TileResult
	for _, c := range coords {
		var payload []byte
		if s.duplicate {
			payload = []byte(fmt.Sprintf("level-%d-payload", c.Level))
		} else {
			payload = []byte(fmt.Sprintf("tile-%d-%d-%d", c.Level, c.X, c.Y))
		}
		encoded, err := format.Compress(payload, s.compression)
		if err != nil {
			return nil, err
		}
		out = append(out, TileResult{Coord: c, Bytes: encoded})
	}
	return out, nil
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	src := &fakeSource{maxZoom: 3, compression: format.Gzip}
	sink := newMemSink(rootBudget)

	header, err := Write(sink, src, format.Gzip)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if header.TileType != format.MVT {
		t.Fatalf("tile type = %v, want MVT", header.TileType)
	}
	if header.MinZoom != 0 || header.MaxZoom != 3 {
		t.Fatalf("zoom bounds = [%d,%d], want [0,3]", header.MinZoom, header.MaxZoom)
	}
	if !header.Clustered {
		t.Fatalf("expected a freshly written archive to be clustered")
	}

	ds := NewMemoryDataSource(sink.Bytes())
	reader, err := Open(ds)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	if reader.Header.AddressedTilesCount != header.AddressedTilesCount {
		t.Fatalf("reader header addressed_tiles_count mismatch")
	}

	full := coord.NewFullPyramid(3)
	for z := uint8(0); z <= 3; z++ {
		for _, c := range full.Level(z).Coords() {
			data, ok, err := reader.GetTile(c)
			if err != nil {
				t.Fatalf("GetTile(%v): %v", c, err)
			}
			if !ok {
				t.Fatalf("GetTile(%v): not found", c)
			}
			plain, err := format.Decompress(data, format.Gzip)
			if err != nil {
				t.Fatalf("Decompress(%v): %v", c, err)
			}
			want := fmt.Sprintf("tile-%d-%d-%d", c.Level, c.X, c.Y)
			if string(plain) != want {
				t.Fatalf("GetTile(%v) = %q, want %q", c, plain, want)
			}
		}
	}

	missing := coord.Coord{Level: 5, X: 0, Y: 0}
	if _, ok, err := reader.GetTile(missing); err != nil || ok {
		t.Fatalf("GetTile(%v) = (ok=%v, err=%v), want not found", missing, ok, err)
	}

	if err := Verify(ds); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestWriteDedupsIdenticalTiles(t *testing.T) {
	src := &fakeSource{maxZoom: 2, duplicate: true, compression: format.Uncompressed}
	sink := newMemSink(rootBudget)

	header, err := Write(sink, src, format.Uncompressed)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	// every tile at a given level shares one payload, so distinct tile
	// contents should equal the number of levels present, not the tile count.
	if header.TileContentsCount > uint64(src.maxZoom+1) {
		t.Fatalf("tile_contents_count = %d, want at most %d (one per level)", header.TileContentsCount, src.maxZoom+1)
	}
	if header.TileEntriesCount > header.AddressedTilesCount {
		t.Fatalf("tile_entries_count %d exceeds addressed_tiles_count %d", header.TileEntriesCount, header.AddressedTilesCount)
	}

	ds := NewMemoryDataSource(sink.Bytes())
	if err := Verify(ds); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
