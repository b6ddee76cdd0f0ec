package pmtiles

import (
	"bytes"
	"testing"

	"github.com/protomaps/tilekiln/format"
)

func TestEntriesRoundTrip(t *testing.T) {
	entries := []EntryV3{
		{TileID: 0, Offset: 0, Length: 100, RunLength: 1},
		{TileID: 1, Offset: 100, Length: 50, RunLength: 3},
		{TileID: 10, Offset: 150, Length: 200, RunLength: 1},
		{TileID: 11, Offset: 100, Length: 50, RunLength: 1}, // shares content with TileID 1
	}

	encoded, err := SerializeEntries(entries, format.Gzip)
	if err != nil {
		t.Fatalf("SerializeEntries: %v", err)
	}
	decoded, err := DeserializeEntries(encoded, format.Gzip)
	if err != nil {
		t.Fatalf("DeserializeEntries: %v", err)
	}
	if len(decoded) != len(entries) {
		t.Fatalf("decoded %d entries, want %d", len(decoded), len(entries))
	}
	for i := range entries {
		if decoded[i] != entries[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, decoded[i], entries[i])
		}
	}
}

func TestFindTileMatchesWithinRun(t *testing.T) {
	entries := []EntryV3{
		{TileID: 0, Offset: 0, Length: 10, RunLength: 1},
		{TileID: 5, Offset: 10, Length: 10, RunLength: 4}, // covers tile_ids 5..8
		{TileID: 20, Offset: 20, Length: 10, RunLength: 1},
	}

	if _, ok := findTile(entries, 3); ok {
		t.Fatalf("tile_id 3 should not be found")
	}
	e, ok := findTile(entries, 7)
	if !ok || e.TileID != 5 {
		t.Fatalf("findTile(7) = (%+v, %v), want the run starting at 5", e, ok)
	}
	if _, ok := findTile(entries, 9); ok {
		t.Fatalf("tile_id 9 is past the run and should not be found")
	}
	if _, ok := findTile(entries, 21); ok {
		t.Fatalf("tile_id 21 is past the last entry and should not be found")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := map[string]interface{}{"name": "test", "vector_layers": []interface{}{}}
	encoded, err := SerializeMetadata(meta, format.Gzip)
	if err != nil {
		t.Fatalf("SerializeMetadata: %v", err)
	}
	decoded, err := DeserializeMetadata(bytes.NewReader(encoded), format.Gzip)
	if err != nil {
		t.Fatalf("DeserializeMetadata: %v", err)
	}
	if decoded["name"] != "test" {
		t.Fatalf("decoded metadata missing name field: %+v", decoded)
	}
}

func TestOptimizeDirectoriesSplitsLargeDirectories(t *testing.T) {
	var entries []EntryV3
	for i := uint64(0); i < 20000; i++ {
		entries = append(entries, EntryV3{TileID: i, Offset: i * 100, Length: 100, RunLength: 1})
	}

	rootBytes, leavesBytes, numLeaves, err := optimizeDirectories(entries, rootBudget-HeaderV3LenBytes, format.Gzip)
	if err != nil {
		t.Fatalf("optimizeDirectories: %v", err)
	}
	if len(rootBytes) > rootBudget-HeaderV3LenBytes {
		t.Fatalf("root directory %d bytes exceeds budget", len(rootBytes))
	}
	if numLeaves == 0 || len(leavesBytes) == 0 {
		t.Fatalf("expected a large directory to spill into leaves")
	}
}
