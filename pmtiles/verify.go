package pmtiles

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/protomaps/tilekiln/coord"
)

// Verify checks that an archive's header counters match its directory
// contents, and that a clustered archive's tile data is actually in
// offset order (spec.md's supplemental archive self-check, grounded on the
// teacher's original `pmtiles verify`).
func Verify(ds DataSource) error {
	headerBytes, err := ds.ReadRange(0, HeaderV3LenBytes)
	if err != nil {
		return err
	}
	header, err := DeserializeHeader(headerBytes)
	if err != nil {
		return err
	}

	size, err := ds.Size()
	if err != nil {
		return err
	}
	// Sections need not be contiguous (the writer reserves a fixed
	// header+root budget with trailing padding before metadata), so the
	// implied size is the furthest extent of any section, not their sum.
	expectedSize := uint64(HeaderV3LenBytes)
	for _, end := range []uint64{
		header.RootOffset + header.RootLength,
		header.MetadataOffset + header.MetadataLength,
		header.LeafDirectoryOffset + header.LeafDirectoryLength,
		header.TileDataOffset + header.TileDataLength,
	} {
		if end > expectedSize {
			expectedSize = end
		}
	}
	if size < expectedSize {
		return fmt.Errorf("pmtiles: archive length %d is shorter than its furthest declared section end %d", size, expectedSize)
	}

	minTileID, maxTileID := uint64(math.MaxUint64), uint64(0)
	addressedTiles, tileEntries := uint64(0), uint64(0)
	offsets := roaring64.New()
	var currentOffset uint64
	var invalid []string

	if err := IterateEntries(header, ds.ReadRange, func(e EntryV3) {
		newContent := !offsets.Contains(e.Offset)
		offsets.Add(e.Offset)
		addressedTiles += uint64(e.RunLength)
		tileEntries++

		if e.TileID < minTileID {
			minTileID = e.TileID
		}
		if e.TileID > maxTileID {
			maxTileID = e.TileID
		}
		if e.Offset+uint64(e.Length) > header.TileDataLength {
			invalid = append(invalid, fmt.Sprintf("entry %+v lies outside the tile data section", e))
		}
		// entries reusing already-seen content may point back at it; only
		// first occurrences must follow the running offset.
		if header.Clustered && newContent {
			if e.Offset != currentOffset {
				invalid = append(invalid, fmt.Sprintf("out-of-order entry %+v in clustered archive", e))
			}
			currentOffset += uint64(e.Length)
		}
	}); err != nil {
		return err
	}

	if len(invalid) > 0 {
		return fmt.Errorf("pmtiles: %d structural issue(s), first: %s", len(invalid), invalid[0])
	}
	if addressedTiles != header.AddressedTilesCount {
		return fmt.Errorf("pmtiles: header addressed_tiles_count=%d but %d tiles addressed", header.AddressedTilesCount, addressedTiles)
	}
	if tileEntries != header.TileEntriesCount {
		return fmt.Errorf("pmtiles: header tile_entries_count=%d but %d tile entries", header.TileEntriesCount, tileEntries)
	}
	if offsets.GetCardinality() != header.TileContentsCount {
		return fmt.Errorf("pmtiles: header tile_contents_count=%d but %d distinct tile contents", header.TileContentsCount, offsets.GetCardinality())
	}
	if minC, err := coord.FromID(minTileID); err == nil && minC.Level != header.MinZoom {
		return fmt.Errorf("pmtiles: header min_zoom=%d does not match minimum tile zoom %d", header.MinZoom, minC.Level)
	}
	if maxC, err := coord.FromID(maxTileID); err == nil && maxC.Level != header.MaxZoom {
		return fmt.Errorf("pmtiles: header max_zoom=%d does not match maximum tile zoom %d", header.MaxZoom, maxC.Level)
	}
	if header.CenterZoom < header.MinZoom || header.CenterZoom > header.MaxZoom {
		return fmt.Errorf("pmtiles: header center_zoom=%d not within [min_zoom,max_zoom]", header.CenterZoom)
	}
	if header.MinLonE7 >= header.MaxLonE7 || header.MinLatE7 >= header.MaxLatE7 {
		return fmt.Errorf("pmtiles: header bounds have non-positive area")
	}

	return nil
}
