package pmtiles

import (
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/protomaps/tilekiln/coord"
)

// mergeEntry is one directory entry from one of the inputs being merged,
// alongside which input it came from and its original tile-data offset.
type mergeEntry struct {
	Entry       EntryV3
	InputIdx    int
	InputOffset uint64
}

// mergeOp is a batched, contiguous copy: Length bytes starting at Offset in
// input InputIdx's tile data section.
type mergeOp struct {
	InputIdx int
	Offset   uint64
	Length   uint64
}

type remapping struct {
	SrcOffset uint64
	DstOffset uint64
}

// prepareMergeInputs opens every input archive, validates they are
// clustered and share a tile type/compression, and validates their tile
// sets are pairwise disjoint (spec.md's merge precondition) using a
// roaring64 bitmap per archive, unioned incrementally so a non-disjoint
// pair is caught as soon as it's read rather than after a full scan.
func prepareMergeInputs(inputs []*FileDataSource) ([]HeaderV3, []mergeEntry, error) {
	var headers []HeaderV3
	var merged []mergeEntry
	union := roaring64.New()

	for inputIdx, ds := range inputs {
		headerBytes, err := ds.ReadRange(0, HeaderV3LenBytes)
		if err != nil {
			return nil, nil, err
		}
		h, err := DeserializeHeader(headerBytes)
		if err != nil {
			return nil, nil, err
		}
		headers = append(headers, h)

		if !h.Clustered {
			return nil, nil, fmt.Errorf("pmtiles: merge input %d must be clustered", inputIdx)
		}
		if inputIdx > 0 {
			if h.TileType != headers[0].TileType {
				return nil, nil, fmt.Errorf("pmtiles: merge inputs have different tile types")
			}
			if h.TileCompression != headers[0].TileCompression {
				return nil, nil, fmt.Errorf("pmtiles: merge inputs have different tile compressions")
			}
			if h.InternalCompression != headers[0].InternalCompression {
				return nil, nil, fmt.Errorf("pmtiles: merge inputs have different internal compressions")
			}
		}

		tileset := roaring64.New()
		if err := IterateEntries(h, ds.ReadRange, func(e EntryV3) {
			tileset.AddRange(e.TileID, e.TileID+uint64(e.RunLength))
			merged = append(merged, mergeEntry{Entry: e, InputOffset: e.Offset, InputIdx: inputIdx})
		}); err != nil {
			return nil, nil, err
		}

		if union.Intersects(tileset) {
			return nil, nil, fmt.Errorf("pmtiles: merge input %d's tileset intersects a prior input", inputIdx)
		}
		union.Or(tileset)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Entry.TileID < merged[j].Entry.TileID })
	return headers, merged, nil
}

// remapMergeEntries assigns each merged entry a position in the combined
// tile data stream, deduplicating by original (input, offset) so a tile
// repeated within one input's own directory (already RLE'd or dedup'd)
// isn't copied twice.
func remapMergeEntries(entries []mergeEntry, numInputs int) ([]mergeEntry, uint64, uint64, uint64, error) {
	acc := uint64(0)
	addressedTiles := uint64(0)
	tileContents := uint64(0)
	remappings := make([][]remapping, numInputs)

	for idx, me := range entries {
		rm := remappings[me.InputIdx]
		if len(rm) > 0 && me.InputOffset < rm[len(rm)-1].SrcOffset {
			i, ok := slices.BinarySearchFunc(rm, me.InputOffset, func(r remapping, k uint64) int {
				switch {
				case r.SrcOffset < k:
					return -1
				case r.SrcOffset > k:
					return 1
				default:
					return 0
				}
			})
			if !ok {
				return nil, 0, 0, 0, fmt.Errorf("pmtiles: merge input %d has out-of-order entries", me.InputIdx)
			}
			entries[idx].Entry.Offset = rm[i].DstOffset
		} else {
			entries[idx].Entry.Offset = acc
			remappings[me.InputIdx] = append(remappings[me.InputIdx], remapping{SrcOffset: me.InputOffset, DstOffset: acc})
			acc += uint64(me.Entry.Length)
			tileContents++
		}
		addressedTiles += uint64(entries[idx].Entry.RunLength)
	}
	return entries, addressedTiles, tileContents, acc, nil
}

// batchMergeEntries combines contiguous per-input reads into single copy
// operations, so the output pass does one read per physically-contiguous
// run rather than one per tile entry.
func batchMergeEntries(entries []mergeEntry, numInputs int) []mergeOp {
	lastOffset := make([]uint64, numInputs)
	var ops []mergeOp
	for _, me := range entries {
		if me.InputOffset < lastOffset[me.InputIdx] {
			continue
		}
		last := len(ops) - 1
		length := uint64(me.Entry.Length)
		if last >= 0 && ops[last].InputIdx == me.InputIdx && me.InputOffset == lastOffset[me.InputIdx]+ops[last].Length {
			ops[last].Length += length
		} else {
			ops = append(ops, mergeOp{InputIdx: me.InputIdx, Offset: me.InputOffset, Length: length})
		}
		lastOffset[me.InputIdx] = me.InputOffset
	}
	return ops
}

func mergeZoomBounds(entries []mergeEntry) (uint8, uint8, error) {
	first, err := coord.FromID(entries[0].Entry.TileID)
	if err != nil {
		return 0, 0, err
	}
	last := entries[len(entries)-1].Entry
	lastCoord, err := coord.FromID(last.TileID + uint64(last.RunLength) - 1)
	if err != nil {
		return 0, 0, err
	}
	return first.Level, lastCoord.Level, nil
}

func mergeBounds(headers []HeaderV3) (int32, int32, int32, int32) {
	minLon, minLat := int32(math.MaxInt32), int32(math.MaxInt32)
	maxLon, maxLat := int32(math.MinInt32), int32(math.MinInt32)
	for _, h := range headers {
		minLon, minLat = min32i(minLon, h.MinLonE7), min32i(minLat, h.MinLatE7)
		maxLon, maxLat = max32i(maxLon, h.MaxLonE7), max32i(maxLat, h.MaxLatE7)
	}
	return minLon, minLat, maxLon, maxLat
}

func min32i(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32i(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Merge combines N disjoint, clustered archives into a single output
// archive. Tile content is copied in batched, contiguous reads per input;
// the first input's metadata is kept verbatim (spec.md's supplemental
// merge operation, grounded on the teacher's original `pmtiles merge`).
func Merge(inputPaths []string, outputPath string) (HeaderV3, error) {
	var sources []*FileDataSource
	for _, p := range inputPaths {
		ds, err := OpenFileDataSource(p)
		if err != nil {
			return HeaderV3{}, err
		}
		sources = append(sources, ds)
		defer ds.Close()
	}

	headers, merged, err := prepareMergeInputs(sources)
	if err != nil {
		return HeaderV3{}, err
	}

	renumbered, addressedTiles, tileContents, tileDataLength, err := remapMergeEntries(merged, len(headers))
	if err != nil {
		return HeaderV3{}, err
	}

	entries := make([]EntryV3, len(renumbered))
	for i := range renumbered {
		entries[i] = renumbered[i].Entry
	}
	rootBytes, leavesBytes, _, err := optimizeDirectories(entries, rootBudget-HeaderV3LenBytes, headers[0].InternalCompression)
	if err != nil {
		return HeaderV3{}, err
	}

	minZoom, maxZoom, err := mergeZoomBounds(renumbered)
	if err != nil {
		return HeaderV3{}, err
	}
	minLon, minLat, maxLon, maxLat := mergeBounds(headers)

	var header HeaderV3
	header.RootOffset = HeaderV3LenBytes
	header.RootLength = uint64(len(rootBytes))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = headers[0].MetadataLength
	header.InternalCompression = headers[0].InternalCompression
	header.TileCompression = headers[0].TileCompression
	header.TileType = headers[0].TileType
	header.LeafDirectoryOffset = header.MetadataOffset + header.MetadataLength
	header.LeafDirectoryLength = uint64(len(leavesBytes))
	header.TileDataOffset = header.LeafDirectoryOffset + header.LeafDirectoryLength
	header.TileDataLength = tileDataLength
	header.AddressedTilesCount = addressedTiles
	header.TileEntriesCount = uint64(len(renumbered))
	header.TileContentsCount = tileContents
	header.Clustered = true
	header.MinZoom = minZoom
	header.MaxZoom = maxZoom
	header.MinLonE7, header.MinLatE7 = minLon, minLat
	header.MaxLonE7, header.MaxLatE7 = maxLon, maxLat
	header.CenterZoom = maxZoom
	header.CenterLonE7 = (minLon + maxLon) / 2
	header.CenterLatE7 = (minLat + maxLat) / 2

	output, err := os.Create(outputPath)
	if err != nil {
		return HeaderV3{}, err
	}
	defer output.Close()

	output.Write(SerializeHeader(header))
	output.Write(rootBytes)

	firstMeta, err := sources[0].ReadRange(headers[0].MetadataOffset, headers[0].MetadataLength)
	if err != nil {
		return HeaderV3{}, err
	}
	output.Write(firstMeta)
	output.Write(leavesBytes)

	ops := batchMergeEntries(renumbered, len(headers))
	for _, op := range ops {
		data, err := sources[op.InputIdx].ReadRange(headers[op.InputIdx].TileDataOffset+op.Offset, op.Length)
		if err != nil {
			return HeaderV3{}, err
		}
		output.Write(data)
	}

	return header, nil
}
