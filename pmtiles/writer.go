package pmtiles

import (
	"fmt"
	"io"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/tkerr"
)

// rootBudget is the fixed space reserved for header + root directory at the
// start of every archive (spec.md 4.6 step 1).
const rootBudget = 16384

// TileSource is anything the writer can stream tiles from: a pipeline
// operation's terminal GetStream, a reader being re-clustered, or a set of
// merged archives. It mirrors the pipeline Operation capability set so the
// writer never imports the pipeline package back.
//
// GetStream must yield every tile in bbox ordered by ascending Coord.ID():
// the writer feeds results straight into a Resolver, which requires
// strictly increasing tile_id to fold repeats into directory runs and to
// keep the output directory delta-encodable.
type TileSource interface {
	Traversal() (coord.Traversal, error)
	Pyramid() *coord.Pyramid
	TileType() format.Format
	TileCompression() format.Compression
	Metadata() (map[string]interface{}, error)
	GetStream(bbox coord.BBox) ([]TileResult, error)
}

// TileResult is one (coord, bytes) pair yielded by a TileSource, bytes
// already encoded in the source's declared format and compression.
type TileResult struct {
	Coord coord.Coord
	Bytes []byte
}

// Sink is an output a writer can seek and append to, satisfied by an
// *os.File opened for read+write.
type Sink interface {
	io.WriterAt
	io.Writer
	Truncate(size int64) error
}

// Write streams src into sink following the spec.md 4.6 procedure: reserve
// the header+root budget, append metadata, stream tile bytes while
// deduplicating via a Resolver, then pack and backfill the directories and
// header.
func Write(sink Sink, src TileSource, internalCompression format.Compression) (HeaderV3, error) {
	if err := sink.Truncate(rootBudget); err != nil {
		return HeaderV3{}, fmt.Errorf("%w: reserving header budget: %v", tkerr.ErrIO, err)
	}
	pos := uint64(rootBudget)

	metadata, err := src.Metadata()
	if err != nil {
		return HeaderV3{}, err
	}
	metaBytes, err := SerializeMetadata(metadata, internalCompression)
	if err != nil {
		return HeaderV3{}, err
	}
	metaOffset := pos
	if _, err := sink.WriteAt(metaBytes, int64(pos)); err != nil {
		return HeaderV3{}, fmt.Errorf("%w: writing metadata: %v", tkerr.ErrIO, err)
	}
	pos += uint64(len(metaBytes))

	tileDataStart := pos
	traversal, err := src.Traversal()
	if err != nil {
		return HeaderV3{}, err
	}
	boxes, err := traversal.TraversePyramid(src.Pyramid())
	if err != nil {
		return HeaderV3{}, err
	}

	tileCompression := src.TileCompression()
	resolver := NewPrecompressedResolver(tileCompression)

	for _, box := range boxes {
		results, err := src.GetStream(box)
		if err != nil {
			return HeaderV3{}, err
		}
		for _, res := range results {
			isNew, data, err := resolver.AddTileIsNew(res.Coord.ID(), res.Bytes)
			if err != nil {
				return HeaderV3{}, err
			}
			if isNew {
				if _, err := sink.WriteAt(data, int64(pos)); err != nil {
					return HeaderV3{}, fmt.Errorf("%w: writing tile data: %v", tkerr.ErrIO, err)
				}
				pos += uint64(len(data))
			}
		}
	}
	tileDataEnd := pos

	rootBytes, leavesBytes, _, err := optimizeDirectories(resolver.Entries, rootBudget-HeaderV3LenBytes, internalCompression)
	if err != nil {
		return HeaderV3{}, err
	}

	if len(rootBytes) > rootBudget-HeaderV3LenBytes {
		return HeaderV3{}, fmt.Errorf("%w: root directory %d bytes exceeds budget %d", tkerr.ErrRootOverflow, len(rootBytes), rootBudget-HeaderV3LenBytes)
	}
	if _, err := sink.WriteAt(rootBytes, int64(HeaderV3LenBytes)); err != nil {
		return HeaderV3{}, fmt.Errorf("%w: writing root directory: %v", tkerr.ErrIO, err)
	}

	leafOffset := tileDataEnd
	if len(leavesBytes) > 0 {
		if _, err := sink.WriteAt(leavesBytes, int64(leafOffset)); err != nil {
			return HeaderV3{}, fmt.Errorf("%w: writing leaf directories: %v", tkerr.ErrIO, err)
		}
	}

	minZoom, maxZoom, minLon, minLat, maxLon, maxLat := summarizePyramid(src.Pyramid())

	header := HeaderV3{
		RootOffset:          HeaderV3LenBytes,
		RootLength:          uint64(len(rootBytes)),
		MetadataOffset:      metaOffset,
		MetadataLength:      uint64(len(metaBytes)),
		LeafDirectoryOffset: leafOffset,
		LeafDirectoryLength: uint64(len(leavesBytes)),
		TileDataOffset:      tileDataStart,
		TileDataLength:      tileDataEnd - tileDataStart,
		AddressedTilesCount: resolver.AddressedTiles,
		TileEntriesCount:    uint64(len(resolver.Entries)),
		TileContentsCount:   countDistinctContents(resolver.Entries),
		Clustered:           true,
		InternalCompression: internalCompression,
		TileCompression:     tileCompression,
		TileType:            src.TileType(),
		MinZoom:             minZoom,
		MaxZoom:             maxZoom,
		MinLonE7:            minLon,
		MinLatE7:            minLat,
		MaxLonE7:            maxLon,
		MaxLatE7:            maxLat,
		CenterZoom:          maxZoom,
		CenterLonE7:         (minLon + maxLon) / 2,
		CenterLatE7:         (minLat + maxLat) / 2,
	}

	if _, err := sink.WriteAt(SerializeHeader(header), 0); err != nil {
		return HeaderV3{}, fmt.Errorf("%w: writing header: %v", tkerr.ErrIO, err)
	}

	return header, nil
}

func countDistinctContents(entries []EntryV3) uint64 {
	seen := make(map[[2]uint64]struct{}, len(entries))
	for _, e := range entries {
		seen[[2]uint64{e.Offset, uint64(e.Length)}] = struct{}{}
	}
	return uint64(len(seen))
}

// minLonE7, maxLonE7, minLatE7 and maxLatE7 are the full web-mercator
// lon/lat extent in 1e7 units.
const (
	minLonE7 = -180000000
	maxLonE7 = 180000000
	minLatE7 = -85051129
	maxLatE7 = 85051129
)

// summarizePyramid derives zoom bounds from a tile pyramid. Lon/lat bounds
// default to the full web-mercator extent: the pyramid itself carries tile
// indices, not a projection, so a caller that knows the source's true
// geographic bounds should override Header.MinLonE7 etc. after Write.
func summarizePyramid(p *coord.Pyramid) (minZoom, maxZoom uint8, minLon, minLat, maxLon, maxLat int32) {
	lo, hasLo := p.ZoomMin()
	hi, hasHi := p.ZoomMax()
	if !hasLo || !hasHi {
		return 0, 0, minLonE7, minLatE7, maxLonE7, maxLatE7
	}
	return lo, hi, minLonE7, minLatE7, maxLonE7, maxLatE7
}
