package pmtiles

import (
	"bytes"
	"fmt"

	"github.com/protomaps/tilekiln/cache"
	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/tkerr"
)

// maxDirectoryDepth bounds the root -> leaf -> leaf walk get_tile performs;
// exceeding it means the directory tree is malformed.
const maxDirectoryDepth = 3

// leafDirCacheBudget is the fixed ~100MB byte budget for decompressed leaf
// directories, per spec.
const leafDirCacheBudget = 100 << 20

// entryList lets a decoded directory participate in cache.LimitedCache's
// size budget; Size approximates the encoded entry width (tile_id, offset,
// length, run_length) rather than allocating to measure exactly.
type entryList []EntryV3

func (e entryList) Size() int { return len(e) * 28 }

// Reader opens a PMTiles v3 archive for random-access tile lookups.
type Reader struct {
	ds      DataSource
	Header  HeaderV3
	Meta    map[string]interface{}
	rootDir []EntryV3
	pyramid *coord.Pyramid

	leaves *cache.LimitedCache[uint64, entryList]
}

// Open reads the header, metadata, and root directory from ds, and builds
// the archive's bbox pyramid by scanning the full directory tree once.
func Open(ds DataSource) (*Reader, error) {
	headerBytes, err := ds.ReadRange(0, HeaderV3LenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", tkerr.ErrIO, err)
	}
	header, err := DeserializeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	metaRaw, err := ds.ReadRange(header.MetadataOffset, header.MetadataLength)
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata: %v", tkerr.ErrIO, err)
	}
	meta, err := DeserializeMetadata(bytes.NewReader(metaRaw), header.InternalCompression)
	if err != nil {
		return nil, err
	}

	rootRaw, err := ds.ReadRange(header.RootOffset, header.RootLength)
	if err != nil {
		return nil, fmt.Errorf("%w: reading root directory: %v", tkerr.ErrIO, err)
	}
	rootDir, err := DeserializeEntries(rootRaw, header.InternalCompression)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		ds:      ds,
		Header:  header,
		Meta:    meta,
		rootDir: rootDir,
		pyramid: coord.NewEmptyPyramid(),
		leaves:  cache.WithMaximumSize[uint64, entryList](leafDirCacheBudget),
	}

	if err := r.scanPyramid(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) scanPyramid() error {
	return IterateEntries(r.Header, r.fetchDirBytes, func(e EntryV3) {
		first, err := coord.FromID(e.TileID)
		if err != nil {
			return
		}
		last, err := coord.FromID(e.TileID + uint64(e.RunLength) - 1)
		if err != nil || last.Level != first.Level {
			r.pyramid.IncludeCoord(first)
			return
		}
		r.pyramid.IncludeBBox(coord.FromMinMax(first.Level, min32(first.X, last.X), min32(first.Y, last.Y), max32(first.X, last.X), max32(first.Y, last.Y)))
	})
}

func (r *Reader) fetchDirBytes(offset, length uint64) ([]byte, error) {
	return r.ds.ReadRange(offset, length)
}

// Pyramid returns the archive's bbox pyramid (which (level,x,y) are present).
func (r *Reader) Pyramid() *coord.Pyramid { return r.pyramid.Clone() }

// Traversal returns the deterministic order the reader's own tile storage
// follows, per spec.md 4.5.
func (r *Reader) Traversal() (coord.Traversal, error) {
	return coord.New(coord.PMTiles, 4, 256)
}

// GetTile walks the directory tree for c's tile_id and returns the raw
// (still-compressed, still-encoded) tile payload, or ok=false if absent.
func (r *Reader) GetTile(c coord.Coord) ([]byte, bool, error) {
	tileID := c.ID()

	dir := r.rootDir

	for depth := 0; depth < maxDirectoryDepth; depth++ {
		entry, ok := findTile(dir, tileID)
		if !ok {
			return nil, false, nil
		}
		if entry.RunLength > 0 {
			data, err := r.ds.ReadRange(r.Header.TileDataOffset+entry.Offset, uint64(entry.Length))
			if err != nil {
				return nil, false, fmt.Errorf("%w: reading tile data: %v", tkerr.ErrIO, err)
			}
			return data, true, nil
		}

		leafOffset := r.Header.LeafDirectoryOffset + entry.Offset
		leafLength := uint64(entry.Length)
		leafEntries, err := r.leaves.GetOrSet(leafOffset, func() (entryList, error) {
			raw, err := r.ds.ReadRange(leafOffset, leafLength)
			if err != nil {
				return nil, err
			}
			entries, err := DeserializeEntries(raw, r.Header.InternalCompression)
			if err != nil {
				return nil, err
			}
			return entryList(entries), nil
		})
		if err != nil {
			return nil, false, err
		}
		dir = []EntryV3(leafEntries)
	}

	return nil, false, fmt.Errorf("%w: get_tile exceeded %d directory levels", tkerr.ErrCorruptDirectory, maxDirectoryDepth)
}

// Close releases the underlying data source.
func (r *Reader) Close() error { return r.ds.Close() }

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
