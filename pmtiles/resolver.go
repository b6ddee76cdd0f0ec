package pmtiles

import (
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/protomaps/tilekiln/format"
)

// offsetLen records where a previously-seen tile's compressed bytes live in
// the tile data section, so later duplicates can point at it instead of
// being written again.
type offsetLen struct {
	Offset uint64
	Length uint32
}

// Resolver deduplicates tile content written in increasing tile_id order,
// content-hashing each payload with xxhash (the example pack's choice for
// fast non-cryptographic content hashing) rather than matching only the
// immediately preceding tile, so archives built from operations that
// interleave unrelated sources (merge, from_stacked) still dedup tiles
// that recur non-adjacently.
type Resolver struct {
	Entries        []EntryV3
	Offset         uint64
	AddressedTiles uint64

	seen         map[uint64]offsetLen
	compression  format.Compression
	alreadyCoded bool
	noDedup      bool
}

// DisableDedup stops AddTileIsNew from folding repeated content into RLE
// runs or shared entries: every tile gets its own entry and its own bytes,
// even if identical to one already seen. Cluster uses this when asked not
// to deduplicate, matching the teacher's `pmtiles cluster --dedup=false`.
func (r *Resolver) DisableDedup() { r.noDedup = true }

// NewResolver returns a Resolver that compresses newly-seen tile content
// with the given compression before appending it to the tile data stream.
// Use this when feeding raw, uncompressed tile bytes; Write and Cluster use
// NewPrecompressedResolver instead, and Merge uses no Resolver.
func NewResolver(compression format.Compression) *Resolver {
	return &Resolver{
		seen:        make(map[uint64]offsetLen),
		compression: compression,
	}
}

// NewPrecompressedResolver returns a Resolver that treats every AddTileIsNew
// payload as already encoded in compression, writing it through unchanged.
// Cluster uses this: it reads tile bytes straight out of an existing
// archive's tile data section, which are already in header.TileCompression.
func NewPrecompressedResolver(compression format.Compression) *Resolver {
	return &Resolver{
		seen:         make(map[uint64]offsetLen),
		compression:  compression,
		alreadyCoded: true,
	}
}

// AddTileIsNew registers tileID -> data, which must be called in strictly
// increasing tile_id order. It returns (true, compressedBytes) the first
// time a given payload is seen, so the caller appends compressedBytes to
// the tile data section; on a repeat it returns (false, nil) after folding
// the tile into the previous entry's run (when contiguous and identical)
// or adding a zero-length-delta entry pointing at the original bytes.
func (r *Resolver) AddTileIsNew(tileID uint64, data []byte) (bool, []byte, error) {
	r.AddressedTiles++
	sum := xxhash.Sum64(data)

	if found, ok := r.seen[sum]; ok && !r.noDedup {
		if len(r.Entries) > 0 {
			last := r.Entries[len(r.Entries)-1]
			if tileID == last.TileID+uint64(last.RunLength) && last.Offset == found.Offset && last.Length == found.Length {
				if uint64(last.RunLength)+1 > math.MaxUint32 {
					return false, nil, errRunLengthOverflow
				}
				r.Entries[len(r.Entries)-1].RunLength++
				return false, nil, nil
			}
		}
		r.Entries = append(r.Entries, EntryV3{TileID: tileID, Offset: found.Offset, Length: found.Length, RunLength: 1})
		return false, nil, nil
	}

	var newData []byte
	var err error
	if r.alreadyCoded || looksAlreadyCompressed(data, r.compression) {
		newData = data
	} else {
		newData, err = format.Compress(data, r.compression)
		if err != nil {
			return false, nil, err
		}
	}

	r.seen[sum] = offsetLen{Offset: r.Offset, Length: uint32(len(newData))}
	r.Entries = append(r.Entries, EntryV3{TileID: tileID, Offset: r.Offset, Length: uint32(len(newData)), RunLength: 1})
	r.Offset += uint64(len(newData))
	return true, newData, nil
}

// looksAlreadyCompressed detects a gzip member magic so double-compression
// is avoided when a source already hands back gzipped bytes.
func looksAlreadyCompressed(data []byte, c format.Compression) bool {
	if c == format.Gzip {
		return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
	}
	return false
}

var errRunLengthOverflow = &resolverError{"pmtiles: maximum 32-bit run length exceeded"}

type resolverError struct{ msg string }

func (e *resolverError) Error() string { return e.msg }
