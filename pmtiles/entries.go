package pmtiles

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/protomaps/tilekiln/format"
	ioutil "github.com/protomaps/tilekiln/ioutil"
)

// EntryV3 is a single directory entry: a tile_id (or the first of a run of
// consecutive tile_ids sharing identical content), and the byte range of
// that content in the tile data section (RunLength == 0 means the range
// addresses a child leaf directory instead of tile data).
type EntryV3 struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// SerializeMetadata JSON-encodes and compresses the archive metadata blob.
func SerializeMetadata(metadata map[string]interface{}, compression format.Compression) ([]byte, error) {
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return format.Compress(jsonBytes, compression)
}

// DeserializeMetadataBytes decompresses an archive metadata blob without
// parsing it as JSON.
func DeserializeMetadataBytes(reader io.Reader, compression format.Compression) ([]byte, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return format.Decompress(raw, compression)
}

// DeserializeMetadata decompresses and JSON-parses the archive metadata blob.
func DeserializeMetadata(reader io.Reader, compression format.Compression) (map[string]interface{}, error) {
	jsonBytes, err := DeserializeMetadataBytes(reader, compression)
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// SerializeEntries encodes a directory column by column (delta tile_id,
// run length, length, offset) and compresses the whole buffer once, as the
// spec's leaf/root directory wire format.
func SerializeEntries(entries []EntryV3, compression format.Compression) ([]byte, error) {
	var raw bytes.Buffer
	w := ioutil.NewWriter()

	w.WriteVarint(uint64(len(entries)))

	lastID := uint64(0)
	for _, e := range entries {
		w.WriteVarint(e.TileID - lastID)
		lastID = e.TileID
	}
	for _, e := range entries {
		w.WriteVarint(uint64(e.RunLength))
	}
	for _, e := range entries {
		w.WriteVarint(uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			w.WriteVarint(0)
		} else {
			w.WriteVarint(e.Offset + 1) // +1 so "contiguous with previous" can use 0
		}
	}
	raw.Write(w.Bytes())

	return format.Compress(raw.Bytes(), compression)
}

// DeserializeEntries decodes a directory previously produced by SerializeEntries.
func DeserializeEntries(data []byte, compression format.Compression) ([]EntryV3, error) {
	plain, err := format.Decompress(data, compression)
	if err != nil {
		return nil, err
	}
	byteReader := bufio.NewReader(bytes.NewReader(plain))

	numEntries, err := ioutil.ReadVarintFrom(byteReader)
	if err != nil {
		return nil, err
	}

	entries := make([]EntryV3, 0, numEntries)
	lastID := uint64(0)
	for i := uint64(0); i < numEntries; i++ {
		delta, err := ioutil.ReadVarintFrom(byteReader)
		if err != nil {
			return nil, err
		}
		lastID += delta
		entries = append(entries, EntryV3{TileID: lastID})
	}
	for i := uint64(0); i < numEntries; i++ {
		runLength, err := ioutil.ReadVarintFrom(byteReader)
		if err != nil {
			return nil, err
		}
		entries[i].RunLength = uint32(runLength)
	}
	for i := uint64(0); i < numEntries; i++ {
		length, err := ioutil.ReadVarintFrom(byteReader)
		if err != nil {
			return nil, err
		}
		entries[i].Length = uint32(length)
	}
	for i := uint64(0); i < numEntries; i++ {
		v, err := ioutil.ReadVarintFrom(byteReader)
		if err != nil {
			return nil, err
		}
		if i > 0 && v == 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = v - 1
		}
	}

	return entries, nil
}

// findTile binary-searches a directory for the entry addressing tileID,
// matching either an exact tile_id or one covered by a preceding run.
func findTile(entries []EntryV3, tileID uint64) (EntryV3, bool) {
	m, n := 0, len(entries)-1
	for m <= n {
		k := (n + m) >> 1
		switch {
		case tileID > entries[k].TileID:
			m = k + 1
		case tileID < entries[k].TileID:
			n = k - 1
		default:
			return entries[k], true
		}
	}
	if n >= 0 {
		if entries[n].RunLength == 0 {
			return entries[n], true
		}
		if tileID-entries[n].TileID < uint64(entries[n].RunLength) {
			return entries[n], true
		}
	}
	return EntryV3{}, false
}

// buildRootsLeaves packs entries into fixed-size leaf directories plus a
// root directory of leaf pointers.
func buildRootsLeaves(entries []EntryV3, leafSize int, compression format.Compression) ([]byte, []byte, int, error) {
	rootEntries := make([]EntryV3, 0)
	leavesBytes := make([]byte, 0)
	numLeaves := 0

	for idx := 0; idx < len(entries); idx += leafSize {
		numLeaves++
		end := idx + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		serialized, err := SerializeEntries(entries[idx:end], compression)
		if err != nil {
			return nil, nil, 0, err
		}
		rootEntries = append(rootEntries, EntryV3{TileID: entries[idx].TileID, Offset: uint64(len(leavesBytes)), Length: uint32(len(serialized))})
		leavesBytes = append(leavesBytes, serialized...)
	}

	rootBytes, err := SerializeEntries(rootEntries, compression)
	if err != nil {
		return nil, nil, 0, err
	}
	return rootBytes, leavesBytes, numLeaves, nil
}

// optimizeDirectories packs entries to fit targetRootLen bytes, growing the
// leaf directory size until the root directory of leaf pointers fits.
func optimizeDirectories(entries []EntryV3, targetRootLen int, compression format.Compression) ([]byte, []byte, int, error) {
	if len(entries) < 16384 {
		testRootBytes, err := SerializeEntries(entries, compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(testRootBytes) <= targetRootLen {
			return testRootBytes, nil, 0, nil
		}
	}

	leafSize := float32(len(entries)) / 3500
	if leafSize < 4096 {
		leafSize = 4096
	}

	for {
		rootBytes, leavesBytes, numLeaves, err := buildRootsLeaves(entries, int(leafSize), compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(rootBytes) <= targetRootLen {
			return rootBytes, leavesBytes, numLeaves, nil
		}
		leafSize *= 1.2
		if leafSize > float32(len(entries)+1) {
			return nil, nil, 0, fmt.Errorf("pmtiles: root directory cannot fit within %d bytes", targetRootLen)
		}
	}
}

// IterateEntries walks every tile-data entry in an archive's directory
// tree, depth-first, fetching directory bytes on demand via fetch.
func IterateEntries(header HeaderV3, fetch func(offset, length uint64) ([]byte, error), operation func(EntryV3)) error {
	var walk func(offset, length uint64) error
	walk = func(offset, length uint64) error {
		data, err := fetch(offset, length)
		if err != nil {
			return err
		}
		directory, err := DeserializeEntries(data, header.InternalCompression)
		if err != nil {
			return err
		}
		for _, entry := range directory {
			if entry.RunLength > 0 {
				operation(entry)
			} else if err := walk(header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length)); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(header.RootOffset, header.RootLength)
}
