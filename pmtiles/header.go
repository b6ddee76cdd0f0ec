// Package pmtiles implements the PMTiles v3 container: the fixed binary
// header, the varint/delta-encoded directory tree, and the reader/writer
// pair that walk it. It operates on raw tile bytes and format.Format /
// format.Compression discriminants only; it never depends on the tile or
// pipeline packages, so those can sit above it without an import cycle.
package pmtiles

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/protomaps/tilekiln/format"
)

// HeaderV3LenBytes is the size of the fixed binary header.
const HeaderV3LenBytes = 127

// HeaderV3 is the 127-byte PMTiles v3 header.
type HeaderV3 struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression format.Compression
	TileCompression     format.Compression
	TileType            format.Format
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// HeaderJSON is the human-readable view of header fields worth editing by
// hand, aligned with the TileJSON/MBTiles vocabulary.
type HeaderJSON struct {
	TileCompression string    `json:"tile_compression"`
	TileType        string    `json:"tile_type"`
	MinZoom         int       `json:"minzoom"`
	MaxZoom         int       `json:"maxzoom"`
	Bounds          []float64 `json:"bounds"`
	Center          []float64 `json:"center"`
}

func headerExt(header HeaderV3) string {
	ct, ok := header.TileType.ContentType()
	if !ok {
		return ""
	}
	switch header.TileType {
	case format.MVT:
		return ".mvt"
	case format.PNG:
		return ".png"
	case format.JPEG:
		return ".jpg"
	case format.WEBP:
		return ".webp"
	case format.AVIF:
		return ".avif"
	default:
		_ = ct
		return ""
	}
}

func headerToJSON(header HeaderV3) HeaderJSON {
	return HeaderJSON{
		TileCompression: header.TileCompression.String(),
		TileType:        header.TileType.String(),
		MinZoom:         int(header.MinZoom),
		MaxZoom:         int(header.MaxZoom),
		Bounds:          []float64{float64(header.MinLonE7) / 1e7, float64(header.MinLatE7) / 1e7, float64(header.MaxLonE7) / 1e7, float64(header.MaxLatE7) / 1e7},
		Center:          []float64{float64(header.CenterLonE7) / 1e7, float64(header.CenterLatE7) / 1e7, float64(header.CenterZoom)},
	}
}

func headerToStringifiedJSON(header HeaderV3) string {
	s, _ := json.MarshalIndent(headerToJSON(header), "", "    ")
	return string(s)
}

// SerializeHeader encodes h into the 127-byte fixed layout.
func SerializeHeader(h HeaderV3) []byte {
	b := make([]byte, HeaderV3LenBytes)
	copy(b[0:7], "PMTiles")
	b[7] = 3
	binary.LittleEndian.PutUint64(b[8:16], h.RootOffset)
	binary.LittleEndian.PutUint64(b[16:24], h.RootLength)
	binary.LittleEndian.PutUint64(b[24:32], h.MetadataOffset)
	binary.LittleEndian.PutUint64(b[32:40], h.MetadataLength)
	binary.LittleEndian.PutUint64(b[40:48], h.LeafDirectoryOffset)
	binary.LittleEndian.PutUint64(b[48:56], h.LeafDirectoryLength)
	binary.LittleEndian.PutUint64(b[56:64], h.TileDataOffset)
	binary.LittleEndian.PutUint64(b[64:72], h.TileDataLength)
	binary.LittleEndian.PutUint64(b[72:80], h.AddressedTilesCount)
	binary.LittleEndian.PutUint64(b[80:88], h.TileEntriesCount)
	binary.LittleEndian.PutUint64(b[88:96], h.TileContentsCount)
	if h.Clustered {
		b[96] = 0x1
	}
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	binary.LittleEndian.PutUint32(b[102:106], uint32(h.MinLonE7))
	binary.LittleEndian.PutUint32(b[106:110], uint32(h.MinLatE7))
	binary.LittleEndian.PutUint32(b[110:114], uint32(h.MaxLonE7))
	binary.LittleEndian.PutUint32(b[114:118], uint32(h.MaxLatE7))
	b[118] = h.CenterZoom
	binary.LittleEndian.PutUint32(b[119:123], uint32(h.CenterLonE7))
	binary.LittleEndian.PutUint32(b[123:127], uint32(h.CenterLatE7))
	return b
}

// DeserializeHeader decodes the 127-byte fixed header.
func DeserializeHeader(d []byte) (HeaderV3, error) {
	h := HeaderV3{}
	if len(d) < HeaderV3LenBytes {
		return h, fmt.Errorf("pmtiles: header too short: %d bytes", len(d))
	}
	if string(d[0:7]) != "PMTiles" {
		return h, fmt.Errorf("pmtiles: magic number not detected, not a PMTiles archive")
	}
	specVersion := d[7]
	if specVersion > 3 {
		return h, fmt.Errorf("pmtiles: archive is spec version %d, this program only supports version 3", specVersion)
	}
	h.SpecVersion = specVersion
	h.RootOffset = binary.LittleEndian.Uint64(d[8:16])
	h.RootLength = binary.LittleEndian.Uint64(d[16:24])
	h.MetadataOffset = binary.LittleEndian.Uint64(d[24:32])
	h.MetadataLength = binary.LittleEndian.Uint64(d[32:40])
	h.LeafDirectoryOffset = binary.LittleEndian.Uint64(d[40:48])
	h.LeafDirectoryLength = binary.LittleEndian.Uint64(d[48:56])
	h.TileDataOffset = binary.LittleEndian.Uint64(d[56:64])
	h.TileDataLength = binary.LittleEndian.Uint64(d[64:72])
	h.AddressedTilesCount = binary.LittleEndian.Uint64(d[72:80])
	h.TileEntriesCount = binary.LittleEndian.Uint64(d[80:88])
	h.TileContentsCount = binary.LittleEndian.Uint64(d[88:96])
	h.Clustered = d[96] == 0x1
	h.InternalCompression = format.Compression(d[97])
	h.TileCompression = format.Compression(d[98])
	h.TileType = format.Format(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(binary.LittleEndian.Uint32(d[102:106]))
	h.MinLatE7 = int32(binary.LittleEndian.Uint32(d[106:110]))
	h.MaxLonE7 = int32(binary.LittleEndian.Uint32(d[110:114]))
	h.MaxLatE7 = int32(binary.LittleEndian.Uint32(d[114:118]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(binary.LittleEndian.Uint32(d[119:123]))
	h.CenterLatE7 = int32(binary.LittleEndian.Uint32(d[123:127]))
	return h, nil
}
