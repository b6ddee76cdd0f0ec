// Package format defines the tile format and compression discriminants
// shared by the PMTiles container and the pipeline's Tile value, matching
// the single-byte discriminants used on disk by HeaderV3.
package format

// Format is the content kind of a tile payload.
type Format uint8

const (
	Unknown Format = 0
	MVT     Format = 1
	PNG     Format = 2
	JPEG    Format = 3
	WEBP    Format = 4
	AVIF    Format = 5
	BIN     Format = 6
	JSON    Format = 7
	GEOJSON Format = 8
	TOPOJSON Format = 9
)

// IsRaster reports whether the format decodes to an image.
func (f Format) IsRaster() bool {
	switch f {
	case PNG, JPEG, WEBP, AVIF:
		return true
	default:
		return false
	}
}

// IsVector reports whether the format decodes to a vector tile.
func (f Format) IsVector() bool {
	return f == MVT
}

func (f Format) String() string {
	switch f {
	case MVT:
		return "mvt"
	case PNG:
		return "png"
	case JPEG:
		return "jpg"
	case WEBP:
		return "webp"
	case AVIF:
		return "avif"
	case BIN:
		return "bin"
	case JSON:
		return "json"
	case GEOJSON:
		return "geojson"
	case TOPOJSON:
		return "topojson"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type for HTTP-adjacent callers (show/meta
// output); it never participates in network serving itself.
func (f Format) ContentType() (string, bool) {
	switch f {
	case MVT:
		return "application/x-protobuf", true
	case PNG:
		return "image/png", true
	case JPEG:
		return "image/jpeg", true
	case WEBP:
		return "image/webp", true
	case AVIF:
		return "image/avif", true
	case JSON:
		return "application/json", true
	case GEOJSON:
		return "application/geo+json", true
	default:
		return "", false
	}
}

// ParseFormat maps a VPL/CLI format name to its discriminant.
func ParseFormat(s string) Format {
	switch s {
	case "mvt":
		return MVT
	case "png":
		return PNG
	case "jpg", "jpeg":
		return JPEG
	case "webp":
		return WEBP
	case "avif":
		return AVIF
	case "bin":
		return BIN
	case "json":
		return JSON
	case "geojson":
		return GEOJSON
	case "topojson":
		return TOPOJSON
	default:
		return Unknown
	}
}
