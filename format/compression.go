package format

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Compression is the byte-level compression applied to a tile payload or to
// a PMTiles directory/metadata blob.
type Compression uint8

const (
	UnknownCompression Compression = 0
	Uncompressed       Compression = 1
	Gzip               Compression = 2
	Brotli             Compression = 3
	// Zstd is reserved for on-disk compatibility with archives written by
	// other PMTiles implementations; this toolkit never produces it and
	// Compress/Decompress reject it explicitly rather than silently no-op.
	Zstd Compression = 4
)

func (c Compression) String() string {
	switch c {
	case Uncompressed:
		return "none"
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression maps a VPL/CLI compression name to its discriminant.
func ParseCompression(s string) Compression {
	switch s {
	case "none", "":
		return Uncompressed
	case "gzip":
		return Gzip
	case "br", "brotli":
		return Brotli
	case "zstd":
		return Zstd
	default:
		return UnknownCompression
	}
}

// Compress encodes data with the given compression. Uncompressed is a
// pass-through.
func Compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case Uncompressed:
		return data, nil
	case Gzip:
		var b bytes.Buffer
		w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case Brotli:
		var b bytes.Buffer
		w := brotli.NewWriterLevel(&b, brotli.BestCompression)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("compression %s not supported", c)
	}
}

// Decompress is the inverse of Compress.
func Decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case Uncompressed:
		return data, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case Brotli:
		r := brotli.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("compression %s not supported", c)
	}
}
