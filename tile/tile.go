// Package tile implements the self-describing tile payload: format,
// compression, and a lazily decoded image or vector representation, plus
// the recoding operations pipeline transforms use to change either.
package tile

import (
	"image"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/tkerr"
)

// Tile is an immutable tagged tile payload. Recoding (ChangeFormat,
// ChangeCompression) returns a new Tile rather than mutating this one.
type Tile struct {
	Format      format.Format
	Compression format.Compression
	raw         []byte // bytes in Compression, encoding Format

	decodedImage  image.Image
	decodedVector mvt.Layers
	imageDecoded  bool
	vectorDecoded bool
}

// New wraps raw bytes (already in the declared format and compression) as a Tile.
func New(f format.Format, c format.Compression, raw []byte) *Tile {
	return &Tile{Format: f, Compression: c, raw: raw}
}

// Bytes returns the tile's wire payload, still in Compression/Format.
func (t *Tile) Bytes() []byte { return t.raw }

// plain decompresses raw to the codec-ready bytes, memoizing nothing since
// Compression changes are rare relative to repeated Bytes() calls.
func (t *Tile) plain() ([]byte, error) {
	return format.Decompress(t.raw, t.Compression)
}

// Image lazily decodes a raster tile. Returns ErrConfigError if Format is
// not a raster kind.
func (t *Tile) Image() (image.Image, error) {
	if !t.Format.IsRaster() {
		return nil, tkerr.ErrConfigError
	}
	if t.imageDecoded {
		return t.decodedImage, nil
	}
	plain, err := t.plain()
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(plain, t.Format)
	if err != nil {
		return nil, err
	}
	t.decodedImage = img
	t.imageDecoded = true
	return img, nil
}

// Vector lazily decodes an MVT tile. Returns ErrConfigError if Format isn't MVT.
func (t *Tile) Vector() (mvt.Layers, error) {
	if !t.Format.IsVector() {
		return nil, tkerr.ErrConfigError
	}
	if t.vectorDecoded {
		return t.decodedVector, nil
	}
	plain, err := t.plain()
	if err != nil {
		return nil, err
	}
	layers, err := DecodeVector(plain)
	if err != nil {
		return nil, err
	}
	t.decodedVector = layers
	t.vectorDecoded = true
	return layers, nil
}

// ChangeCompression decompresses and recompresses to target. A no-op copy
// is returned when target already matches.
func (t *Tile) ChangeCompression(target format.Compression) (*Tile, error) {
	if target == t.Compression {
		return New(t.Format, t.Compression, t.raw), nil
	}
	plain, err := t.plain()
	if err != nil {
		return nil, err
	}
	recoded, err := format.Compress(plain, target)
	if err != nil {
		return nil, err
	}
	return New(t.Format, target, recoded), nil
}

// RecodeOptions carries the optional per-tile raster recoding hints
// spec.md §4.7 allows on ChangeFormat.
type RecodeOptions struct {
	Quality *uint8
	Speed   *uint8
}

// ChangeFormat decodes via the current format's codec and re-encodes via
// target's. Raster<->vector recoding is rejected with ErrConfigError, since
// the two type classes carry no common decoded representation.
func (t *Tile) ChangeFormat(target format.Format, opts RecodeOptions) (*Tile, error) {
	if target == t.Format {
		return New(t.Format, t.Compression, t.raw), nil
	}
	if t.Format.IsRaster() != target.IsRaster() || t.Format.IsVector() != target.IsVector() {
		return nil, tkerr.ErrConfigError
	}

	if target.IsVector() {
		layers, err := t.Vector()
		if err != nil {
			return nil, err
		}
		encoded, err := EncodeVector(layers)
		if err != nil {
			return nil, err
		}
		compressed, err := format.Compress(encoded, t.Compression)
		if err != nil {
			return nil, err
		}
		return New(target, t.Compression, compressed), nil
	}

	img, err := t.Image()
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeImage(img, target, opts)
	if err != nil {
		return nil, err
	}
	compressed, err := format.Compress(encoded, t.Compression)
	if err != nil {
		return nil, err
	}
	return New(target, t.Compression, compressed), nil
}
