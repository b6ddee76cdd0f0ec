package pipeline

import (
	"image"
	"image/color"
	"log"
	"math"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// RasterLevelsOptions carries raster_levels' optional arguments; nil means
// each defaults to its identity value (0, 1, 1).
type RasterLevelsOptions struct {
	Brightness *float64
	Contrast   *float64
	Gamma      *float64
}

// RasterLevels applies the pointwise colour transform from spec.md §4.8 to
// R, G, B (alpha untouched).
type RasterLevels struct {
	upstream               Operation
	brightness, contrast, gamma float64
	logger                 *log.Logger
}

func NewRasterLevels(upstream Operation, opts RasterLevelsOptions, logger *log.Logger) *RasterLevels {
	r := &RasterLevels{upstream: upstream, brightness: 0, contrast: 1, gamma: 1, logger: logger}
	if opts.Brightness != nil {
		r.brightness = *opts.Brightness
	}
	if opts.Contrast != nil {
		r.contrast = *opts.Contrast
	}
	if opts.Gamma != nil {
		r.gamma = *opts.Gamma
	}
	return r
}

// levelTransform implements spec.md §4.8's
// v' = clamp(((v-127.5)*(contrast/255)+0.5+brightness/255)^gamma * 255, 0, 255).
func levelTransform(v, brightness, contrast, gamma float64) uint8 {
	x := (v-127.5)*(contrast/255)+0.5+brightness/255
	if gamma != 1 {
		sign := 1.0
		if x < 0 {
			sign = -1.0
			x = -x
		}
		x = sign * math.Pow(x, gamma)
	}
	x *= 255
	if x < 0 {
		x = 0
	}
	if x > 255 {
		x = 255
	}
	return uint8(x)
}

func (r *RasterLevels) Parameters() (Parameters, error) { return r.upstream.Parameters() }

func (r *RasterLevels) TileJSON() (pmtiles.TileJSON, error) { return r.upstream.TileJSON() }

func (r *RasterLevels) Traversal() (coord.Traversal, error) { return r.upstream.Traversal() }

func (r *RasterLevels) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	s, err := r.upstream.GetStream(bbox)
	if err != nil {
		return tile.Stream[*tile.Tile]{}, err
	}
	return tile.MapItemParallel(r.logger, s, func(t *tile.Tile) (*tile.Tile, error) {
		if r.brightness == 0 && r.contrast == 1 && r.gamma == 1 {
			return t, nil
		}
		img, err := t.Image()
		if err != nil {
			return nil, err
		}
		out := r.applyLevels(img)
		encoded, err := tile.EncodeImage(out, t.Format, tile.RecodeOptions{})
		if err != nil {
			return nil, err
		}
		compressed, err := compressLike(t, encoded)
		if err != nil {
			return nil, err
		}
		return tile.New(t.Format, t.Compression, compressed), nil
	}), nil
}

func (r *RasterLevels) applyLevels(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetNRGBA(x, y, color.NRGBA{
				R: levelTransform(float64(c.R), r.brightness, r.contrast, r.gamma),
				G: levelTransform(float64(c.G), r.brightness, r.contrast, r.gamma),
				B: levelTransform(float64(c.B), r.brightness, r.contrast, r.gamma),
				A: c.A,
			})
		}
	}
	return out
}

// compressLike re-encodes plain bytes in t's declared compression, since
// EncodeImage returns plain codec bytes but the tile may have a non-trivial
// declared compression.
func compressLike(t *tile.Tile, plain []byte) ([]byte, error) {
	fresh := tile.New(t.Format, format.Uncompressed, plain)
	recoded, err := fresh.ChangeCompression(t.Compression)
	if err != nil {
		return nil, err
	}
	return recoded.Bytes(), nil
}
