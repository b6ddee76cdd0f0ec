package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/webp"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/tkerr"
)

// DecodeImage decodes raster bytes of the given format into an image.Image.
func DecodeImage(data []byte, f format.Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch f {
	case format.PNG:
		img, err := png.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("%w: png decode: %v", tkerr.ErrCodecError, err)
		}
		return img, nil
	case format.JPEG:
		img, err := jpeg.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg decode: %v", tkerr.ErrCodecError, err)
		}
		return img, nil
	case format.WEBP:
		img, err := webp.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("%w: webp decode: %v", tkerr.ErrCodecError, err)
		}
		return img, nil
	case format.AVIF:
		return nil, fmt.Errorf("%w: avif decoding", tkerr.ErrCodecUnavailable)
	default:
		return nil, fmt.Errorf("%w: %s is not a raster format", tkerr.ErrConfigError, f)
	}
}

// EncodeImage encodes img into the given raster format. opts.Quality is
// honored by JPEG and WEBP (90 when nil); png ignores it. opts.Speed is not
// used by any encoder here.
func EncodeImage(img image.Image, f format.Format, opts RecodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case format.PNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: png encode: %v", tkerr.ErrCodecError, err)
		}
	case format.JPEG:
		quality := 90
		if opts.Quality != nil {
			quality = int(*opts.Quality)
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: jpeg encode: %v", tkerr.ErrCodecError, err)
		}
	case format.WEBP:
		quality := float32(90)
		if opts.Quality != nil {
			quality = float32(*opts.Quality)
		}
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: webp encode: %v", tkerr.ErrCodecError, err)
		}
	case format.AVIF:
		return nil, fmt.Errorf("%w: avif encoding", tkerr.ErrCodecUnavailable)
	default:
		return nil, fmt.Errorf("%w: %s is not a raster format", tkerr.ErrConfigError, f)
	}
	return buf.Bytes(), nil
}

// DecodeVector parses plain (decompressed) MVT protobuf bytes.
func DecodeVector(data []byte) (mvt.Layers, error) {
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: mvt decode: %v", tkerr.ErrCodecError, err)
	}
	return layers, nil
}

// EncodeVector serializes layers to plain MVT protobuf bytes.
func EncodeVector(layers mvt.Layers) ([]byte, error) {
	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("%w: mvt encode: %v", tkerr.ErrCodecError, err)
	}
	return data, nil
}
