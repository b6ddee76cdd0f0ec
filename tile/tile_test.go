package tile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/protomaps/tilekiln/format"
)

func sampleMVTBytes(t *testing.T) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 1})
	f.Properties["name"] = "test"
	fc.Append(f)
	layer := mvt.NewLayer("points", fc)
	layer.ProjectToTile(maptile.New(0, 0, 0))
	data, err := EncodeVector(mvt.Layers{layer})
	if err != nil {
		t.Fatalf("EncodeVector: %v", err)
	}
	return data
}

func TestTileImageLazyDecode(t *testing.T) {
	raw, err := EncodeImage(solidImage(), format.PNG, RecodeOptions{})
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	tl := New(format.PNG, format.Uncompressed, raw)

	img, err := tl.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Fatalf("unexpected image width %d", img.Bounds().Dx())
	}
	if _, err := tl.Vector(); err == nil {
		t.Fatalf("expected Vector() to fail on a raster tile")
	}
}

func TestTileVectorLazyDecode(t *testing.T) {
	tl := New(format.MVT, format.Uncompressed, sampleMVTBytes(t))
	layers, err := tl.Vector()
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("expected one layer, got %d", len(layers))
	}
	if _, err := tl.Image(); err == nil {
		t.Fatalf("expected Image() to fail on a vector tile")
	}
}

func TestChangeCompressionRoundTrip(t *testing.T) {
	tl := New(format.MVT, format.Uncompressed, sampleMVTBytes(t))

	gz, err := tl.ChangeCompression(format.Gzip)
	if err != nil {
		t.Fatalf("ChangeCompression to gzip: %v", err)
	}
	if gz.Compression != format.Gzip {
		t.Fatalf("expected gzip compression, got %v", gz.Compression)
	}

	back, err := gz.ChangeCompression(format.Uncompressed)
	if err != nil {
		t.Fatalf("ChangeCompression back: %v", err)
	}
	layers, err := back.Vector()
	if err != nil {
		t.Fatalf("Vector after round trip: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("expected one layer after round trip, got %d", len(layers))
	}
}

func TestChangeCompressionNoOpSameTarget(t *testing.T) {
	raw := sampleMVTBytes(t)
	tl := New(format.MVT, format.Uncompressed, raw)
	same, err := tl.ChangeCompression(format.Uncompressed)
	if err != nil {
		t.Fatalf("ChangeCompression: %v", err)
	}
	if len(same.Bytes()) != len(raw) {
		t.Fatalf("expected byte-identical no-op copy")
	}
}

func TestChangeFormatRasterToRaster(t *testing.T) {
	raw, err := EncodeImage(solidImage(), format.PNG, RecodeOptions{})
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	tl := New(format.PNG, format.Uncompressed, raw)

	jpg, err := tl.ChangeFormat(format.JPEG, RecodeOptions{})
	if err != nil {
		t.Fatalf("ChangeFormat to jpeg: %v", err)
	}
	if jpg.Format != format.JPEG {
		t.Fatalf("expected jpeg format, got %v", jpg.Format)
	}
	if _, err := jpg.Image(); err != nil {
		t.Fatalf("decoding recoded jpeg: %v", err)
	}
}

func TestChangeFormatRejectsRasterToVector(t *testing.T) {
	raw, err := EncodeImage(solidImage(), format.PNG, RecodeOptions{})
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	tl := New(format.PNG, format.Uncompressed, raw)
	if _, err := tl.ChangeFormat(format.MVT, RecodeOptions{}); err == nil {
		t.Fatalf("expected ChangeFormat raster->vector to fail")
	}
}
