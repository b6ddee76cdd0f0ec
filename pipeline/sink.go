package pipeline

import (
	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
)

// TileSource adapts a terminal Operation into a pmtiles.TileSource, so a
// pipeline chain can be handed directly to pmtiles.Write. Every tile the
// operation yields is recompressed to outputCompression before being
// handed to the writer's resolver.
type TileSource struct {
	op                Operation
	outputCompression format.Compression
	params            Parameters
}

// NewTileSource resolves op's declared shape once, up front, so Pyramid and
// TileType (which pmtiles.TileSource requires to be error-free) can be
// served from the cached value afterward.
func NewTileSource(op Operation, outputCompression format.Compression) (*TileSource, error) {
	params, err := op.Parameters()
	if err != nil {
		return nil, err
	}
	return &TileSource{op: op, outputCompression: outputCompression, params: params}, nil
}

func (s *TileSource) Traversal() (coord.Traversal, error) { return s.op.Traversal() }

func (s *TileSource) Pyramid() *coord.Pyramid { return s.params.Pyramid }

func (s *TileSource) TileType() format.Format { return s.params.Format }

func (s *TileSource) TileCompression() format.Compression { return s.outputCompression }

func (s *TileSource) Metadata() (map[string]interface{}, error) {
	tj, err := s.op.TileJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}(tj), nil
}

func (s *TileSource) GetStream(bbox coord.BBox) ([]pmtiles.TileResult, error) {
	stream, err := s.op.GetStream(bbox)
	if err != nil {
		return nil, err
	}
	out := make([]pmtiles.TileResult, 0, len(stream.Items))
	for _, item := range stream.Items {
		recoded, err := item.Value.ChangeCompression(s.outputCompression)
		if err != nil {
			return nil, err
		}
		out = append(out, pmtiles.TileResult{Coord: item.Coord, Bytes: recoded.Bytes()})
	}
	return out, nil
}
