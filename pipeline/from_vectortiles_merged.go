package pipeline

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
	"github.com/protomaps/tilekiln/tkerr"
)

// FromVectortilesMerged merges same-coordinate MVT tiles from every source
// by layer name, per spec.md §4.8's `from_vectortiles_merged([sources…])`.
type FromVectortilesMerged struct {
	sources   []Operation
	pyramid   *coord.Pyramid
	traversal coord.Traversal
	tilejson  pmtiles.TileJSON
}

// NewFromVectortilesMerged requires every source to declare format.MVT.
func NewFromVectortilesMerged(sources []Operation) (*FromVectortilesMerged, error) {
	if len(sources) < 2 {
		return nil, fmt.Errorf("%w: from_vectortiles_merged requires at least 2 sources", tkerr.ErrConfigError)
	}

	union := coord.NewEmptyPyramid()
	traversal := coord.Any
	tj := pmtiles.TileJSON{}

	for i, src := range sources {
		p, err := src.Parameters()
		if err != nil {
			return nil, err
		}
		if !p.Format.IsVector() {
			return nil, fmt.Errorf("%w: from_vectortiles_merged source %d is not MVT", tkerr.ErrConfigError, i)
		}
		union.IncludeBBoxPyramid(p.Pyramid)

		srcTraversal, err := src.Traversal()
		if err != nil {
			return nil, err
		}
		traversal, err = traversal.Intersect(srcTraversal)
		if err != nil {
			return nil, err
		}

		srcTJ, err := src.TileJSON()
		if err != nil {
			return nil, err
		}
		tj = tj.Merge(srcTJ)
	}

	return &FromVectortilesMerged{sources: sources, pyramid: union, traversal: traversal, tilejson: tj}, nil
}

func (f *FromVectortilesMerged) Parameters() (Parameters, error) {
	return Parameters{Format: format.MVT, Compression: format.Uncompressed, Pyramid: f.pyramid}, nil
}

func (f *FromVectortilesMerged) TileJSON() (pmtiles.TileJSON, error) { return f.tilejson, nil }

func (f *FromVectortilesMerged) Traversal() (coord.Traversal, error) { return f.traversal, nil }

func (f *FromVectortilesMerged) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	blocks := bbox.IterBBoxGrid(gridBlockSize)
	var all []tile.Item[*tile.Tile]

	for _, block := range blocks {
		perCoord := make(map[coord.Coord][]mvt.Layers)

		for _, src := range f.sources {
			s, err := src.GetStream(block)
			if err != nil {
				return tile.Stream[*tile.Tile]{}, err
			}
			for _, item := range s.Items {
				layers, err := item.Value.Vector()
				if err != nil {
					continue
				}
				perCoord[item.Coord] = append(perCoord[item.Coord], layers)
			}
		}

		for _, c := range block.Coords() {
			groups, ok := perCoord[c]
			if !ok {
				continue
			}
			merged := mergeVectorLayerGroups(groups)
			encoded, err := tile.EncodeVector(merged)
			if err != nil {
				return tile.Stream[*tile.Tile]{}, err
			}
			all = append(all, tile.Item[*tile.Tile]{
				Coord: c,
				Value: tile.New(format.MVT, format.Uncompressed, encoded),
			})
		}
	}

	return tile.FromItems(all), nil
}

// mergeVectorLayerGroups concatenates features of layers sharing a name
// across groups, preserving distinct layer names.
func mergeVectorLayerGroups(groups []mvt.Layers) mvt.Layers {
	order := make([]string, 0)
	byName := make(map[string]*mvt.Layer)

	for _, layers := range groups {
		for _, layer := range layers {
			existing, ok := byName[layer.Name]
			if !ok {
				clone := *layer
				byName[layer.Name] = &clone
				order = append(order, layer.Name)
				continue
			}
			existing.Features = append(existing.Features, layer.Features...)
		}
	}

	merged := make(mvt.Layers, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}
