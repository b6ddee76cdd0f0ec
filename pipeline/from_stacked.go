package pipeline

import (
	"fmt"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
	"github.com/protomaps/tilekiln/tkerr"
)

// FromStacked overlays ≥2 sources of identical tile_format by first-hit, per
// spec.md §4.8's `from_stacked([sources…])`.
type FromStacked struct {
	sources   []Operation
	pyramid   *coord.Pyramid
	traversal coord.Traversal
	tilejson  pmtiles.TileJSON
}

// NewFromStacked builds the union pyramid, intersected traversal, and merged
// TileJSON of sources, failing construction if traversals are incompatible
// or fewer than two sources are given.
func NewFromStacked(sources []Operation) (*FromStacked, error) {
	if len(sources) < 2 {
		return nil, fmt.Errorf("%w: from_stacked requires at least 2 sources", tkerr.ErrConfigError)
	}

	union := coord.NewEmptyPyramid()
	traversal := coord.Any
	tj := pmtiles.TileJSON{}
	var wantFormat *int

	for i, src := range sources {
		p, err := src.Parameters()
		if err != nil {
			return nil, err
		}
		if wantFormat == nil {
			f := int(p.Format)
			wantFormat = &f
		} else if int(p.Format) != *wantFormat {
			return nil, fmt.Errorf("%w: from_stacked source %d format mismatch", tkerr.ErrConfigError, i)
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

	return &FromStacked{sources: sources, pyramid: union, traversal: traversal, tilejson: tj}, nil
}

func (f *FromStacked) Parameters() (Parameters, error) {
	p, err := f.sources[0].Parameters()
	if err != nil {
		return Parameters{}, err
	}
	p.Pyramid = f.pyramid
	return p, nil
}

func (f *FromStacked) TileJSON() (pmtiles.TileJSON, error) { return f.tilejson, nil }

func (f *FromStacked) Traversal() (coord.Traversal, error) { return f.traversal, nil }

// GetStream sub-divides bbox into 32-tile grid blocks and, within each
// block, resolves tiles from earlier sources first, only requesting missing
// coordinates from later sources, per spec.md §4.8/§5.
func (f *FromStacked) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	blocks := bbox.IterBBoxGrid(gridBlockSize)
	var all []tile.Item[*tile.Tile]

	for _, block := range blocks {
		resolved := make(map[coord.Coord]*tile.Tile)
		remaining := block

		for _, src := range f.sources {
			if remaining.Empty {
				break
			}
			s, err := src.GetStream(remaining)
			if err != nil {
				return tile.Stream[*tile.Tile]{}, err
			}
			for _, item := range s.Items {
				if _, already := resolved[item.Coord]; !already {
					resolved[item.Coord] = item.Value
				}
			}
			remaining = missingBBox(block, resolved)
		}

		for _, c := range block.Coords() {
			if t, ok := resolved[c]; ok {
				all = append(all, tile.Item[*tile.Tile]{Coord: c, Value: t})
			}
		}
	}

	return tile.FromItems(all), nil
}

// missingBBox returns the bounding rectangle of block's coordinates not yet
// present in resolved, so the next source is only queried for what's left.
// It over-approximates to a rectangle (later sources are still filtered
// against `resolved` per-coordinate), trading a few redundant lookups for a
// bbox-shaped request every GetStream implementation expects.
func missingBBox(block coord.BBox, resolved map[coord.Coord]*tile.Tile) coord.BBox {
	missing := coord.NewEmpty(block.Level)
	for _, c := range block.Coords() {
		if _, ok := resolved[c]; !ok {
			missing = missing.Union(coord.FromMinMax(c.Level, c.X, c.Y, c.X, c.Y))
		}
	}
	return missing
}
