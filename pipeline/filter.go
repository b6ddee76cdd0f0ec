package pipeline

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// LonLatBBox is a geographic bounding box in degrees, the unit filter's
// optional bbox argument is expressed in.
type LonLatBBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// tileBBoxAtLevel projects b onto the tile grid of the given level.
func (b LonLatBBox) tileBBoxAtLevel(level uint8) coord.BBox {
	min := maptile.At(orb.Point{b.MinLon, b.MaxLat}, maptile.Zoom(level))
	max := maptile.At(orb.Point{b.MaxLon, b.MinLat}, maptile.Zoom(level))
	return coord.FromMinMax(level, min.X, min.Y, max.X, max.Y)
}

// FilterOptions carries filter's optional arguments.
type FilterOptions struct {
	Bbox     *LonLatBBox
	LevelMin *uint8
	LevelMax *uint8
}

// Filter shrinks an upstream operation's pyramid to a bbox and/or zoom
// range, per spec.md §4.8's `filter(bbox?, level_min?, level_max?)`.
type Filter struct {
	upstream Operation
	bbox     *LonLatBBox
	levelMin *uint8
	levelMax *uint8
}

// NewFilter builds a Filter over upstream with opts applied to its pyramid.
func NewFilter(upstream Operation, opts FilterOptions) *Filter {
	return &Filter{
		upstream: upstream,
		bbox:     opts.Bbox,
		levelMin: opts.LevelMin,
		levelMax: opts.LevelMax,
	}
}

func (f *Filter) Parameters() (Parameters, error) {
	p, err := f.upstream.Parameters()
	if err != nil {
		return Parameters{}, err
	}
	pyr := p.Pyramid.Clone()
	if f.levelMin != nil {
		pyr.SetZoomMin(*f.levelMin)
	}
	if f.levelMax != nil {
		pyr.SetZoomMax(*f.levelMax)
	}
	if f.bbox != nil {
		clipped := coord.NewEmptyPyramid()
		for z := uint8(0); z <= coord.MaxLevel; z++ {
			clipped.IncludeBBox(pyr.Level(z).Intersect(f.bbox.tileBBoxAtLevel(z)))
		}
		pyr = clipped
	}
	p.Pyramid = pyr
	return p, nil
}

func (f *Filter) TileJSON() (pmtiles.TileJSON, error) {
	return f.upstream.TileJSON()
}

func (f *Filter) Traversal() (coord.Traversal, error) {
	return f.upstream.Traversal()
}

// GetStream clips bbox to the filter's retained pyramid before delegating,
// per spec.md §4.8.
func (f *Filter) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	p, err := f.Parameters()
	if err != nil {
		return tile.Stream[*tile.Tile]{}, err
	}
	clipped := p.Pyramid.IntersectBBox(bbox)
	if clipped.Empty {
		return tile.Stream[*tile.Tile]{}, nil
	}
	return f.upstream.GetStream(clipped)
}
