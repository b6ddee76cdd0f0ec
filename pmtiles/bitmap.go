package pmtiles

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/protomaps/tilekiln/coord"
)

// bitmapMultiPolygon computes the boundary tile set (tiles a polygon's
// rings pass through) and the interior tile set (tiles fully inside, found
// by point-in-polygon testing the centre of the first tile of each
// boundary-to-boundary gap in tile-id order) at a fixed zoom. Merge's
// disjointness check does not use it; its only caller is its test.
func bitmapMultiPolygon(zoom uint8, multipolygon orb.MultiPolygon) (*roaring64.Bitmap, *roaring64.Bitmap) {
	boundarySet := roaring64.New()

	for _, polygon := range multipolygon {
		for _, ring := range polygon {
			boundaryTiles, _ := tilecover.Geometry(orb.LineString(ring), maptile.Zoom(zoom))
			for tile := range boundaryTiles {
				boundarySet.Add(coord.Coord{Level: zoom, X: tile.X, Y: tile.Y}.ID())
			}
		}
	}

	projected := project.MultiPolygon(multipolygon.Clone(), project.WGS84.ToMercator)

	interiorSet := roaring64.New()
	it := boundarySet.Iterator()
	for it.HasNext() {
		id := it.Next()
		if !boundarySet.Contains(id+1) && it.HasNext() {
			c, err := coord.FromID(id + 1)
			if err != nil {
				continue
			}
			tile := maptile.New(c.X, c.Y, maptile.Zoom(c.Level))
			if planar.MultiPolygonContains(projected, project.Point(tile.Center(), project.WGS84.ToMercator)) {
				interiorSet.AddRange(id+1, it.PeekNext())
			}
		}
	}

	return boundarySet, interiorSet
}

// generalizeOr promotes a tile set upward through every ancestor down to
// minzoom, unioning parents in (used to turn a precise high-zoom coverage
// set into a coarser any-ancestor-covered predicate).
func generalizeOr(r *roaring64.Bitmap, minzoom uint8) {
	if r.GetCardinality() == 0 {
		return
	}
	maxZ, err := coord.FromID(r.ReverseIterator().Next())
	if err != nil {
		return
	}

	toIterate := r
	for z := int(maxZ.Level); z > int(minzoom); z-- {
		temp := roaring64.New()
		it := toIterate.Iterator()
		for it.HasNext() {
			temp.Add(coord.ParentID(it.Next()))
		}
		toIterate = temp
		r.Or(temp)
	}
}

// generalizeAnd promotes a tile set upward only where all four children of
// a parent are present, the "fully covered" counterpart to generalizeOr.
func generalizeAnd(r *roaring64.Bitmap) {
	if r.GetCardinality() == 0 {
		return
	}
	maxZ, err := coord.FromID(r.ReverseIterator().Next())
	if err != nil {
		return
	}

	toIterate := r
	for z := int(maxZ.Level); z > 0; z-- {
		temp := roaring64.New()
		it := toIterate.Iterator()
		filled := 0
		current := uint64(0)
		for it.HasNext() {
			id := it.Next()
			parentID := coord.ParentID(id)
			if parentID == current {
				filled++
				if filled == 4 {
					temp.Add(parentID)
				}
			} else {
				current = parentID
				filled = 1
			}
		}
		toIterate = temp
		r.Or(temp)
	}
}

// writeCoverageImage renders a single-zoom interior/boundary/exterior
// coverage bitmap as a PNG, a debugging aid for region-based filtering.
func writeCoverageImage(w io.Writer, interior, boundary, exterior *roaring64.Bitmap, zoom uint8) error {
	dim := 1 << zoom
	img := image.NewNRGBA(image.Rect(0, 0, dim, dim))

	min := coord.Coord{Level: zoom, X: 0, Y: 0}.ID()
	max := coord.Coord{Level: zoom + 1, X: 0, Y: 0}.ID()

	paint := func(set *roaring64.Bitmap, fill color.NRGBA) {
		it := set.Iterator()
		for it.HasNext() {
			id := it.Next()
			if id >= min && id < max {
				c, err := coord.FromID(id)
				if err != nil {
					continue
				}
				img.Set(int(c.X), int(c.Y), fill)
			}
		}
	}
	paint(interior, color.NRGBA{R: 0, G: 255, B: 255, A: 255})
	paint(boundary, color.NRGBA{R: 255, G: 0, B: 255, A: 255})
	paint(exterior, color.NRGBA{R: 255, G: 255, B: 0, A: 255})

	return png.Encode(w, img)
}
