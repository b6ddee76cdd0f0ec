// Package pipeline implements the operation graph that transforms and
// combines tile sources: the same `from_container | filter | ...` chain the
// teacher's CLI builds ad hoc inside convert.go and extract.go, generalized
// here into composable Operation values.
package pipeline

import (
	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// Parameters describes an operation's declared tile shape, mirroring the
// reader's (format, compression, pyramid) triple so a pipeline terminus can
// feed the writer exactly as a pmtiles.Reader would.
type Parameters struct {
	Format      format.Format
	Compression format.Compression
	Pyramid     *coord.Pyramid
}

// Operation is a node in the pipeline graph. Every operation advertises its
// output shape and traversal order, and streams decoded tiles for a
// requested bbox; the caller is responsible for intersecting bbox against
// the operation's own pyramid first (filter does this internally; the
// writer does it by only ever traversing the pyramid it was given).
type Operation interface {
	Parameters() (Parameters, error)
	TileJSON() (pmtiles.TileJSON, error)
	Traversal() (coord.Traversal, error)
	GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error)
}

// gridBlockSize is the sub-division unit from_stacked/from_vectortiles_merged
// use to bound per-block work, per spec.md §5.
const gridBlockSize = 32
