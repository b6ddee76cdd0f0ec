package pipeline

import (
	"log"
	"sort"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// FromContainer is a leaf Operation that delegates to an opened PMTiles
// archive, per spec.md §4.8's `from_container(path)`.
type FromContainer struct {
	reader *pmtiles.Reader
	logger *log.Logger
}

// NewFromContainer opens ds as a PMTiles archive and wraps it as an Operation.
func NewFromContainer(ds pmtiles.DataSource, logger *log.Logger) (*FromContainer, error) {
	r, err := pmtiles.Open(ds)
	if err != nil {
		return nil, err
	}
	return &FromContainer{reader: r, logger: logger}, nil
}

func (f *FromContainer) Parameters() (Parameters, error) {
	return Parameters{
		Format:      f.reader.Header.TileType,
		Compression: f.reader.Header.TileCompression,
		Pyramid:     f.reader.Pyramid(),
	}, nil
}

func (f *FromContainer) TileJSON() (pmtiles.TileJSON, error) {
	return pmtiles.BuildTileJSON(f.reader.Header, f.reader.Meta), nil
}

func (f *FromContainer) Traversal() (coord.Traversal, error) {
	return f.reader.Traversal()
}

func (f *FromContainer) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	coords := bbox.Coords()
	sort.Slice(coords, func(i, j int) bool { return coords[i].ID() < coords[j].ID() })

	s, err := tile.FromIterCoordParallel(coords, func(c coord.Coord) (*tile.Tile, error) {
		data, ok, err := f.reader.GetTile(c)
		if err != nil {
			if f.logger != nil {
				f.logger.Printf("pipeline: from_container: error reading %s, reporting missing: %v", c, err)
			}
			return nil, nil
		}
		if !ok {
			return nil, nil
		}
		return tile.New(f.reader.Header.TileType, f.reader.Header.TileCompression, data), nil
	})
	if err != nil {
		return tile.Stream[*tile.Tile]{}, err
	}
	return dropMissing(s), nil
}

// dropMissing removes items whose Tile is nil, the convention GetStream
// implementations use to report an absent coordinate without aborting the
// whole bbox's worth of work.
func dropMissing(s tile.Stream[*tile.Tile]) tile.Stream[*tile.Tile] {
	items := make([]tile.Item[*tile.Tile], 0, len(s.Items))
	for _, it := range s.Items {
		if it.Value != nil {
			items = append(items, it)
		}
	}
	return tile.FromItems(items)
}
