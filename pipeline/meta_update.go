package pipeline

import (
	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// MetaUpdateOptions carries meta_update's optional scalar overrides.
type MetaUpdateOptions struct {
	Attribution *string
	Description *string
	Name        *string
	Fillzoom    *uint8
	Content     *string
}

// MetaUpdate merges scalar fields into the upstream TileJSON without
// touching tile data or the pyramid, per spec.md §4.8.
type MetaUpdate struct {
	upstream Operation
	opts     MetaUpdateOptions
}

func NewMetaUpdate(upstream Operation, opts MetaUpdateOptions) *MetaUpdate {
	return &MetaUpdate{upstream: upstream, opts: opts}
}

func (m *MetaUpdate) Parameters() (Parameters, error) { return m.upstream.Parameters() }

func (m *MetaUpdate) TileJSON() (pmtiles.TileJSON, error) {
	tj, err := m.upstream.TileJSON()
	if err != nil {
		return nil, err
	}
	out := make(pmtiles.TileJSON, len(tj))
	for k, v := range tj {
		out[k] = v
	}
	if m.opts.Attribution != nil {
		out["attribution"] = *m.opts.Attribution
	}
	if m.opts.Description != nil {
		out["description"] = *m.opts.Description
	}
	if m.opts.Name != nil {
		out["name"] = *m.opts.Name
	}
	if m.opts.Fillzoom != nil {
		out["fillzoom"] = *m.opts.Fillzoom
	}
	if m.opts.Content != nil {
		out["content"] = *m.opts.Content
	}
	return out, nil
}

func (m *MetaUpdate) Traversal() (coord.Traversal, error) { return m.upstream.Traversal() }

func (m *MetaUpdate) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	return m.upstream.GetStream(bbox)
}
