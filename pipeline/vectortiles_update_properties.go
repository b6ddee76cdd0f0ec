package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
	"github.com/protomaps/tilekiln/tkerr"
)

// VectortilesUpdatePropertiesOptions carries the operation's arguments.
type VectortilesUpdatePropertiesOptions struct {
	IDFieldTiles      string
	IDFieldData       string
	LayerName         string // empty means every layer
	ReplaceProperties bool   // false: merge; true: replace the feature's bag
	IncludeID         bool
}

// VectortilesUpdateProperties joins an external CSV onto matching MVT
// features by key, per spec.md §4.8.
type VectortilesUpdateProperties struct {
	upstream Operation
	opts     VectortilesUpdatePropertiesOptions
	byKey    map[string]map[string]string
	logger   *log.Logger
}

// NewVectortilesUpdateProperties parses csvData (already read from the path
// argument) into a key->properties map keyed on opts.IDFieldData.
func NewVectortilesUpdateProperties(upstream Operation, csvData io.Reader, opts VectortilesUpdatePropertiesOptions, logger *log.Logger) (*VectortilesUpdateProperties, error) {
	r := csv.NewReader(csvData)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv header: %v", tkerr.ErrConfigError, err)
	}
	keyCol := -1
	for i, h := range header {
		if h == opts.IDFieldData {
			keyCol = i
			break
		}
	}
	if keyCol < 0 {
		return nil, fmt.Errorf("%w: csv has no column %q", tkerr.ErrConfigError, opts.IDFieldData)
	}

	byKey := make(map[string]map[string]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading csv row: %v", tkerr.ErrConfigError, err)
		}
		props := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				props[h] = row[i]
			}
		}
		byKey[row[keyCol]] = props
	}

	return &VectortilesUpdateProperties{upstream: upstream, opts: opts, byKey: byKey, logger: logger}, nil
}

func (v *VectortilesUpdateProperties) Parameters() (Parameters, error) { return v.upstream.Parameters() }

func (v *VectortilesUpdateProperties) TileJSON() (pmtiles.TileJSON, error) { return v.upstream.TileJSON() }

func (v *VectortilesUpdateProperties) Traversal() (coord.Traversal, error) { return v.upstream.Traversal() }

func (v *VectortilesUpdateProperties) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	s, err := v.upstream.GetStream(bbox)
	if err != nil {
		return tile.Stream[*tile.Tile]{}, err
	}
	return tile.MapItemParallel(v.logger, s, func(t *tile.Tile) (*tile.Tile, error) {
		layers, err := t.Vector()
		if err != nil {
			return nil, err
		}

		missLogged := false
		for _, layer := range layers {
			if v.opts.LayerName != "" && layer.Name != v.opts.LayerName {
				continue
			}
			for _, f := range layer.Features {
				idVal, ok := f.Properties[v.opts.IDFieldTiles]
				if !ok {
					continue
				}
				key := fmt.Sprintf("%v", idVal)
				props, found := v.byKey[key]
				if !found {
					if !missLogged && v.logger != nil {
						v.logger.Printf("pipeline: vectortiles_update_properties: no csv match for %s=%v", v.opts.IDFieldTiles, idVal)
						missLogged = true
					}
					continue
				}
				injected := make(map[string]interface{}, len(props))
				for k, val := range props {
					if !v.opts.IncludeID && k == v.opts.IDFieldData {
						continue
					}
					injected[k] = val
				}
				if v.opts.ReplaceProperties {
					f.Properties = injected
				} else {
					for k, val := range injected {
						f.Properties[k] = val
					}
				}
			}
		}

		encoded, err := tile.EncodeVector(layers)
		if err != nil {
			return nil, err
		}
		compressed, err := compressLike(t, encoded)
		if err != nil {
			return nil, err
		}
		return tile.New(t.Format, t.Compression, compressed), nil
	}), nil
}
