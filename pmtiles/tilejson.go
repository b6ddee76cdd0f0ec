package pmtiles

import "encoding/json"

// TileJSON is the opaque, mergeable metadata document an archive carries
// alongside its tiles (spec.md's meta_update/from_vectortiles_merged
// operations read and write this shape).
type TileJSON map[string]interface{}

// BuildTileJSON assembles a TileJSON document from a reader's header and
// decoded metadata, in the vocabulary the TileJSON/MBTiles spec uses.
func BuildTileJSON(header HeaderV3, meta map[string]interface{}) TileJSON {
	tj := make(TileJSON)
	for k, v := range meta {
		tj[k] = v
	}

	tj["tilejson"] = "3.0.0"
	tj["scheme"] = "xyz"
	tj["format"] = header.TileType.String()

	const e7 = 10000000.0
	tj["bounds"] = []float64{
		float64(header.MinLonE7) / e7, float64(header.MinLatE7) / e7,
		float64(header.MaxLonE7) / e7, float64(header.MaxLatE7) / e7,
	}
	tj["center"] = []interface{}{
		float64(header.CenterLonE7) / e7, float64(header.CenterLatE7) / e7, header.CenterZoom,
	}
	tj["minzoom"] = header.MinZoom
	tj["maxzoom"] = header.MaxZoom

	return tj
}

// Merge combines two TileJSON documents: scalar fields from other override
// this one's, while "vector_layers" is unioned by layer id (used by
// from_vectortiles_merged to combine per-source layer catalogs).
func (tj TileJSON) Merge(other TileJSON) TileJSON {
	out := make(TileJSON, len(tj))
	for k, v := range tj {
		out[k] = v
	}
	for k, v := range other {
		if k == "vector_layers" {
			out[k] = mergeVectorLayers(out["vector_layers"], v)
			continue
		}
		out[k] = v
	}
	return out
}

func mergeVectorLayers(a, b interface{}) []interface{} {
	seen := make(map[string]bool)
	var out []interface{}
	for _, raw := range []interface{}{a, b} {
		layers, ok := raw.([]interface{})
		if !ok {
			continue
		}
		for _, layer := range layers {
			m, ok := layer.(map[string]interface{})
			if !ok {
				out = append(out, layer)
				continue
			}
			id, _ := m["id"].(string)
			if id != "" && seen[id] {
				continue
			}
			if id != "" {
				seen[id] = true
			}
			out = append(out, layer)
		}
	}
	return out
}

// Bytes renders the document as compact JSON for CLI/show output.
func (tj TileJSON) Bytes() ([]byte, error) {
	return json.Marshal(tj)
}
