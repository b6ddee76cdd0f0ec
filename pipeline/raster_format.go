package pipeline

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
	"github.com/protomaps/tilekiln/tkerr"
)

// RasterFormatOptions carries raster_format's optional arguments.
type RasterFormatOptions struct {
	Format  *format.Format
	Quality string // comma-separated "[Z:]Q" list, per spec.md §4.8
	Speed   *uint8
}

// RasterFormat recodes raster tiles to a target format/quality, per
// spec.md §4.8's `raster_format(format?, quality?, speed?)`.
type RasterFormat struct {
	upstream     Operation
	targetFormat *format.Format
	qualityByZoom [32]uint8
	speed         *uint8
	logger        *log.Logger
}

// NewRasterFormat builds a RasterFormat over upstream. opts.Quality is
// parsed with ParseQualityLevels; a malformed list is a ConfigError.
func NewRasterFormat(upstream Operation, opts RasterFormatOptions, logger *log.Logger) (*RasterFormat, error) {
	levels, err := ParseQualityLevels(opts.Quality)
	if err != nil {
		return nil, err
	}
	return &RasterFormat{
		upstream:      upstream,
		targetFormat:  opts.Format,
		qualityByZoom: levels,
		speed:         opts.Speed,
		logger:        logger,
	}, nil
}

// ParseQualityLevels parses the `quality` argument: a comma-separated list
// of `[Z:]Q` entries. Missing Z means "next zoom after the last entry"; a
// value applies to that zoom and every higher zoom until overridden. An
// empty string yields quality 0 (a no-op override) for all 32 zooms.
func ParseQualityLevels(spec string) ([32]uint8, error) {
	var levels [32]uint8
	if strings.TrimSpace(spec) == "" {
		return levels, nil
	}

	type entry struct {
		zoom    int
		quality uint8
	}
	var entries []entry
	nextZoom := 0
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		zoom := nextZoom
		qualityStr := part
		if idx := strings.IndexByte(part, ':'); idx >= 0 {
			zoomStr := part[:idx]
			qualityStr = part[idx+1:]
			z, err := strconv.Atoi(zoomStr)
			if err != nil {
				return levels, fmt.Errorf("%w: invalid zoom %q in quality spec %q", tkerr.ErrConfigError, zoomStr, spec)
			}
			zoom = z
		}
		if zoom < 0 || zoom > 31 {
			return levels, fmt.Errorf("%w: zoom %d outside 0..31 in quality spec %q", tkerr.ErrConfigError, zoom, spec)
		}
		q, err := strconv.Atoi(qualityStr)
		if err != nil || q < 0 || q > 100 {
			return levels, fmt.Errorf("%w: invalid quality %q in quality spec %q", tkerr.ErrConfigError, qualityStr, spec)
		}
		entries = append(entries, entry{zoom: zoom, quality: uint8(q)})
		nextZoom = zoom + 1
	}

	for i, e := range entries {
		end := 32
		if i+1 < len(entries) {
			end = entries[i+1].zoom
		}
		for z := e.zoom; z < end && z < 32; z++ {
			levels[z] = e.quality
		}
	}
	return levels, nil
}

func (r *RasterFormat) Parameters() (Parameters, error) {
	p, err := r.upstream.Parameters()
	if err != nil {
		return Parameters{}, err
	}
	if r.targetFormat != nil {
		p.Format = *r.targetFormat
	}
	return p, nil
}

func (r *RasterFormat) TileJSON() (pmtiles.TileJSON, error) { return r.upstream.TileJSON() }

func (r *RasterFormat) Traversal() (coord.Traversal, error) { return r.upstream.Traversal() }

func (r *RasterFormat) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	s, err := r.upstream.GetStream(bbox)
	if err != nil {
		return tile.Stream[*tile.Tile]{}, err
	}
	return tile.MapFullItemParallel(r.logger, s, func(item tile.Item[*tile.Tile]) (*tile.Tile, error) {
		target := item.Value.Format
		if r.targetFormat != nil {
			target = *r.targetFormat
		}
		opts := tile.RecodeOptions{Speed: r.speed}
		if quality := r.qualityByZoom[item.Coord.Level]; quality != 0 {
			opts.Quality = &quality
		}
		return item.Value.ChangeFormat(target, opts)
	}), nil
}
