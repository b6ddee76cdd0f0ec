package pipeline

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tkerr"
)

// Build parses a pipeline chain and constructs its Operation graph.
//
// Grammar (spec.md §4.9 — a linear chain joined with `|`, with bracketed
// groups of comma-separated sub-chains for operations that take multiple
// sources):
//
//	pipeline := stage ('|' stage)*
//	stage    := name | name '(' args? ')' | name '[' pipeline (',' pipeline)* ']'
//	args     := arg (',' arg)*
//	arg      := key '=' value
//
// Stages are folded left to right: the first stage must be a leaf
// (from_container, from_debug, from_stacked, from_vectortiles_merged); every
// later stage receives the previous stage's Operation as its upstream. A
// failed traversal intersection at a join point (inside from_stacked /
// from_vectortiles_merged) aborts construction immediately, per spec.md §4.9.
func Build(chain string, logger *log.Logger) (Operation, error) {
	p := &parser{input: chain, logger: logger}
	specs, err := p.parseStageList()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("%w: unexpected trailing input %q", tkerr.ErrConfigError, p.input[p.pos:])
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: empty pipeline", tkerr.ErrConfigError)
	}

	var op Operation
	for i, spec := range specs {
		var upstream Operation
		if i > 0 {
			upstream = op
		}
		op, err = instantiate(spec, upstream, logger)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, spec.name, err)
		}
	}
	return op, nil
}

// stageSpec is a parsed, uninstantiated pipeline stage.
type stageSpec struct {
	name  string
	args  map[string]string
	group [][]*stageSpec // bracketed sub-pipelines, each its own stage list
}

type parser struct {
	input  string
	pos    int
	logger *log.Logger
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\n' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseStageList parses stage ('|' stage)*, stopping before an unmatched
// ']' or ',' belonging to an enclosing group.
func (p *parser) parseStageList() ([]*stageSpec, error) {
	var specs []*stageSpec
	spec, err := p.parseStage()
	if err != nil {
		return nil, err
	}
	specs = append(specs, spec)
	for {
		p.skipSpace()
		if p.peek() != '|' {
			return specs, nil
		}
		p.pos++
		spec, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
}

func (p *parser) parseStage() (*stageSpec, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]
	if name == "" {
		return nil, fmt.Errorf("%w: expected operation name at %q", tkerr.ErrConfigError, p.input[p.pos:])
	}

	spec := &stageSpec{name: name, args: map[string]string{}}
	p.skipSpace()

	switch p.peek() {
	case '(':
		p.pos++
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		spec.args = args
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("%w: expected ')' in stage %q", tkerr.ErrConfigError, name)
		}
		p.pos++

	case '[':
		p.pos++
		for {
			sub, err := p.parseStageList()
			if err != nil {
				return nil, err
			}
			spec.group = append(spec.group, sub)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		p.skipSpace()
		if p.peek() != ']' {
			return nil, fmt.Errorf("%w: expected ']' in stage %q", tkerr.ErrConfigError, name)
		}
		p.pos++
	}

	return spec, nil
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (p *parser) parseArgs() (map[string]string, error) {
	args := map[string]string{}
	p.skipSpace()
	if p.peek() == ')' {
		return args, nil
	}
	for {
		p.skipSpace()
		keyStart := p.pos
		for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
			p.pos++
		}
		key := p.input[keyStart:p.pos]
		p.skipSpace()
		if p.peek() != '=' {
			return nil, fmt.Errorf("%w: expected '=' after arg %q", tkerr.ErrConfigError, key)
		}
		p.pos++
		valStart := p.pos
		for p.pos < len(p.input) && p.input[p.pos] != ',' && p.input[p.pos] != ')' {
			p.pos++
		}
		args[key] = strings.TrimSpace(p.input[valStart:p.pos])
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	return args, nil
}

// instantiate builds the concrete Operation a stageSpec describes. upstream
// is nil for the first stage in a chain or sub-chain.
func instantiate(spec *stageSpec, upstream Operation, logger *log.Logger) (Operation, error) {
	switch spec.name {
	case "from_container":
		path := spec.args["path"]
		ds, err := pmtiles.OpenFileDataSource(path)
		if err != nil {
			return nil, err
		}
		return NewFromContainer(ds, logger)

	case "from_debug":
		f := format.MVT
		if v, ok := spec.args["format"]; ok {
			f = format.ParseFormat(v)
		}
		return NewFromDebug(f), nil

	case "from_stacked":
		sources, err := instantiateGroup(spec, logger)
		if err != nil {
			return nil, err
		}
		return NewFromStacked(sources)

	case "from_vectortiles_merged":
		sources, err := instantiateGroup(spec, logger)
		if err != nil {
			return nil, err
		}
		return NewFromVectortilesMerged(sources)

	case "filter":
		if upstream == nil {
			return nil, fmt.Errorf("%w: filter requires an upstream", tkerr.ErrConfigError)
		}
		opts, err := parseFilterArgs(spec.args)
		if err != nil {
			return nil, err
		}
		return NewFilter(upstream, opts), nil

	case "meta_update":
		if upstream == nil {
			return nil, fmt.Errorf("%w: meta_update requires an upstream", tkerr.ErrConfigError)
		}
		return NewMetaUpdate(upstream, parseMetaUpdateArgs(spec.args)), nil

	case "raster_format":
		if upstream == nil {
			return nil, fmt.Errorf("%w: raster_format requires an upstream", tkerr.ErrConfigError)
		}
		opts, err := parseRasterFormatArgs(spec.args)
		if err != nil {
			return nil, err
		}
		return NewRasterFormat(upstream, opts, logger)

	case "raster_levels":
		if upstream == nil {
			return nil, fmt.Errorf("%w: raster_levels requires an upstream", tkerr.ErrConfigError)
		}
		opts, err := parseRasterLevelsArgs(spec.args)
		if err != nil {
			return nil, err
		}
		return NewRasterLevels(upstream, opts, logger), nil

	case "vectortiles_update_properties":
		if upstream == nil {
			return nil, fmt.Errorf("%w: vectortiles_update_properties requires an upstream", tkerr.ErrConfigError)
		}
		return instantiateVectortilesUpdateProperties(upstream, spec.args, logger)

	default:
		return nil, fmt.Errorf("%w: unknown pipeline operation %q", tkerr.ErrConfigError, spec.name)
	}
}

func instantiateGroup(spec *stageSpec, logger *log.Logger) ([]Operation, error) {
	sources := make([]Operation, 0, len(spec.group))
	for _, sub := range spec.group {
		var op Operation
		var err error
		for i, s := range sub {
			var up Operation
			if i > 0 {
				up = op
			}
			op, err = instantiate(s, up, logger)
			if err != nil {
				return nil, err
			}
		}
		sources = append(sources, op)
	}
	return sources, nil
}

func parseFilterArgs(args map[string]string) (FilterOptions, error) {
	var opts FilterOptions
	if v, ok := args["level_min"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: invalid level_min %q", tkerr.ErrConfigError, v)
		}
		u := uint8(n)
		opts.LevelMin = &u
	}
	if v, ok := args["level_max"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: invalid level_max %q", tkerr.ErrConfigError, v)
		}
		u := uint8(n)
		opts.LevelMax = &u
	}
	if v, ok := args["bbox"]; ok {
		parts := strings.Split(v, ":")
		if len(parts) != 4 {
			return opts, fmt.Errorf("%w: bbox %q must be minLon:minLat:maxLon:maxLat", tkerr.ErrConfigError, v)
		}
		nums := make([]float64, 4)
		for i, s := range parts {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return opts, fmt.Errorf("%w: invalid bbox component %q", tkerr.ErrConfigError, s)
			}
			nums[i] = f
		}
		opts.Bbox = &LonLatBBox{MinLon: nums[0], MinLat: nums[1], MaxLon: nums[2], MaxLat: nums[3]}
	}
	return opts, nil
}

func parseMetaUpdateArgs(args map[string]string) MetaUpdateOptions {
	var opts MetaUpdateOptions
	if v, ok := args["attribution"]; ok {
		opts.Attribution = &v
	}
	if v, ok := args["description"]; ok {
		opts.Description = &v
	}
	if v, ok := args["name"]; ok {
		opts.Name = &v
	}
	if v, ok := args["content"]; ok {
		opts.Content = &v
	}
	if v, ok := args["fillzoom"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			u := uint8(n)
			opts.Fillzoom = &u
		}
	}
	return opts
}

func parseRasterFormatArgs(args map[string]string) (RasterFormatOptions, error) {
	var opts RasterFormatOptions
	if v, ok := args["format"]; ok {
		f := format.ParseFormat(v)
		opts.Format = &f
	}
	opts.Quality = args["quality"]
	if v, ok := args["speed"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: invalid speed %q", tkerr.ErrConfigError, v)
		}
		u := uint8(n)
		opts.Speed = &u
	}
	return opts, nil
}

func parseRasterLevelsArgs(args map[string]string) (RasterLevelsOptions, error) {
	var opts RasterLevelsOptions
	parseF := func(key string) (*float64, error) {
		v, ok := args[key]
		if !ok {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s %q", tkerr.ErrConfigError, key, v)
		}
		return &f, nil
	}
	var err error
	if opts.Brightness, err = parseF("brightness"); err != nil {
		return opts, err
	}
	if opts.Contrast, err = parseF("contrast"); err != nil {
		return opts, err
	}
	if opts.Gamma, err = parseF("gamma"); err != nil {
		return opts, err
	}
	return opts, nil
}

func instantiateVectortilesUpdateProperties(upstream Operation, args map[string]string, logger *log.Logger) (Operation, error) {
	path := args["path"]
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", tkerr.ErrConfigError, path, err)
	}
	defer f.Close()

	opts := VectortilesUpdatePropertiesOptions{
		IDFieldTiles: args["id_field_tiles"],
		IDFieldData:  args["id_field_data"],
		LayerName:    args["layer_name"],
	}
	if v, ok := args["replace_properties"]; ok {
		opts.ReplaceProperties = v == "true"
	}
	if v, ok := args["include_id"]; ok {
		opts.IncludeID = v == "true"
	}

	return NewVectortilesUpdateProperties(upstream, f, opts, logger)
}
