package pipeline

import (
	"fmt"
	"testing"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pmtiles"
	"github.com/protomaps/tilekiln/tile"
)

// leafOp is a minimal Operation whose GetStream only answers for coordinates
// inside its own pyramid, tagging each tile's bytes with a source label so
// overlay order is observable.
type leafOp struct {
	label   string
	pyramid *coord.Pyramid
}

func (l *leafOp) Parameters() (Parameters, error) {
	return Parameters{Format: format.MVT, Compression: format.Uncompressed, Pyramid: l.pyramid}, nil
}

func (l *leafOp) TileJSON() (pmtiles.TileJSON, error) {
	return pmtiles.TileJSON{"name": l.label}, nil
}

func (l *leafOp) Traversal() (coord.Traversal, error) { return coord.Any, nil }

func (l *leafOp) GetStream(bbox coord.BBox) (tile.Stream[*tile.Tile], error) {
	var items []tile.Item[*tile.Tile]
	for _, c := range bbox.Coords() {
		if !l.pyramid.ContainsCoord(c) {
			continue
		}
		items = append(items, tile.Item[*tile.Tile]{
			Coord: c,
			Value: tile.New(format.MVT, format.Uncompressed, []byte(fmt.Sprintf("%s:%v", l.label, c))),
		})
	}
	return tile.FromItems(items), nil
}

func TestFromStackedUnionOfDisjointPyramids(t *testing.T) {
	left := coord.NewEmptyPyramid()
	left.IncludeBBox(coord.FromMinMax(2, 0, 0, 1, 3))
	right := coord.NewEmptyPyramid()
	right.IncludeBBox(coord.FromMinMax(2, 2, 0, 3, 3))

	a := &leafOp{label: "a", pyramid: left}
	b := &leafOp{label: "b", pyramid: right}

	stacked, err := NewFromStacked([]Operation{a, b})
	if err != nil {
		t.Fatalf("NewFromStacked: %v", err)
	}
	p, err := stacked.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	level2 := p.Pyramid.Level(2)
	if level2.Count() != coord.NewFull(2).Count() {
		t.Fatalf("expected union to cover the full level, got count %d", level2.Count())
	}

	s, err := stacked.GetStream(coord.NewFull(2))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if uint64(len(s.Items)) != coord.NewFull(2).Count() {
		t.Fatalf("got %d tiles, want %d", len(s.Items), coord.NewFull(2).Count())
	}
}

func TestFromStackedFirstHitWins(t *testing.T) {
	full := coord.NewFullPyramid(2)
	a := &leafOp{label: "a", pyramid: full}
	b := &leafOp{label: "b", pyramid: full}

	stacked, err := NewFromStacked([]Operation{a, b})
	if err != nil {
		t.Fatalf("NewFromStacked: %v", err)
	}
	s, err := stacked.GetStream(coord.NewFull(2))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	for _, item := range s.Items {
		want := fmt.Sprintf("a:%v", item.Coord)
		if string(item.Value.Bytes()) != want {
			t.Fatalf("tile %v = %q, want first source %q", item.Coord, item.Value.Bytes(), want)
		}
	}
}

func TestFromStackedRequiresAtLeastTwoSources(t *testing.T) {
	a := &leafOp{label: "a", pyramid: coord.NewFullPyramid(1)}
	if _, err := NewFromStacked([]Operation{a}); err == nil {
		t.Fatalf("expected error with a single source")
	}
}
