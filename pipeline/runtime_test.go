package pipeline

import (
	"testing"

	"github.com/protomaps/tilekiln/coord"
	"github.com/protomaps/tilekiln/format"
)

func TestBuildSimpleChain(t *testing.T) {
	op, err := Build("from_debug(format=mvt) | filter(level_min=1,level_max=3)", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p, err := op.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if p.Format != format.MVT {
		t.Fatalf("Format = %v, want MVT", p.Format)
	}
	if zmin, ok := p.Pyramid.ZoomMin(); !ok || zmin != 1 {
		t.Fatalf("ZoomMin = %d,%v, want 1,true", zmin, ok)
	}
	if zmax, ok := p.Pyramid.ZoomMax(); !ok || zmax != 3 {
		t.Fatalf("ZoomMax = %d,%v, want 3,true", zmax, ok)
	}

	s, err := op.GetStream(coord.NewFull(0))
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if len(s.Items) != 0 {
		t.Fatalf("expected level 0 to be filtered out, got %d tiles", len(s.Items))
	}
}

func TestBuildStackedGroup(t *testing.T) {
	op, err := Build("from_stacked[from_debug(format=png), from_debug(format=png)]", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p, err := op.Parameters()
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if p.Format != format.PNG {
		t.Fatalf("Format = %v, want PNG", p.Format)
	}
}

func TestBuildRejectsUnknownOperation(t *testing.T) {
	if _, err := Build("nonexistent_stage()", nil); err == nil {
		t.Fatalf("expected an error for an unknown operation")
	}
}

func TestBuildRejectsFilterWithoutUpstream(t *testing.T) {
	if _, err := Build("filter(level_min=1)", nil); err == nil {
		t.Fatalf("expected filter to require an upstream")
	}
}

func TestBuildRejectsTrailingInput(t *testing.T) {
	if _, err := Build("from_debug(format=mvt) extra", nil); err == nil {
		t.Fatalf("expected trailing input after a complete chain to be rejected")
	}
}
