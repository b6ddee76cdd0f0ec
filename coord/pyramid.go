package coord

import "strings"

// Pyramid holds one BBox per level (0..=31); a level not present denotes
// "no tiles" at that level.
type Pyramid struct {
	levels [MaxLevel + 1]BBox
	set    [MaxLevel + 1]bool
}

// NewEmptyPyramid returns a pyramid with no tiles at any level.
func NewEmptyPyramid() *Pyramid {
	return &Pyramid{}
}

// NewFullPyramid returns a pyramid with every tile of every level 0..=maxZoom.
func NewFullPyramid(maxZoom uint8) *Pyramid {
	p := NewEmptyPyramid()
	for z := uint8(0); z <= maxZoom; z++ {
		p.IncludeBBox(NewFull(z))
	}
	return p
}

// IncludeBBox unions bbox into its level.
func (p *Pyramid) IncludeBBox(b BBox) {
	if b.Empty {
		return
	}
	if !p.set[b.Level] {
		p.levels[b.Level] = b
		p.set[b.Level] = true
		return
	}
	p.levels[b.Level] = p.levels[b.Level].Union(b)
}

// IncludeCoord is the single-coordinate specialization of IncludeBBox.
func (p *Pyramid) IncludeCoord(c Coord) {
	p.IncludeBBox(BBox{Level: c.Level, MinX: c.X, MinY: c.Y, MaxX: c.X, MaxY: c.Y})
}

// IncludeBBoxPyramid unions every level of other into p.
func (p *Pyramid) IncludeBBoxPyramid(other *Pyramid) {
	for z := uint8(0); z <= MaxLevel; z++ {
		if other.set[z] {
			p.IncludeBBox(other.levels[z])
		}
	}
}

// Level returns the bbox at a level (Empty if none set).
func (p *Pyramid) Level(z uint8) BBox {
	if !p.set[z] {
		return NewEmpty(z)
	}
	return p.levels[z]
}

// SetZoomMin drops every level below z.
func (p *Pyramid) SetZoomMin(z uint8) {
	for l := uint8(0); l < z; l++ {
		p.set[l] = false
		p.levels[l] = BBox{}
	}
}

// SetZoomMax drops every level above z.
func (p *Pyramid) SetZoomMax(z uint8) {
	for l := int(z) + 1; l <= MaxLevel; l++ {
		p.set[l] = false
		p.levels[l] = BBox{}
	}
}

// ZoomMin returns the lowest level with any tiles, and whether any exist.
func (p *Pyramid) ZoomMin() (uint8, bool) {
	for z := uint8(0); z <= MaxLevel; z++ {
		if p.set[z] {
			return z, true
		}
	}
	return 0, false
}

// ZoomMax returns the highest level with any tiles, and whether any exist.
func (p *Pyramid) ZoomMax() (uint8, bool) {
	for z := int(MaxLevel); z >= 0; z-- {
		if p.set[z] {
			return uint8(z), true
		}
	}
	return 0, false
}

// ContainsCoord reports whether c falls within the pyramid's retained region.
func (p *Pyramid) ContainsCoord(c Coord) bool {
	if c.Level > MaxLevel || !p.set[c.Level] {
		return false
	}
	return p.levels[c.Level].Contains(c)
}

// IntersectBBox clips bbox to the pyramid's bbox at the same level.
func (p *Pyramid) IntersectBBox(b BBox) BBox {
	return p.Level(b.Level).Intersect(b)
}

// Clone returns an independent copy.
func (p *Pyramid) Clone() *Pyramid {
	cp := *p
	return &cp
}

func (p *Pyramid) String() string {
	var parts []string
	for z := uint8(0); z <= MaxLevel; z++ {
		if p.set[z] {
			parts = append(parts, p.levels[z].String())
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
