package coord

import "fmt"

// BBox is a closed axis-aligned rectangle of tile coordinates at a single
// level: tiles with MinX<=x<=MaxX, MinY<=y<=MaxY are "inside". An Empty
// bbox contains no tiles. (The literal test vectors carried over from the
// Rust original use inclusive bounds — e.g. "[0,0,0,0] (1)" denotes exactly
// one tile — so this implementation follows that rather than spec.md's
// "half-open" wording, which the vectors themselves contradict.)
type BBox struct {
	Level            uint8
	MinX, MinY       uint32
	MaxX, MaxY       uint32
	Empty            bool
}

// NewFull returns the bbox covering every tile at level.
func NewFull(level uint8) BBox {
	n := uint32(1)<<level - 1
	return BBox{Level: level, MinX: 0, MinY: 0, MaxX: n, MaxY: n}
}

// NewEmpty returns the empty bbox at level.
func NewEmpty(level uint8) BBox {
	return BBox{Level: level, Empty: true}
}

// FromMinMax builds a bbox from explicit bounds, clamping to the level's
// valid range and marking it Empty if the range is inverted.
func FromMinMax(level uint8, minX, minY, maxX, maxY uint32) BBox {
	n := uint32(1)<<level - 1
	if minX > n {
		minX = n
	}
	if minY > n {
		minY = n
	}
	if maxX > n {
		maxX = n
	}
	if maxY > n {
		maxY = n
	}
	if minX > maxX || minY > maxY {
		return NewEmpty(level)
	}
	return BBox{Level: level, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// Width returns the number of tile columns spanned.
func (b BBox) Width() uint32 {
	if b.Empty {
		return 0
	}
	return b.MaxX - b.MinX + 1
}

// Height returns the number of tile rows spanned.
func (b BBox) Height() uint32 {
	if b.Empty {
		return 0
	}
	return b.MaxY - b.MinY + 1
}

// Count returns the number of tiles in the bbox.
func (b BBox) Count() uint64 {
	return uint64(b.Width()) * uint64(b.Height())
}

// Contains reports whether c lies inside the bbox (same level required).
func (b BBox) Contains(c Coord) bool {
	if b.Empty || c.Level != b.Level {
		return false
	}
	return c.X >= b.MinX && c.X <= b.MaxX && c.Y >= b.MinY && c.Y <= b.MaxY
}

// Intersect returns the overlap of two same-level bboxes.
func (b BBox) Intersect(other BBox) BBox {
	if b.Empty || other.Empty || b.Level != other.Level {
		return NewEmpty(b.Level)
	}
	minX, minY := max32(b.MinX, other.MinX), max32(b.MinY, other.MinY)
	maxX, maxY := min32(b.MaxX, other.MaxX), min32(b.MaxY, other.MaxY)
	if minX > maxX || minY > maxY {
		return NewEmpty(b.Level)
	}
	return BBox{Level: b.Level, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// Union returns the bounding rectangle covering both same-level bboxes.
func (b BBox) Union(other BBox) BBox {
	if b.Empty {
		return other
	}
	if other.Empty {
		return b
	}
	return BBox{
		Level: b.Level,
		MinX:  min32(b.MinX, other.MinX),
		MinY:  min32(b.MinY, other.MinY),
		MaxX:  max32(b.MaxX, other.MaxX),
		MaxY:  max32(b.MaxY, other.MaxY),
	}
}

// IterBBoxGrid partitions the bbox into sub-bboxes aligned to a power-of-two
// grid of the given size (the unit used by from_stacked/from_vectortiles_merged
// to subdivide a request into bounded batches).
func (b BBox) IterBBoxGrid(size uint32) []BBox {
	if b.Empty || size == 0 {
		return nil
	}
	var out []BBox
	startX := (b.MinX / size) * size
	startY := (b.MinY / size) * size
	for gy := startY; gy <= b.MaxY; gy += size {
		for gx := startX; gx <= b.MaxX; gx += size {
			sub := BBox{
				Level: b.Level,
				MinX:  max32(gx, b.MinX),
				MinY:  max32(gy, b.MinY),
				MaxX:  min32(gx+size-1, b.MaxX),
				MaxY:  min32(gy+size-1, b.MaxY),
			}
			out = append(out, sub)
		}
	}
	return out
}

// TileIndex returns the row-major index of c within the bbox, used to place
// results into a flat slice while streaming a block in traversal order.
func (b BBox) TileIndex(c Coord) (int, bool) {
	if !b.Contains(c) {
		return 0, false
	}
	return int(c.Y-b.MinY)*int(b.Width()) + int(c.X-b.MinX), true
}

// CoordByIndex is the inverse of TileIndex.
func (b BBox) CoordByIndex(i int) (Coord, bool) {
	if b.Empty || i < 0 || uint64(i) >= b.Count() {
		return Coord{}, false
	}
	w := int(b.Width())
	x := b.MinX + uint32(i%w)
	y := b.MinY + uint32(i/w)
	return Coord{Level: b.Level, X: x, Y: y}, true
}

// Coords enumerates every coordinate in the bbox in row-major order. Callers
// needing Hilbert/PMTiles order should sort by Coord.ID() instead.
func (b BBox) Coords() []Coord {
	if b.Empty {
		return nil
	}
	out := make([]Coord, 0, b.Count())
	for y := b.MinY; y <= b.MaxY; y++ {
		for x := b.MinX; x <= b.MaxX; x++ {
			out = append(out, Coord{Level: b.Level, X: x, Y: y})
		}
	}
	return out
}

func (b BBox) String() string {
	if b.Empty {
		return fmt.Sprintf("%d: [] (0)", b.Level)
	}
	return fmt.Sprintf("%d: [%d,%d,%d,%d] (%d)", b.Level, b.MinX, b.MinY, b.MaxX, b.MaxY, b.Count())
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
