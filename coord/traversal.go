package coord

import (
	"fmt"
	"sort"

	"github.com/protomaps/tilekiln/tkerr"
)

// Order is the block ordering strategy a pipeline operation advertises.
type Order int

const (
	// AnyOrder places no constraint; it intersects with, and adopts, any
	// other order.
	AnyOrder Order = iota
	// DepthFirst visits a quadtree's finer blocks before their parent at
	// each step (recursive quadtree, children before parent).
	DepthFirst
	// PMTiles visits blocks in Hilbert-curve order, matching the on-disk
	// clustering of a PMTiles archive.
	PMTiles
)

func (o Order) String() string {
	switch o {
	case AnyOrder:
		return "AnyOrder"
	case DepthFirst:
		return "DepthFirst"
	case PMTiles:
		return "PMTiles"
	default:
		return "Unknown"
	}
}

// intersect combines two orders: AnyOrder yields to the other; two
// concrete, differing orders cannot intersect.
func (o Order) intersect(other Order) (Order, error) {
	if o == AnyOrder {
		return other, nil
	}
	if other == AnyOrder {
		return o, nil
	}
	if o == other {
		return o, nil
	}
	return 0, fmt.Errorf("%w: orders %s and %s do not intersect", tkerr.ErrTraversalIncompatible, o, other)
}

// defaultMaxSize mirrors the Rust original's Traversal::new_any default
// (1<<20), large enough to never constrain a real pyramid's block size.
const defaultMaxSize = 1 << 20

// Traversal composes a block-size range (each bound a power of two) and an
// Order, advertised by every pipeline operation per spec.md §4.2/§4.9.
type Traversal struct {
	order          Order
	minSize        uint32
	maxSize        uint32
	sizeIsEmpty    bool
}

// Any is the identity traversal: any order, any power-of-two size.
var Any = Traversal{order: AnyOrder, minSize: 1, maxSize: defaultMaxSize}

// New constructs a Traversal, validating that minSize/maxSize are powers of
// two with minSize <= maxSize.
func New(order Order, minSize, maxSize uint32) (Traversal, error) {
	if err := validateSize(minSize, maxSize); err != nil {
		return Traversal{}, err
	}
	return Traversal{order: order, minSize: minSize, maxSize: maxSize}, nil
}

// NewAnySize constructs a Traversal with AnyOrder and the given size range.
func NewAnySize(minSize, maxSize uint32) (Traversal, error) {
	return New(AnyOrder, minSize, maxSize)
}

func validateSize(minSize, maxSize uint32) error {
	if minSize == 0 || !isPowerOfTwo(minSize) || !isPowerOfTwo(maxSize) || minSize > maxSize {
		return fmt.Errorf("%w: invalid traversal size range [%d,%d]", tkerr.ErrConfigError, minSize, maxSize)
	}
	return nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// Order returns the traversal's block ordering.
func (t Traversal) Order() Order { return t.order }

// MaxSize returns the traversal's upper block-size bound.
func (t Traversal) MaxSize() (uint32, error) {
	if t.sizeIsEmpty {
		return 0, fmt.Errorf("%w: no suitable block size", tkerr.ErrTraversalIncompatible)
	}
	return t.maxSize, nil
}

// MinSize returns the traversal's lower block-size bound.
func (t Traversal) MinSize() (uint32, error) {
	if t.sizeIsEmpty {
		return 0, fmt.Errorf("%w: no suitable block size", tkerr.ErrTraversalIncompatible)
	}
	return t.minSize, nil
}

// Intersect returns the traversal compatible with both t and other: it
// tightens the size range and narrows the order, failing if either is
// disjoint. AnyOrder/the full size range act as the identity, so Intersect
// is commutative and associative with Any as the neutral element.
func (t Traversal) Intersect(other Traversal) (Traversal, error) {
	order, err := t.order.intersect(other.order)
	if err != nil {
		return Traversal{}, err
	}
	minSize := maxu32(t.minSize, other.minSize)
	maxSize := minu32(t.maxSize, other.maxSize)
	if minSize > maxSize {
		return Traversal{order: order, sizeIsEmpty: true}, fmt.Errorf("%w: size ranges [%d,%d] and [%d,%d] do not intersect", tkerr.ErrTraversalIncompatible, t.minSize, t.maxSize, other.minSize, other.maxSize)
	}
	return Traversal{order: order, minSize: minSize, maxSize: maxSize}, nil
}

func (t Traversal) String() string {
	if t.sizeIsEmpty {
		return fmt.Sprintf("Traversal(%s, but no suitable block size)", t.order)
	}
	return fmt.Sprintf("Traversal(%s, min-size: %d, max-size: %d)", t.order, t.minSize, t.maxSize)
}

// TraversePyramid yields every bbox of pyramid, subdivided to the
// traversal's max block size, ordered per t.Order().
func (t Traversal) TraversePyramid(pyramid *Pyramid) ([]BBox, error) {
	size, err := t.MaxSize()
	if err != nil {
		return nil, err
	}
	var boxes []BBox
	for z := uint8(0); z <= MaxLevel; z++ {
		b := pyramid.Level(z)
		if b.Empty {
			continue
		}
		boxes = append(boxes, b.IterBBoxGrid(size)...)
	}
	sortBoxes(boxes, t.order)
	return boxes, nil
}

func sortBoxes(boxes []BBox, order Order) {
	switch order {
	case DepthFirst:
		// Finer (higher) zoom blocks before coarser ones, matching
		// "children before parent" at each step of the recursive descent.
		sort.SliceStable(boxes, func(i, j int) bool {
			if boxes[i].Level != boxes[j].Level {
				return boxes[i].Level > boxes[j].Level
			}
			return rowMajorLess(boxes[i], boxes[j])
		})
	case PMTiles:
		sort.SliceStable(boxes, func(i, j int) bool {
			if boxes[i].Level != boxes[j].Level {
				return boxes[i].Level < boxes[j].Level
			}
			return blockHilbertIndex(boxes[i]) < blockHilbertIndex(boxes[j])
		})
	default: // AnyOrder: ascending level, row-major within level
		sort.SliceStable(boxes, func(i, j int) bool {
			if boxes[i].Level != boxes[j].Level {
				return boxes[i].Level < boxes[j].Level
			}
			return rowMajorLess(boxes[i], boxes[j])
		})
	}
}

func rowMajorLess(a, b BBox) bool {
	if a.MinY != b.MinY {
		return a.MinY < b.MinY
	}
	return a.MinX < b.MinX
}

// blockHilbertIndex orders grid blocks by the Hilbert index of their
// top-left corner at the block's own level, giving the PMTiles clustering
// order for same-size sibling blocks.
func blockHilbertIndex(b BBox) uint64 {
	c := Coord{Level: b.Level, X: b.MinX, Y: b.MinY}
	return c.ID()
}

func minu32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
