// Package coord implements the tile coordinate and pyramid algebra shared by
// the PMTiles engine and the pipeline runtime: Hilbert tile-ID mapping,
// bounding-box pyramids, and traversal orders. The Hilbert mapping is
// grounded in the teacher's pmtiles/tile_id.go bit-rotation algorithm,
// generalized to return errors instead of looping forever on bad input.
package coord

import (
	"fmt"

	"github.com/protomaps/tilekiln/tkerr"
)

// MaxLevel is the highest zoom level a TileCoord may address.
const MaxLevel = 31

// Coord identifies a tile in the XYZ scheme: 0 <= x,y < 2^level.
type Coord struct {
	Level uint8
	X     uint32
	Y     uint32
}

// New validates and constructs a Coord.
func New(level uint8, x, y uint32) (Coord, error) {
	c := Coord{Level: level, X: x, Y: y}
	if err := c.Validate(); err != nil {
		return Coord{}, err
	}
	return c, nil
}

// Validate reports InvalidCoord if the coordinate is out of range.
func (c Coord) Validate() error {
	if c.Level > MaxLevel {
		return fmt.Errorf("%w: level %d > %d", tkerr.ErrInvalidCoord, c.Level, MaxLevel)
	}
	n := uint32(1) << c.Level
	if c.X >= n || c.Y >= n {
		return fmt.Errorf("%w: (%d,%d) outside [0,%d) at level %d", tkerr.ErrInvalidCoord, c.X, c.Y, n, c.Level)
	}
	return nil
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Level, c.X, c.Y)
}

// levelStart returns S_L = (4^L - 1) / 3, the first tile ID of level L.
func levelStart(level uint8) uint64 {
	var acc uint64
	for z := uint8(0); z < level; z++ {
		acc += (uint64(1) << z) * (uint64(1) << z)
	}
	return acc
}

func rotate(n uint64, x, y *uint64, rx, ry uint64) {
	if ry == 0 {
		if rx == 1 {
			*x = n - 1 - *x
			*y = n - 1 - *y
		}
		*x, *y = *y, *x
	}
}

// ID computes the Hilbert tile ID of c: the cumulative tile count of all
// lower zoom levels plus the Hilbert index of (x,y) within its level.
func (c Coord) ID() uint64 {
	acc := levelStart(c.Level)
	n := uint64(1) << c.Level
	var d uint64
	tx, ty := uint64(c.X), uint64(c.Y)
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if tx&s > 0 {
			rx = 1
		}
		if ty&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		rotate(s, &tx, &ty, rx, ry)
	}
	return acc + d
}

func tOnLevel(z uint8, pos uint64) Coord {
	n := uint64(1) << z
	var tx, ty uint64
	t := pos
	for s := uint64(1); s < n; s *= 2 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		rotate(s, &tx, &ty, rx, ry)
		tx += s * rx
		ty += s * ry
		t /= 4
	}
	return Coord{Level: z, X: uint32(tx), Y: uint32(ty)}
}

// FromID is the inverse of Coord.ID: it recovers (level,x,y) from a Hilbert
// tile ID. An id past the last tile of level 31 yields ErrInvalidCoord;
// callers should still validate the level is within what their archive
// actually spans.
func FromID(id uint64) (Coord, error) {
	var acc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			if z > MaxLevel {
				return Coord{}, fmt.Errorf("%w: tile id %d implies level %d > %d", tkerr.ErrInvalidCoord, id, z, MaxLevel)
			}
			return tOnLevel(z, id-acc), nil
		}
		acc += numTiles
		z++
		if z > MaxLevel+1 {
			return Coord{}, fmt.Errorf("%w: tile id %d has no valid level", tkerr.ErrInvalidCoord, id)
		}
	}
}

// ParentID returns the Hilbert tile ID of the parent of id without a full
// coordinate round-trip, mirroring the teacher's ParentID fast path.
func ParentID(id uint64) uint64 {
	var acc, lastAcc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			return lastAcc + (id-acc)/4
		}
		lastAcc = acc
		acc += numTiles
		z++
	}
}
