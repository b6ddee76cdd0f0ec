package tile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/protomaps/tilekiln/coord"
)

func coordsZoom(level uint8, n int) []coord.Coord {
	out := make([]coord.Coord, n)
	for i := 0; i < n; i++ {
		out[i] = coord.Coord{Level: level, X: uint32(i), Y: 0}
	}
	return out
}

func TestFromIterCoordParallelPreservesOrder(t *testing.T) {
	coords := coordsZoom(3, 50)
	s, err := FromIterCoordParallel(coords, func(c coord.Coord) (int, error) {
		return int(c.X) * 2, nil
	})
	if err != nil {
		t.Fatalf("FromIterCoordParallel: %v", err)
	}
	if len(s.Items) != len(coords) {
		t.Fatalf("expected %d items, got %d", len(coords), len(s.Items))
	}
	for i, item := range s.Items {
		if item.Coord != coords[i] {
			t.Fatalf("item %d coord mismatch: got %v want %v", i, item.Coord, coords[i])
		}
		if item.Value != i*2 {
			t.Fatalf("item %d value mismatch: got %d want %d", i, item.Value, i*2)
		}
	}
}

func TestFromIterCoordParallelPropagatesError(t *testing.T) {
	coords := coordsZoom(3, 10)
	boom := errors.New("boom")
	_, err := FromIterCoordParallel(coords, func(c coord.Coord) (int, error) {
		if c.X == 5 {
			return 0, boom
		}
		return int(c.X), nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestMapItemParallelDropsErroredItemsAndPreservesOrder(t *testing.T) {
	coords := coordsZoom(4, 20)
	items := make([]Item[int], len(coords))
	for i, c := range coords {
		items[i] = Item[int]{Coord: c, Value: i}
	}
	s := FromItems(items)

	out := MapItemParallel(nil, s, func(v int) (string, error) {
		if v%3 == 0 {
			return "", fmt.Errorf("dropping %d", v)
		}
		return fmt.Sprintf("v%d", v), nil
	})

	var lastX int = -1
	for _, item := range out.Items {
		if item.Value == "" {
			t.Fatalf("dropped item leaked into output: %+v", item)
		}
		if int(item.Coord.X) <= lastX {
			t.Fatalf("order not preserved: %d after %d", item.Coord.X, lastX)
		}
		lastX = int(item.Coord.X)
	}
}

func TestForEachSyncVisitsAllInOrder(t *testing.T) {
	coords := coordsZoom(2, 5)
	items := make([]Item[int], len(coords))
	for i, c := range coords {
		items[i] = Item[int]{Coord: c, Value: i}
	}
	s := FromItems(items)

	var seen []int
	ForEachSync(s, func(it Item[int]) {
		seen = append(seen, it.Value)
	})
	for i, v := range seen {
		if v != i {
			t.Fatalf("visited out of order: %v", seen)
		}
	}
}

func TestFromStreamsConcatenatesInOrder(t *testing.T) {
	a := FromItems([]Item[int]{{Coord: coord.Coord{Level: 0, X: 0, Y: 0}, Value: 1}})
	b := FromItems([]Item[int]{{Coord: coord.Coord{Level: 0, X: 1, Y: 0}, Value: 2}})
	combined := FromStreams([]Stream[int]{a, b})
	if len(combined.Items) != 2 || combined.Items[0].Value != 1 || combined.Items[1].Value != 2 {
		t.Fatalf("unexpected concatenation: %+v", combined.Items)
	}
}

func TestToVecReturnsUnderlyingItems(t *testing.T) {
	s := FromItems([]Item[int]{{Coord: coord.Coord{Level: 1, X: 2, Y: 3}, Value: 9}})
	vec := s.ToVec()
	if len(vec) != 1 || vec[0].Value != 9 {
		t.Fatalf("unexpected ToVec result: %+v", vec)
	}
}
