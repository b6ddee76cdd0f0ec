package tile

import (
	"log"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/protomaps/tilekiln/coord"
)

// Item pairs a coordinate with a stream value.
type Item[T any] struct {
	Coord coord.Coord
	Value T
}

// Stream is an ordered, bounded sequence of (coord, value) pairs. Pipeline
// operations hand back one bbox's worth of tiles per GetStream call, so a
// materialized slice plus bounded-parallel combinators covers spec.md's
// streaming contract without a goroutine/channel pipeline this toolkit
// never needs end to end.
type Stream[T any] struct {
	Items []Item[T]
}

// FromItems wraps an already-ordered slice as a Stream.
func FromItems[T any](items []Item[T]) Stream[T] {
	return Stream[T]{Items: items}
}

// FromIterCoordParallel applies f to every coord concurrently, with
// parallelism bounded by GOMAXPROCS, preserving coords' input order in the
// output regardless of completion order. The first error is returned (with
// an empty stream) once every started call has finished; later calls are
// not cancelled.
func FromIterCoordParallel[T any](coords []coord.Coord, f func(coord.Coord) (T, error)) (Stream[T], error) {
	items := make([]Item[T], len(coords))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range coords {
		i, c := i, c
		g.Go(func() error {
			v, err := f(c)
			if err != nil {
				return err
			}
			items[i] = Item[T]{Coord: c, Value: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stream[T]{}, err
	}
	return Stream[T]{Items: items}, nil
}

// MapItemParallel applies f to every item's value concurrently, preserving
// order. An item whose f returns an error is dropped from the output and
// logged, matching spec.md §4.7's per-item error policy for stream
// transforms.
func MapItemParallel[T, U any](logger *log.Logger, s Stream[T], f func(T) (U, error)) Stream[U] {
	return MapFullItemParallel(logger, s, func(item Item[T]) (U, error) {
		return f(item.Value)
	})
}

// MapFullItemParallel is MapItemParallel's coordinate-aware variant, for
// transforms whose behavior depends on the item's Coord (e.g. raster_format's
// per-zoom quality).
func MapFullItemParallel[T, U any](logger *log.Logger, s Stream[T], f func(Item[T]) (U, error)) Stream[U] {
	out := make([]*Item[U], len(s.Items))
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))

	for i, item := range s.Items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item Item[T]) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := f(item)
			if err != nil {
				if logger != nil {
					logger.Printf("tile: dropping item at %s: %v", item.Coord, err)
				}
				return
			}
			out[i] = &Item[U]{Coord: item.Coord, Value: v}
		}(i, item)
	}
	wg.Wait()

	items := make([]Item[U], 0, len(out))
	for _, it := range out {
		if it != nil {
			items = append(items, *it)
		}
	}
	return Stream[U]{Items: items}
}

// ForEachSync drains the stream sequentially.
func ForEachSync[T any](s Stream[T], f func(Item[T])) {
	for _, item := range s.Items {
		f(item)
	}
}

// FromStreams flattens an ordered sequence of streams: every item of an
// earlier stream precedes every item of a later one.
func FromStreams[T any](outer []Stream[T]) Stream[T] {
	var items []Item[T]
	for _, s := range outer {
		items = append(items, s.Items...)
	}
	return Stream[T]{Items: items}
}

// ToVec collects the stream's items, mainly for test assertions.
func (s Stream[T]) ToVec() []Item[T] { return s.Items }
