package stack

import (
	"sync"
	"testing"

	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/tile"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

func init() {
	turtleerr.SetHandler(func(e *turtleerr.Error) {})
}

// countingDecoder hands back a flat 2x2 tile for every key except those
// listed in missing, and counts how many times DecodeTile was called.
type countingDecoder struct {
	mu      sync.Mutex
	loads   int
	missing map[tile.Key]bool
}

func (d *countingDecoder) DecodeTile(path string, key tile.Key) (*tile.Tile, error) {
	d.mu.Lock()
	d.loads++
	d.mu.Unlock()

	if d.missing[key] {
		e := turtleerr.New(turtleerr.PathError, "test.countingDecoder", "no such file: %s", path)
		return nil, e
	}

	g, err := grid.New(2, 2, float64(key.Lon), float64(key.Lon+1), float64(key.Lat), float64(key.Lat+1), 0, 100, nil)
	if err != nil {
		return nil, err
	}
	for ix := 0; ix < 2; ix++ {
		for iy := 0; iy < 2; iy++ {
			if err := g.Fill(ix, iy, 10); err != nil {
				return nil, err
			}
		}
	}
	return tile.New(key, g), nil
}

func noopLock() error   { return nil }
func noopUnlock() error { return nil }

func newTestStack(t *testing.T, maxSize int) (*Stack, *countingDecoder) {
	t.Helper()
	dec := &countingDecoder{missing: map[tile.Key]bool{}}
	s, err := NewWithDecoder("/tiles", maxSize, "geotiff16", dec, noopLock, noopUnlock)
	if err != nil {
		t.Fatalf("NewWithDecoder: %v", err)
	}
	return s, dec
}

func TestS4ClientCacheLoadCount(t *testing.T) {
	s, dec := newTestStack(t, 2)

	keys := []tile.Key{{Lat: 45, Lon: 3}, {Lat: 45, Lon: 4}, {Lat: 45, Lon: 5}, {Lat: 45, Lon: 3}}
	for _, k := range keys {
		ref, err := s.Load(k)
		if err != nil {
			t.Fatalf("Load(%+v): %v", k, err)
		}
		s.Pin(ref)
		if err := s.Release(ref); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}

	if dec.loads != 4 {
		t.Fatalf("loads = %d, want 4 (last query should miss after LRU eviction)", dec.loads)
	}
}

func TestInvariant9SingleSlotLRU(t *testing.T) {
	s, dec := newTestStack(t, 1)

	distinctKeys := []tile.Key{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	for _, k := range distinctKeys {
		ref, err := s.Load(k)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		s.Pin(ref)
		s.Release(ref)
	}
	if dec.loads != 2 {
		t.Fatalf("loads = %d, want 2 for distinct cells", dec.loads)
	}

	dec.loads = 0
	key := tile.Key{Lat: 9, Lon: 9}
	for i := 0; i < 5; i++ {
		if idx, ok := s.index[key]; ok {
			ref := s.refFor(idx)
			s.Touch(ref)
			continue
		}
		ref, err := s.Load(key)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		s.Pin(ref)
		s.Release(ref)
	}
	if dec.loads != 1 {
		t.Fatalf("loads = %d, want 1 for repeated same-cell queries", dec.loads)
	}
}

func TestS5PinSurvivesOverflow(t *testing.T) {
	s, _ := newTestStack(t, 1)

	refA, err := s.Load(tile.Key{Lat: 45, Lon: 3})
	if err != nil {
		t.Fatalf("Load A: %v", err)
	}
	s.Pin(refA)

	refB, err := s.Load(tile.Key{Lat: 46, Lon: 3})
	if err != nil {
		t.Fatalf("Load B: %v", err)
	}
	s.Pin(refB)

	if s.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (transient overflow while both pinned)", s.Size())
	}
	if _, ok := s.Deref(refA); !ok {
		t.Fatalf("tile A was evicted while pinned")
	}

	if err := s.Release(refA); err != nil {
		t.Fatalf("Release A: %v", err)
	}
	if s.Size() != 1 {
		t.Fatalf("Size() after A clears = %d, want 1", s.Size())
	}
	if _, ok := s.Deref(refB); !ok {
		t.Fatalf("tile B missing after shrink")
	}
}

func TestInvariant7PinnedTileNeverEvicted(t *testing.T) {
	s, _ := newTestStack(t, 1)

	ref, err := s.Load(tile.Key{Lat: 10, Lon: 10})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Pin(ref)

	for lon := 11; lon < 20; lon++ {
		if _, err := s.Load(tile.Key{Lat: 10, Lon: lon}); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}

	if _, ok := s.Deref(ref); !ok {
		t.Fatalf("pinned tile was evicted")
	}
}

func TestInvariant8KeyUniqueness(t *testing.T) {
	s, _ := newTestStack(t, 4)
	key := tile.Key{Lat: 5, Lon: 5}

	ref, err := s.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Pin(ref)
	s.Release(ref)

	if _, err := s.Load(key); err == nil {
		t.Fatalf("expected error re-loading a key already present")
	}
}

func TestLoadPropagatesPathError(t *testing.T) {
	s, dec := newTestStack(t, 2)
	key := tile.Key{Lat: 70, Lon: 70}
	dec.missing[key] = true

	_, err := s.Load(key)
	if err == nil {
		t.Fatalf("expected PathError")
	}
	te, ok := turtleerr.As(err)
	if !ok || te.Kind != turtleerr.PathError {
		t.Fatalf("expected PathError, got %v", err)
	}
}

func TestFilenameDomainCheck(t *testing.T) {
	s, _ := newTestStack(t, 1)

	name, err := s.Filename(tile.Key{Lat: 45, Lon: -72})
	if err != nil {
		t.Fatalf("Filename: %v", err)
	}
	if name != "ASTGTM2_N45W072_dem.tif" {
		t.Fatalf("Filename = %q, want ASTGTM2_N45W072_dem.tif", name)
	}

	if _, err := s.Filename(tile.Key{Lat: 90, Lon: 0}); err == nil {
		t.Fatalf("expected DomainError for |lat| > 89")
	}
	if _, err := s.Filename(tile.Key{Lat: 0, Lon: 181}); err == nil {
		t.Fatalf("expected DomainError for |lon| > 180")
	}
}

func TestClearKeepsPinnedTiles(t *testing.T) {
	s, _ := newTestStack(t, 4)

	pinned, err := s.Load(tile.Key{Lat: 1, Lon: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Pin(pinned)

	unpinned, err := s.Load(tile.Key{Lat: 2, Lon: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Clear()

	if _, ok := s.Deref(pinned); !ok {
		t.Fatalf("Clear evicted a pinned tile")
	}
	if _, ok := s.Deref(unpinned); ok {
		t.Fatalf("Clear left an unpinned tile behind")
	}
}

func TestCloseEvictsEvenPinned(t *testing.T) {
	s, _ := newTestStack(t, 4)

	pinned, err := s.Load(tile.Key{Lat: 1, Lon: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Pin(pinned)

	s.Close()

	if _, ok := s.Deref(pinned); ok {
		t.Fatalf("Close left a pinned tile behind")
	}
	if s.Size() != 0 {
		t.Fatalf("Size() after Close = %d, want 0", s.Size())
	}
}

func TestReleaseUnderflowSurfacesLibraryError(t *testing.T) {
	s, _ := newTestStack(t, 2)
	ref, err := s.Load(tile.Key{Lat: 3, Lon: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Release(ref); err == nil {
		t.Fatalf("expected LibraryError releasing an unpinned tile")
	} else if te, ok := turtleerr.As(err); !ok || te.Kind != turtleerr.LibraryError {
		t.Fatalf("expected LibraryError, got %v", err)
	}
}
