// Package stack implements TURTLE's Stack: a bounded, LRU-ordered
// collection of Tiles keyed by integer (lat°, lon°), serialised under a
// user-supplied lock/unlock pair, that never evicts a pinned tile.
//
// Per spec.md §9's design note, the stack does not link tiles together
// with raw pointers. Instead it owns a slot table (a slice of tile slots)
// threaded into an intrusive doubly-linked LRU list by slot index, and
// hands callers an opaque TileRef (slot index plus generation counter)
// rather than a pointer or the slot index alone -- a stale TileRef from a
// slot that has since been recycled is detected and rejected by Deref
// instead of silently dereferencing the wrong tile.
package stack

import (
	"fmt"
	"math"

	"github.com/geoturtle/turtle/pkg/codec"
	"github.com/geoturtle/turtle/pkg/tile"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

const noSlot = -1

type slot struct {
	tile       *tile.Tile
	prev, next int
	generation uint64
	free       bool
}

// TileRef is an opaque, non-owning reference to a tile held by a Stack.
// It is the Go-safe stand-in for the C client's raw `struct tile *`
// back-pointer: a relation plus a lookup key, validated against the
// slot's generation on every dereference rather than trusted blindly.
type TileRef struct {
	slot       int
	generation uint64
	valid      bool
}

// LockFunc acquires the stack's external mutex; a nonzero-equivalent
// (non-nil) return is propagated as LockError.
type LockFunc func() error

// UnlockFunc releases the stack's external mutex; a non-nil return is
// propagated as UnlockError.
type UnlockFunc func() error

// Stack is the bounded tile cache described in spec.md §4.3.
type Stack struct {
	path    string
	format  string
	decoder codec.TileDecoder

	maxSize int
	size    int // number of live tiles, possibly > maxSize transiently

	slots    []slot
	freeList []int
	index    map[tile.Key]int // key -> slot index, for uniqueness + lookup
	head     int
	tail     int

	lock   LockFunc
	unlock UnlockFunc
}

// New builds a Stack rooted at path, with the given per-tile decoder
// format ("geotiff16" or "hgt") and an unpinned-tile budget of maxSize.
// lock and unlock must either both be nil (single-thread-only stack) or
// both non-nil; a half-set pair fails with BadAddress.
func New(path string, maxSize int, format string, lock LockFunc, unlock UnlockFunc) (*Stack, error) {
	if (lock == nil) != (unlock == nil) {
		e := turtleerr.New(turtleerr.BadAddress, "stack.New", "lock and unlock must both be set or both be nil")
		turtleerr.Raise(e)
		return nil, e
	}
	if maxSize < 1 {
		e := turtleerr.New(turtleerr.DomainError, "stack.New", "max_size must be >= 1, got %d", maxSize)
		turtleerr.Raise(e)
		return nil, e
	}

	decoder, err := codec.TileDecoderByFormat(format)
	if err != nil {
		return nil, err
	}

	return NewWithDecoder(path, maxSize, format, decoder, lock, unlock)
}

// NewWithDecoder is New with an explicit TileDecoder, bypassing the
// format-name lookup. Production callers use New; tests use this to
// inject a fake decoder and exercise the stack's LRU and pinning logic
// without touching the filesystem.
func NewWithDecoder(path string, maxSize int, format string, decoder codec.TileDecoder, lock LockFunc, unlock UnlockFunc) (*Stack, error) {
	if (lock == nil) != (unlock == nil) {
		e := turtleerr.New(turtleerr.BadAddress, "stack.NewWithDecoder", "lock and unlock must both be set or both be nil")
		turtleerr.Raise(e)
		return nil, e
	}
	if maxSize < 1 {
		e := turtleerr.New(turtleerr.DomainError, "stack.NewWithDecoder", "max_size must be >= 1, got %d", maxSize)
		turtleerr.Raise(e)
		return nil, e
	}

	return &Stack{
		path:    path,
		format:  format,
		decoder: decoder,
		maxSize: maxSize,
		index:   make(map[tile.Key]int),
		head:    noSlot,
		tail:    noSlot,
		lock:    lock,
		unlock:  unlock,
	}, nil
}

// HasLock reports whether this stack was built with a lock/unlock pair.
// Client construction against a stack without one fails with BadAddress.
func (s *Stack) HasLock() bool { return s.lock != nil }

// Lock acquires the stack's external mutex. Calling Lock on a stack built
// without one is a programming error in the embedding application, not a
// recoverable condition here; callers that need single-thread-only
// semantics simply never call Lock/Unlock.
func (s *Stack) Lock() error {
	if err := s.lock(); err != nil {
		e := turtleerr.New(turtleerr.LockError, "stack.Lock", "%v", err)
		turtleerr.Raise(e)
		return e
	}
	return nil
}

// Unlock releases the stack's external mutex.
func (s *Stack) Unlock() error {
	if err := s.unlock(); err != nil {
		e := turtleerr.New(turtleerr.UnlockError, "stack.Unlock", "%v", err)
		turtleerr.Raise(e)
		return e
	}
	return nil
}

// Size returns the current number of live tiles (which may transiently
// exceed MaxSize when every tile is pinned).
func (s *Stack) Size() int { return s.size }

// MaxSize returns the configured unpinned-tile budget.
func (s *Stack) MaxSize() int { return s.maxSize }

// Filename derives the on-disk filename for the tile at (lat, lon), per
// spec.md §4.3's template. It fails with DomainError for
// |lat| > 89 or |lon| > 180, checked before any formatting happens.
func (s *Stack) Filename(key tile.Key) (string, error) {
	if key.Lat < -89 || key.Lat > 89 || key.Lon < -180 || key.Lon > 180 {
		e := turtleerr.New(turtleerr.DomainError, "stack.Filename", "key %+v out of range", key)
		turtleerr.Raise(e)
		return "", e
	}

	latLetter := byte('N')
	lat := key.Lat
	if lat < 0 {
		latLetter = 'S'
		lat = -lat
	}
	lonLetter := byte('E')
	lon := key.Lon
	if lon < 0 {
		lonLetter = 'W'
		lon = -lon
	}

	switch s.format {
	case "hgt":
		return fmt.Sprintf("%c%02d%c%03d.hgt", latLetter, lat, lonLetter, lon), nil
	default: // "geotiff16"
		return fmt.Sprintf("ASTGTM2_%c%02d%c%03d_dem.tif", latLetter, lat, lonLetter, lon), nil
	}
}

// unlink removes slot idx from the LRU list without freeing it.
func (s *Stack) unlink(idx int) {
	sl := &s.slots[idx]
	if sl.prev != noSlot {
		s.slots[sl.prev].next = sl.next
	} else {
		s.head = sl.next
	}
	if sl.next != noSlot {
		s.slots[sl.next].prev = sl.prev
	} else {
		s.tail = sl.prev
	}
	sl.prev, sl.next = noSlot, noSlot
}

// linkHead inserts slot idx at the head (MRU end) of the LRU list.
func (s *Stack) linkHead(idx int) {
	sl := &s.slots[idx]
	sl.prev = noSlot
	sl.next = s.head
	if s.head != noSlot {
		s.slots[s.head].prev = idx
	}
	s.head = idx
	if s.tail == noSlot {
		s.tail = idx
	}
}

// allocSlot returns a slot index ready to hold t, reusing a freed slot
// when one is available so TileRef generations stay compact.
func (s *Stack) allocSlot(t *tile.Tile) int {
	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.slots[idx].tile = t
		s.slots[idx].free = false
		return idx
	}
	s.slots = append(s.slots, slot{tile: t, prev: noSlot, next: noSlot, generation: 1})
	return len(s.slots) - 1
}

func (s *Stack) refFor(idx int) TileRef {
	return TileRef{slot: idx, generation: s.slots[idx].generation, valid: true}
}

// Deref resolves ref to its tile, returning ok = false when ref refers to
// a slot that has since been freed and possibly recycled.
func (s *Stack) Deref(ref TileRef) (*tile.Tile, bool) {
	if !ref.valid || ref.slot < 0 || ref.slot >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[ref.slot]
	if sl.free || sl.generation != ref.generation {
		return nil, false
	}
	return sl.tile, true
}

// freeSlot removes idx from the list and recycles it, bumping its
// generation so any outstanding TileRef pointing at it is rejected by
// Deref rather than handed a different tile.
func (s *Stack) freeSlot(idx int) {
	key := s.slots[idx].tile.Key
	s.unlink(idx)
	delete(s.index, key)
	s.slots[idx].tile = nil
	s.slots[idx].free = true
	s.slots[idx].generation++
	s.freeList = append(s.freeList, idx)
	s.size--
}

// evictUnpinned walks from the tail (LRU end) forward, freeing every
// unpinned tile other than slot keep (the tile Load has just linked, which
// its caller has not had a chance to pin yet), until size <= maxSize or the
// list is exhausted. Pinned tiles are skipped and never evicted -- the
// source of the "transient overflow" spec.md §4.3 allows when every tile
// is pinned.
func (s *Stack) evictUnpinned(keep int) {
	idx := s.tail
	for s.size > s.maxSize && idx != noSlot {
		prev := s.slots[idx].prev
		if idx != keep && s.slots[idx].tile.Clients == 0 {
			s.freeSlot(idx)
		}
		idx = prev
	}
}

// FindCovering walks the stack from head (MRU) to tail, skipping the slot
// referenced by exclude (the client's currently pinned tile, already
// checked on the fast path), and returns the first tile whose footprint
// covers (lat, lon).
func (s *Stack) FindCovering(lat, lon float64, exclude TileRef) (TileRef, bool) {
	for idx := s.head; idx != noSlot; idx = s.slots[idx].next {
		if exclude.valid && idx == exclude.slot && s.slots[idx].generation == exclude.generation {
			continue
		}
		if s.slots[idx].tile.Covers(lat, lon) {
			return s.refFor(idx), true
		}
	}
	return TileRef{}, false
}

// Touch promotes ref's tile to the head (MRU end) of the LRU list.
func (s *Stack) Touch(ref TileRef) {
	if _, ok := s.Deref(ref); !ok {
		return
	}
	idx := ref.slot
	if s.head == idx {
		return
	}
	s.unlink(idx)
	s.linkHead(idx)
}

// Load formats key's filename, decodes a new tile from disk, links it as
// the new head, increments size, and enforces the size bound by evicting
// unpinned tiles other than the new one from the tail. A decode failure (most commonly
// PathError, when the backing file does not exist) is propagated
// unchanged and nothing is linked.
func (s *Stack) Load(key tile.Key) (TileRef, error) {
	if _, exists := s.index[key]; exists {
		e := turtleerr.New(turtleerr.LibraryError, "stack.Load", "key %+v already present", key)
		turtleerr.Raise(e)
		return TileRef{}, e
	}

	name, err := s.Filename(key)
	if err != nil {
		return TileRef{}, err
	}
	path := s.path + "/" + name

	t, err := s.decoder.DecodeTile(path, key)
	if err != nil {
		return TileRef{}, err
	}

	idx := s.allocSlot(t)
	s.index[key] = idx
	s.linkHead(idx)
	s.size++

	s.evictUnpinned(idx)

	return s.refFor(idx), nil
}

// Pin increments the pin count of ref's tile.
func (s *Stack) Pin(ref TileRef) {
	if t, ok := s.Deref(ref); ok {
		t.Clients++
	}
}

// Release decrements the pin count of ref's tile. If the count reaches
// zero and the stack is currently over its size budget, the tile is
// evicted immediately. A decrement that would take the count negative is
// a library invariant violation: it is clamped to zero and surfaced as
// LibraryError rather than allowed to go negative.
func (s *Stack) Release(ref TileRef) error {
	t, ok := s.Deref(ref)
	if !ok {
		return nil
	}
	if t.Clients <= 0 {
		t.Clients = 0
		e := turtleerr.New(turtleerr.LibraryError, "stack.Release", "refcount underflow for tile %+v", t.Key)
		turtleerr.Raise(e)
		return e
	}
	t.Clients--
	if t.Clients == 0 && s.size > s.maxSize {
		s.freeSlot(ref.slot)
	}
	return nil
}

// Clear evicts every unpinned tile; pinned tiles remain (the "soft"
// teardown, datum_clear(force=false) in the original implementation).
func (s *Stack) Clear() {
	idx := s.head
	for idx != noSlot {
		next := s.slots[idx].next
		if s.slots[idx].tile.Clients == 0 {
			s.freeSlot(idx)
		}
		idx = next
	}
}

// Close evicts every tile unconditionally, including pinned ones (the
// "hard" teardown, datum_clear(force=true)); it is only safe to call once
// no client can still be holding a pin.
func (s *Stack) Close() {
	idx := s.head
	for idx != noSlot {
		next := s.slots[idx].next
		s.slots[idx].tile.Clients = 0
		s.freeSlot(idx)
		idx = next
	}
}

// Elevation is the non-thread-safe convenience path spec.md §4.3
// describes: it performs the same search-then-load a Client would but
// directly against the stack, without ever touching Lock/Unlock. It is
// safe only when the caller guarantees no concurrent access -- either the
// stack was built without a lock at all, or the caller holds the lock
// itself for the whole call.
func (s *Stack) Elevation(lat, lon float64, wantInside bool) (z float64, inside bool, err error) {
	key := tile.Key{Lat: int(math.Floor(lat)), Lon: int(math.Floor(lon))}

	if idx, ok := s.index[key]; ok {
		s.Touch(s.refFor(idx))
		t := s.slots[s.index[key]].tile
		return t.Elevation(lat, lon, wantInside)
	}

	ref, err := s.Load(key)
	if err != nil {
		if te, ok := turtleerr.As(err); ok && te.Kind == turtleerr.PathError {
			if wantInside {
				return 0, false, nil
			}
			e := turtleerr.New(turtleerr.PathError, "stack.Elevation", "no tile for (%v,%v)", lat, lon)
			return 0, false, e
		}
		return 0, false, err
	}
	t, _ := s.Deref(ref)
	return t.Elevation(lat, lon, wantInside)
}
