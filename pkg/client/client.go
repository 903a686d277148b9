// Package client implements TURTLE's Client: a per-thread handle that
// pins at most one tile from a Stack and remembers the last
// integer-degree cell that missed, so a repeated query into known-absent
// data never has to touch the stack's lock at all.
package client

import (
	"math"

	"github.com/geoturtle/turtle/pkg/stack"
	"github.com/geoturtle/turtle/pkg/tile"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// Client is a per-thread reservation handle over a Stack.
type Client struct {
	stack *stack.Stack

	pinned  stack.TileRef
	hasPin  bool
	missKey tile.Key
	hasMiss bool
}

// New builds a Client over s. s must have been constructed with a
// lock/unlock pair; otherwise New fails with BadAddress, mirroring
// client.c's check that a lock-less datum cannot back a client.
func New(s *stack.Stack) (*Client, error) {
	if !s.HasLock() {
		e := turtleerr.New(turtleerr.BadAddress, "client.New", "stack has no lock/unlock pair")
		turtleerr.Raise(e)
		return nil, e
	}
	return &Client{stack: s}, nil
}

func cellKey(lat, lon float64) tile.Key {
	return tile.Key{Lat: int(math.Floor(lat)), Lon: int(math.Floor(lon))}
}

// Elevation samples the client's stack at (lat, lon) in degrees,
// following the exact fast/known-miss/slow path order client.c uses:
//
//  1. Fast path (no lock): if a tile is pinned and covers (lat, lon),
//     interpolate immediately.
//  2. Known-miss path (no lock): if nothing is pinned and the last miss
//     was recorded for this same integer cell, report the miss again
//     without touching the lock.
//  3. Slow path (locked): walk the stack for a covering tile, touching it
//     to MRU on a hit or loading a fresh one on a miss; transfer the pin
//     from the old tile to the new one.
//
// When wantInside is true, a miss (no cached tile covers the point and
// loading one fails with PathError) reports (0, false, nil) instead of an
// error, per spec.md §7's PathError-as-miss convention. Any other load
// failure is returned as an error whatever wantInside is.
func (c *Client) Elevation(lat, lon float64, wantInside bool) (z float64, inside bool, err error) {
	if c.hasPin {
		if t, ok := c.stack.Deref(c.pinned); ok && t.Covers(lat, lon) {
			return t.Elevation(lat, lon, wantInside)
		}
	}

	key := cellKey(lat, lon)

	if !c.hasPin && c.hasMiss && c.missKey == key {
		if wantInside {
			return 0, false, nil
		}
		e := turtleerr.New(turtleerr.PathError, "client.Elevation", "no tile for (%v,%v)", lat, lon)
		return 0, false, e
	}

	if err := c.stack.Lock(); err != nil {
		return 0, false, err
	}

	ref, found := c.stack.FindCovering(lat, lon, c.pinned)
	if found {
		c.stack.Touch(ref)
	} else {
		var loadErr error
		ref, loadErr = c.stack.Load(key)
		if loadErr != nil {
			if te, ok := turtleerr.As(loadErr); ok && te.Kind == turtleerr.PathError {
				c.unpinLocked()
				c.missKey = key
				c.hasMiss = true
				if uerr := c.stack.Unlock(); uerr != nil {
					return 0, false, uerr
				}
				if wantInside {
					return 0, false, nil
				}
				return 0, false, loadErr
			}
			c.stack.Unlock()
			return 0, false, loadErr
		}
	}

	if !(c.hasPin && c.pinned == ref) {
		c.transferPin(ref)
	}
	c.hasMiss = false

	if err := c.stack.Unlock(); err != nil {
		return 0, false, err
	}

	t, _ := c.stack.Deref(c.pinned)
	return t.Elevation(lat, lon, wantInside)
}

// transferPin must be called while the stack lock is held. It releases
// the old pin (if any; a release that drops a tile's count to zero may
// evict it immediately when the stack is over budget) and pins ref.
func (c *Client) transferPin(ref stack.TileRef) {
	if c.hasPin {
		c.stack.Release(c.pinned)
	}
	c.stack.Pin(ref)
	c.pinned = ref
	c.hasPin = true
}

// unpinLocked releases the current pin, if any, while the stack lock is
// held; it does not touch miss_key.
func (c *Client) unpinLocked() {
	if c.hasPin {
		c.stack.Release(c.pinned)
		c.hasPin = false
		c.pinned = stack.TileRef{}
	}
}

// Clear unpins the client's current tile (if any) under the stack's lock
// and resets the known-miss cache.
func (c *Client) Clear() error {
	if err := c.stack.Lock(); err != nil {
		return err
	}
	c.unpinLocked()
	c.hasMiss = false
	return c.stack.Unlock()
}

// Destroy is Clear under another name, matching the C API's distinct
// destroy/clear entry points that do the same teardown.
func (c *Client) Destroy() error {
	return c.Clear()
}
