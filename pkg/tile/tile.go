// Package tile implements TURTLE's Tile: a Grid specialised to a
// geographic 1x1 degree cell, reference-counted so a Stack can tell
// whether it is safe to evict. A Tile never holds prev/next pointers of
// its own -- per spec.md §9's design note, the LRU linkage lives in the
// owning Stack's slot table, not in the tile itself, so a Tile can be
// freely relocated or dropped in place without patching neighbour links.
package tile

import "github.com/geoturtle/turtle/pkg/grid"

// Key identifies a tile by its integer (latitude, longitude) degree
// south-west corner.
type Key struct {
	Lat, Lon int
}

// Tile wraps a geographic Grid covering [Lon, Lon+1] x [Lat, Lat+1]
// degrees with a pin count. Tiles are owned by exactly one Stack and live
// for the stack's lifetime unless evicted.
type Tile struct {
	Key   Key
	Grid  *grid.Grid
	// Clients is the pin count: the number of Client handles currently
	// holding this tile as their pinned tile. A pinned tile (Clients > 0)
	// must never be evicted.
	Clients int
}

// New wraps g as a tile at key. g is assumed to already cover
// [key.Lon, key.Lon+1] x [key.Lat, key.Lat+1] in geographic degrees with no
// projection; the stack's codec is responsible for building it that way.
func New(key Key, g *grid.Grid) *Tile {
	return &Tile{Key: key, Grid: g}
}

// Covers reports whether the geographic point (lat, lon) falls within this
// tile's 1x1 degree footprint.
func (t *Tile) Covers(lat, lon float64) bool {
	return lat >= float64(t.Key.Lat) && lat <= float64(t.Key.Lat+1) &&
		lon >= float64(t.Key.Lon) && lon <= float64(t.Key.Lon+1)
}

// Elevation samples the tile's grid at (lon, lat) -- geographic order,
// matching Grid's (x, y) = (lon, lat) convention for an unprojected grid.
func (t *Tile) Elevation(lat, lon float64, wantInside bool) (z float64, inside bool, err error) {
	return t.Grid.Elevation(lon, lat, wantInside)
}
