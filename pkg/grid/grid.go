// Package grid implements TURTLE's Map: an immutable regular grid of
// 16-bit quantised elevations over a projected or geographic rectangle,
// with a bilinear sampler and a bounds check. Tile (pkg/tile) wraps a Grid
// whose projection is always nil and whose footprint is a geographic
// 1x1 degree cell.
package grid

import (
	"math"

	"github.com/geoturtle/turtle/pkg/projection"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// Grid is an immutable nx*ny regular grid of 16-bit quantised elevation
// samples spanning [x0,x1]x[y0,y1], decoded linearly into [z0,z1].
type Grid struct {
	nx, ny     int
	x0, x1     float64
	y0, y1     float64
	z0, z1     float64
	dx, dy     float64
	data       []uint16
	projection projection.Projection // nil means (x,y) = (lon,lat)
}

// Info is the read-only metadata turtle_map_meta exposes.
type Info struct {
	Nx, Ny         int
	X0, X1         float64
	Y0, Y1         float64
	Z0, Z1         float64
	ProjectionName string
}

// New allocates a zero-filled grid. It fails with DomainError when nx or
// ny is smaller than 2, or when an axis range is inverted.
func New(nx, ny int, x0, x1, y0, y1, z0, z1 float64, proj projection.Projection) (*Grid, error) {
	if nx < 2 || ny < 2 {
		e := turtleerr.New(turtleerr.DomainError, "grid.New", "nx=%d, ny=%d must both be >= 2", nx, ny)
		turtleerr.Raise(e)
		return nil, e
	}
	if x1 < x0 || y1 < y0 || z1 < z0 {
		e := turtleerr.New(turtleerr.DomainError, "grid.New", "inverted axis range")
		turtleerr.Raise(e)
		return nil, e
	}

	return &Grid{
		nx: nx, ny: ny,
		x0: x0, x1: x1, y0: y0, y1: y1,
		z0: z0, z1: z1,
		dx: (x1 - x0) / float64(nx-1),
		dy: (y1 - y0) / float64(ny-1),
		data:       make([]uint16, nx*ny),
		projection: proj,
	}, nil
}

func (g *Grid) quantise(z float64) (uint16, error) {
	if z < g.z0 || z > g.z1 {
		e := turtleerr.New(turtleerr.DomainError, "grid.quantise", "z=%v outside [%v,%v]", z, g.z0, g.z1)
		turtleerr.Raise(e)
		return 0, e
	}
	if g.z1 == g.z0 {
		return 0, nil
	}
	s := math.Round((z - g.z0) * 65535 / (g.z1 - g.z0))
	if s < 0 {
		s = 0
	}
	if s > 65535 {
		s = 65535
	}
	return uint16(s), nil
}

func (g *Grid) dequantise(s uint16) float64 {
	if g.z1 == g.z0 {
		return g.z0
	}
	return g.z0 + float64(s)*(g.z1-g.z0)/65535
}

// Fill sets the quantised value at grid node (ix, iy), the only mutator on
// a Grid. It fails with DomainError when ix/iy or z are out of range.
func (g *Grid) Fill(ix, iy int, z float64) error {
	if ix < 0 || ix >= g.nx || iy < 0 || iy >= g.ny {
		e := turtleerr.New(turtleerr.DomainError, "grid.Fill", "index (%d,%d) outside [0,%d)x[0,%d)", ix, iy, g.nx, g.ny)
		turtleerr.Raise(e)
		return e
	}
	s, err := g.quantise(z)
	if err != nil {
		return err
	}
	g.data[iy*g.nx+ix] = s
	return nil
}

// Node returns the geographic/projected coordinate and elevation stored at
// grid node (ix, iy).
func (g *Grid) Node(ix, iy int) (x, y, z float64, err error) {
	if ix < 0 || ix >= g.nx || iy < 0 || iy >= g.ny {
		e := turtleerr.New(turtleerr.DomainError, "grid.Node", "index (%d,%d) outside [0,%d)x[0,%d)", ix, iy, g.nx, g.ny)
		turtleerr.Raise(e)
		return 0, 0, 0, e
	}
	x = g.x0 + float64(ix)*g.dx
	y = g.y0 + float64(iy)*g.dy
	z = g.dequantise(g.data[iy*g.nx+ix])
	return x, y, z, nil
}

// Elevation samples the grid at (x, y) using bilinear interpolation.
//
// When wantInside is true, a coordinate outside the grid's range returns
// (0, false, nil) instead of failing -- the out-of-all-layers convention
// spec.md §7 documents for every map/tile sampler. When wantInside is
// false, an out-of-range coordinate fails with DomainError.
func (g *Grid) Elevation(x, y float64, wantInside bool) (z float64, inside bool, err error) {
	hx := (x - g.x0) / g.dx
	hy := (y - g.y0) / g.dy

	if hx < 0 || hx > float64(g.nx-1) || hy < 0 || hy > float64(g.ny-1) {
		if wantInside {
			return 0, false, nil
		}
		e := turtleerr.New(turtleerr.DomainError, "grid.Elevation", "(%v,%v) outside grid range", x, y)
		turtleerr.Raise(e)
		return 0, false, e
	}

	ix := int(math.Floor(hx))
	iy := int(math.Floor(hy))
	if ix > g.nx-2 {
		ix = g.nx - 2
	}
	if iy > g.ny-2 {
		iy = g.ny - 2
	}
	fx := hx - float64(ix)
	fy := hy - float64(iy)

	z00 := g.dequantise(g.data[iy*g.nx+ix])
	z01 := g.dequantise(g.data[(iy+1)*g.nx+ix])
	z10 := g.dequantise(g.data[iy*g.nx+ix+1])
	z11 := g.dequantise(g.data[(iy+1)*g.nx+ix+1])

	z = z00*(1-fx)*(1-fy) + z01*(1-fx)*fy + z10*fx*(1-fy) + z11*fx*fy
	return z, true, nil
}

// Projection returns the grid's associated projection, or nil when
// (x, y) is directly (longitude, latitude).
func (g *Grid) Projection() projection.Projection { return g.projection }

// Info returns the grid's read-only metadata (turtle_map_meta).
func (g *Grid) Info() Info {
	name := ""
	if g.projection != nil {
		name = g.projection.Name()
	}
	return Info{
		Nx: g.nx, Ny: g.ny,
		X0: g.x0, X1: g.x1,
		Y0: g.y0, Y1: g.y1,
		Z0: g.z0, Z1: g.z1,
		ProjectionName: name,
	}
}

// QuantisationStep returns (z1-z0)/65535, the maximum round-trip error a
// quantised sample can carry.
func (g *Grid) QuantisationStep() float64 {
	return (g.z1 - g.z0) / 65535
}
