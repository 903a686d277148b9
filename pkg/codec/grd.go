package codec

import (
	"bufio"
	"os"
	"strconv"

	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// GRDDecoder decodes ".grd" ASCII grids: a leading
// "nx ny x0 y0 dx dy z0 z1" header line followed by nx*ny whitespace- or
// newline-separated elevation samples in row-major order from the
// north-west corner. No ecosystem parser in the pack targets this bespoke
// text format, so it stays on bufio/strconv.
type GRDDecoder struct{}

// DecodeMap implements codec.MapDecoder.
func (GRDDecoder) DecodeMap(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		e := turtleerr.New(turtleerr.PathError, "codec.GRDDecoder.DecodeMap", "open %q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	nextInt := func(field string) (int, error) {
		s, ok := next()
		if !ok {
			e := turtleerr.New(turtleerr.BadFormat, "codec.GRDDecoder.DecodeMap", "%q: missing %s", path, field)
			turtleerr.Raise(e)
			return 0, e
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			e := turtleerr.New(turtleerr.BadFormat, "codec.GRDDecoder.DecodeMap", "%q: bad %s %q", path, field, s)
			turtleerr.Raise(e)
			return 0, e
		}
		return v, nil
	}
	nextFloat := func(field string) (float64, error) {
		s, ok := next()
		if !ok {
			e := turtleerr.New(turtleerr.BadFormat, "codec.GRDDecoder.DecodeMap", "%q: missing %s", path, field)
			turtleerr.Raise(e)
			return 0, e
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			e := turtleerr.New(turtleerr.BadFormat, "codec.GRDDecoder.DecodeMap", "%q: bad %s %q", path, field, s)
			turtleerr.Raise(e)
			return 0, e
		}
		return v, nil
	}

	nx, err := nextInt("nx")
	if err != nil {
		return nil, err
	}
	ny, err := nextInt("ny")
	if err != nil {
		return nil, err
	}
	x0, err := nextFloat("x0")
	if err != nil {
		return nil, err
	}
	y0, err := nextFloat("y0")
	if err != nil {
		return nil, err
	}
	dx, err := nextFloat("dx")
	if err != nil {
		return nil, err
	}
	dy, err := nextFloat("dy")
	if err != nil {
		return nil, err
	}
	z0, err := nextFloat("z0")
	if err != nil {
		return nil, err
	}
	z1, err := nextFloat("z1")
	if err != nil {
		return nil, err
	}

	x1 := x0 + float64(nx-1)*dx
	y1 := y0 + float64(ny-1)*dy

	g, err := grid.New(nx, ny, x0, x1, y0, y1, z0, z1, nil)
	if err != nil {
		return nil, err
	}

	for row := 0; row < ny; row++ {
		iy := ny - 1 - row
		for col := 0; col < nx; col++ {
			z, err := nextFloat("sample")
			if err != nil {
				return nil, err
			}
			if err := g.Fill(col, iy, z); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}
