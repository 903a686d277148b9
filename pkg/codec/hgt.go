package codec

import (
	"encoding/binary"
	"os"

	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/tile"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// HGTDecoder decodes raw SRTM ".hgt" tiles: a single band of big-endian
// signed 16-bit samples, square (1201x1201 for SRTM3 or 3601x3601 for
// SRTM1), row-major from the north-west corner, with no header at all.
// No third-party decoder in the retrieval pack targets this fixed-size
// binary format, so it stays on the standard library's encoding/binary.
type HGTDecoder struct{}

// DecodeTile implements codec.TileDecoder.
func (HGTDecoder) DecodeTile(path string, key tile.Key) (*tile.Tile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		e := turtleerr.New(turtleerr.PathError, "codec.HGTDecoder.DecodeTile", "open %q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}

	n := hgtSideLength(len(raw))
	if n == 0 {
		e := turtleerr.New(turtleerr.BadFormat, "codec.HGTDecoder.DecodeTile", "%q: unexpected file size %d", path, len(raw))
		turtleerr.Raise(e)
		return nil, e
	}

	g, err := grid.New(n, n,
		float64(key.Lon), float64(key.Lon+1),
		float64(key.Lat), float64(key.Lat+1),
		-32768, 32767, nil)
	if err != nil {
		return nil, err
	}

	for row := 0; row < n; row++ {
		iy := n - 1 - row
		for col := 0; col < n; col++ {
			off := (row*n + col) * 2
			v := int16(binary.BigEndian.Uint16(raw[off : off+2]))
			if err := g.Fill(col, iy, float64(v)); err != nil {
				return nil, err
			}
		}
	}

	return tile.New(key, g), nil
}

func hgtSideLength(byteLen int) int {
	samples := byteLen / 2
	for _, n := range []int{1201, 3601} {
		if samples == n*n {
			return n
		}
	}
	return 0
}
