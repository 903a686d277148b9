package codec

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"

	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/tile"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// geoTIFF16IFD is the subset of IFD fields a single-strip, single-band,
// 16-bit unsigned ASTGTM2/SRTM GeoTIFF carries; the struct-tag unmarshaling
// pattern and tag numbers mirror the wider ecosystem's approach to reading
// GeoTIFF elevation rasters with github.com/google/tiff.
type geoTIFF16IFD struct {
	ImageWidth         uint16    `tiff:"field,tag=256"`
	ImageLength        uint16    `tiff:"field,tag=257"`
	BitsPerSample      uint16    `tiff:"field,tag=258"`
	Compression        uint16    `tiff:"field,tag=259"`
	SamplesPerPixel    uint16    `tiff:"field,tag=277"`
	StripOffsets       []uint64  `tiff:"field,tag=273"`
	StripByteCounts    []uint64  `tiff:"field,tag=279"`
	SampleFormat       uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag   []float64 `tiff:"field,tag=33922"`
}

// GeoTIFF16Decoder decodes single-band, 16-bit, uncompressed ASTGTM2/SRTM
// GeoTIFF tiles into geographic tiles, per spec.md §6's "16-bit GeoTIFF
// (ASTER-GDEM2/SRTM)" tiled format.
type GeoTIFF16Decoder struct{}

// DecodeTile implements codec.TileDecoder.
func (GeoTIFF16Decoder) DecodeTile(path string, key tile.Key) (*tile.Tile, error) {
	g, err := decodeGeoTIFF16(path)
	if err != nil {
		return nil, err
	}
	return tile.New(key, g), nil
}

func decodeGeoTIFF16(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		e := turtleerr.New(turtleerr.PathError, "codec.decodeGeoTIFF16", "open %q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}
	defer f.Close()

	tf, err := tiff.Parse(f, nil, nil)
	if err != nil {
		e := turtleerr.New(turtleerr.BadFormat, "codec.decodeGeoTIFF16", "parse %q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}
	if len(tf.IFDs()) != 1 {
		e := turtleerr.New(turtleerr.BadFormat, "codec.decodeGeoTIFF16", "%q: found %d IFDs, want 1", path, len(tf.IFDs()))
		turtleerr.Raise(e)
		return nil, e
	}

	var ifd geoTIFF16IFD
	if err := tiff.UnmarshalIFD(tf.IFDs()[0], &ifd); err != nil {
		e := turtleerr.New(turtleerr.BadFormat, "codec.decodeGeoTIFF16", "%q: unmarshal IFD: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}

	if ifd.BitsPerSample != 16 || ifd.SamplesPerPixel != 1 || ifd.Compression != 1 ||
		len(ifd.ModelPixelScaleTag) < 2 || len(ifd.ModelTiepointTag) < 6 {
		e := turtleerr.New(turtleerr.BadFormat, "codec.decodeGeoTIFF16", "%q: unsupported GeoTIFF layout", path)
		turtleerr.Raise(e)
		return nil, e
	}

	nx := int(ifd.ImageWidth)
	ny := int(ifd.ImageLength)
	pixelScaleX := ifd.ModelPixelScaleTag[0]
	pixelScaleY := ifd.ModelPixelScaleTag[1]
	tieX := ifd.ModelTiepointTag[3]
	tieY := ifd.ModelTiepointTag[4]

	// Tie point is the top-left pixel centre per §9's open question; the
	// map contract here is inclusive with origin at the bottom-left, so
	// the y range is shifted by (1-ny)*dy to flip to that convention.
	x0 := tieX
	x1 := tieX + float64(nx-1)*pixelScaleX
	y1 := tieY
	y0 := tieY + float64(1-ny)*pixelScaleY

	g, err := grid.New(nx, ny, x0, x1, y0, y1, -32768, 32767, nil)
	if err != nil {
		return nil, err
	}

	raw, err := readStrips(f, ifd.StripOffsets, ifd.StripByteCounts)
	if err != nil {
		e := turtleerr.New(turtleerr.BadFormat, "codec.decodeGeoTIFF16", "%q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}
	if len(raw) < nx*ny*2 {
		e := turtleerr.New(turtleerr.BadFormat, "codec.decodeGeoTIFF16", "%q: truncated pixel data", path)
		turtleerr.Raise(e)
		return nil, e
	}

	signed := ifd.SampleFormat == 2
	for row := 0; row < ny; row++ {
		// GeoTIFF rows run top-to-bottom; the grid's y axis runs
		// bottom-to-top, so row 0 (north) lands at iy = ny-1.
		iy := ny - 1 - row
		for col := 0; col < nx; col++ {
			off := (row*nx + col) * 2
			raw16 := binary.LittleEndian.Uint16(raw[off : off+2])
			var z float64
			if signed {
				z = float64(int16(raw16))
			} else {
				z = float64(raw16)
			}
			if err := g.Fill(col, iy, z); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

func readStrips(f *os.File, offsets, counts []uint64) ([]byte, error) {
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("strip offset/byte-count length mismatch")
	}
	var total uint64
	for _, c := range counts {
		total += c
	}
	buf := make([]byte, 0, total)
	for i, off := range offsets {
		chunk := make([]byte, counts[i])
		if _, err := f.ReadAt(chunk, int64(off)); err != nil {
			return nil, fmt.Errorf("read strip %d: %w", i, err)
		}
		buf = append(buf, chunk...)
	}
	return buf, nil
}
