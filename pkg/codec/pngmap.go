package codec

import (
	"encoding/json"
	"image"
	"image/png"
	"os"

	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/projection"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// pngMapMeta is the sidecar JSON metadata object a ".png" map file carries,
// per spec.md §6.
type pngMapMeta struct {
	Projection string     `json:"projection"`
	X          [2]float64 `json:"x"`
	Y          [2]float64 `json:"y"`
	Z          [2]float64 `json:"z"`
	Encoding   string     `json:"encoding"`
}

// PNGMapDecoder decodes a ".png" map: 16-bit grayscale pixels plus a
// "<file>.json" sidecar carrying the projection name and axis ranges.
// No decoder in the retrieval pack parses this bespoke metadata
// convention, so it is built on the standard library's image/png and
// encoding/json.
type PNGMapDecoder struct{}

// DecodeMap implements codec.MapDecoder.
func (PNGMapDecoder) DecodeMap(path string) (*grid.Grid, error) {
	metaPath := path + ".json"
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		e := turtleerr.New(turtleerr.PathError, "codec.PNGMapDecoder.DecodeMap", "open sidecar %q: %v", metaPath, err)
		turtleerr.Raise(e)
		return nil, e
	}

	var meta pngMapMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		e := turtleerr.New(turtleerr.BadJson, "codec.PNGMapDecoder.DecodeMap", "%q: %v", metaPath, err)
		turtleerr.Raise(e)
		return nil, e
	}

	f, err := os.Open(path)
	if err != nil {
		e := turtleerr.New(turtleerr.PathError, "codec.PNGMapDecoder.DecodeMap", "open %q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		e := turtleerr.New(turtleerr.BadFormat, "codec.PNGMapDecoder.DecodeMap", "%q: %v", path, err)
		turtleerr.Raise(e)
		return nil, e
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		e := turtleerr.New(turtleerr.BadFormat, "codec.PNGMapDecoder.DecodeMap", "%q: not 16-bit grayscale", path)
		turtleerr.Raise(e)
		return nil, e
	}

	var proj projection.Projection
	if meta.Projection != "" {
		proj, err = projection.Parse(meta.Projection)
		if err != nil {
			return nil, err
		}
	}

	nx := gray.Bounds().Dx()
	ny := gray.Bounds().Dy()

	g, err := grid.New(nx, ny, meta.X[0], meta.X[1], meta.Y[0], meta.Y[1], meta.Z[0], meta.Z[1], proj)
	if err != nil {
		return nil, err
	}

	for row := 0; row < ny; row++ {
		iy := ny - 1 - row
		for col := 0; col < nx; col++ {
			s := gray.Gray16At(gray.Bounds().Min.X+col, gray.Bounds().Min.Y+row)
			z := meta.Z[0] + float64(s.Y)*(meta.Z[1]-meta.Z[0])/65535
			if err := g.Fill(col, iy, z); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}
