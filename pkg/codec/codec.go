// Package codec holds the file-format decoders TURTLE's core treats as
// external collaborators: tiled formats feeding pkg/stack (GeoTIFF16,
// HGT) and single-map formats feeding callers of pkg/grid directly
// (PNG+JSON, GRD ASCII). pkg/stack and pkg/grid never import a concrete
// decoder, only the TileDecoder/MapDecoder interfaces below, so adding a
// format never touches the cache or sampler.
package codec

import (
	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/tile"
)

// TileDecoder decodes one on-disk tile file into a geographic Tile.
type TileDecoder interface {
	// DecodeTile reads the file at path, which is known to describe the
	// 1x1 degree cell at key, and returns the resulting Tile.
	DecodeTile(path string, key tile.Key) (*tile.Tile, error)
}

// MapDecoder decodes one on-disk map file into a Grid, projected or not
// depending on the format's own metadata.
type MapDecoder interface {
	DecodeMap(path string) (*grid.Grid, error)
}

// TileDecoderFunc adapts a function to a TileDecoder.
type TileDecoderFunc func(path string, key tile.Key) (*tile.Tile, error)

// DecodeTile implements TileDecoder.
func (f TileDecoderFunc) DecodeTile(path string, key tile.Key) (*tile.Tile, error) {
	return f(path, key)
}

// MapDecoderFunc adapts a function to a MapDecoder.
type MapDecoderFunc func(path string) (*grid.Grid, error)

// DecodeMap implements MapDecoder.
func (f MapDecoderFunc) DecodeMap(path string) (*grid.Grid, error) {
	return f(path)
}
