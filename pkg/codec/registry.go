package codec

import (
	"path/filepath"
	"strings"

	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// DefaultMapDecoders maps a recognised map file extension to the decoder
// that handles it. DecodeMapFile consults this table; pkg/stack never
// does, since tile formats are selected by Stack.Format instead (tile
// file selection is driven by the stack's configured format, not by
// extension sniffing, because every tile in one stack shares one format).
var DefaultMapDecoders = map[string]MapDecoder{
	".png": PNGMapDecoder{},
	".grd": GRDDecoder{},
}

// DecodeMapFile dispatches to the MapDecoder registered for path's
// extension, failing with BadExtension when none is registered.
func DecodeMapFile(path string) (*grid.Grid, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := DefaultMapDecoders[ext]
	if !ok {
		e := turtleerr.New(turtleerr.BadExtension, "codec.DecodeMapFile", "%q: unrecognised extension %q", path, ext)
		turtleerr.Raise(e)
		return nil, e
	}
	return dec.DecodeMap(path)
}

// TileDecoderByFormat resolves a stack's configured tile format name
// ("geotiff16" or "hgt") to the TileDecoder that reads it, failing with
// BadFormat for an unknown name.
func TileDecoderByFormat(format string) (TileDecoder, error) {
	switch format {
	case "geotiff16":
		return GeoTIFF16Decoder{}, nil
	case "hgt":
		return HGTDecoder{}, nil
	default:
		e := turtleerr.New(turtleerr.BadFormat, "codec.TileDecoderByFormat", "unknown tile format %q", format)
		turtleerr.Raise(e)
		return nil, e
	}
}
