// Package projection implements TURTLE's Projection type: an opaque
// forward/inverse (lat,lon) <-> (x,y) mapping carried by a canonical name
// string. The interface mirrors the Forward/Inverse/name-tag shape common
// to Go projection libraries; the concrete math lives here because the
// stepper's Map layer must actually project to sample a tile, even though
// the wider specification treats projection formulas as a narrow external
// concern rather than a general-purpose GIS toolkit.
package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// Projection is the opaque tagged value spec.md §3 describes: forward maps
// geodetic (lat, lon) degrees to the projected (x, y), inverse is its
// exact inverse, and Name returns the canonical, round-trippable string
// the projection was built from.
type Projection interface {
	Forward(lat, lon float64) (x, y float64, err error)
	Inverse(x, y float64) (lat, lon float64, err error)
	Name() string
}

// None is the identity projection: (x, y) = (lon, lat).
type None struct{}

func (None) Forward(lat, lon float64) (float64, float64, error) { return lon, lat, nil }
func (None) Inverse(x, y float64) (float64, float64, error)     { return y, x, nil }
func (None) Name() string                                       { return "" }

// Parse parses a projection name per the grammar:
//
//	PROJECTION := "Lambert " ("I"|"II"|"IIe"|"III"|"IV"|"93")
//	            | "UTM " ZONE HEMISPHERE
//	ZONE       := INT in [1,60] | DECIMAL
//	HEMISPHERE := "N" | "S"
//
// It fails with BadProjection when name matches neither form.
func Parse(name string) (Projection, error) {
	if rest, ok := cutPrefix(name, "Lambert "); ok {
		if lam, ok := lambertVariants[rest]; ok {
			return lam, nil
		}
		return nil, badProjection(name)
	}

	if rest, ok := cutPrefix(name, "UTM "); ok {
		if len(rest) < 2 {
			return nil, badProjection(name)
		}
		hemi := rest[len(rest)-1]
		if hemi != 'N' && hemi != 'S' {
			return nil, badProjection(name)
		}
		zonePart := rest[:len(rest)-1]

		if zone, err := strconv.Atoi(zonePart); err == nil {
			if zone < 1 || zone > 60 {
				return nil, badProjection(name)
			}
			return newUTMFromZone(zone, hemi), nil
		}
		if lon, err := strconv.ParseFloat(zonePart, 64); err == nil {
			return newUTMFromLongitude(lon, hemi), nil
		}
		return nil, badProjection(name)
	}

	return nil, badProjection(name)
}

func badProjection(name string) error {
	e := turtleerr.New(turtleerr.BadProjection, "projection.Parse", "unparseable projection name %q", name)
	turtleerr.Raise(e)
	return e
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// UTM is the Universal Transverse Mercator projection restricted to one
// 6-degree zone and hemisphere, on the WGS84 ellipsoid.
type UTM struct {
	zone        int // 0 when built from an explicit central longitude
	centralLon  float64
	hemisphere  byte
	zoneGiven   bool
}

const (
	utmA  = 6378137.0
	utmE2 = 0.00669437999014
	utmK0 = 0.9996
	utmFE = 500000.0
	utmFN = 10000000.0
)

func newUTMFromZone(zone int, hemi byte) *UTM {
	return &UTM{zone: zone, centralLon: float64(zone)*6 - 183, hemisphere: hemi, zoneGiven: true}
}

func newUTMFromLongitude(lon float64, hemi byte) *UTM {
	return &UTM{centralLon: lon, hemisphere: hemi, zoneGiven: false}
}

func (u *UTM) Name() string {
	if u.zoneGiven {
		return fmt.Sprintf("UTM %d%c", u.zone, u.hemisphere)
	}
	lon := strconv.FormatFloat(u.centralLon, 'g', -1, 64)
	if _, err := strconv.Atoi(lon); err == nil {
		// Keep a decimal point so Parse reads it back as a longitude,
		// not as a zone number.
		lon += ".0"
	}
	return fmt.Sprintf("UTM %s%c", lon, u.hemisphere)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// Forward converts geodetic (lat, lon) degrees to UTM easting/northing in
// metres, using the classic Snyder (1987) transverse Mercator series.
func (u *UTM) Forward(lat, lon float64) (float64, float64, error) {
	phi := deg2rad(lat)
	lambda := deg2rad(lon)
	lambda0 := deg2rad(u.centralLon)

	ep2 := utmE2 / (1 - utmE2)
	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := math.Tan(phi)

	n := utmA / math.Sqrt(1-utmE2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := (lambda - lambda0) * cosPhi

	e2, e4, e6 := utmE2, utmE2*utmE2, utmE2*utmE2*utmE2
	m := utmA * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	x := utmK0*n*(a+(1-t+c)*a*a*a/6+(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120) + utmFE
	y := utmK0 * (m + n*tanPhi*(a*a/2+(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))

	if u.hemisphere == 'S' {
		y += utmFN
	}

	return x, y, nil
}

// Inverse converts UTM easting/northing in metres back to geodetic
// (lat, lon) in degrees, the matching-order inverse of Forward.
func (u *UTM) Inverse(x, y float64) (float64, float64, error) {
	lambda0 := deg2rad(u.centralLon)

	yy := y
	if u.hemisphere == 'S' {
		yy -= utmFN
	}

	ep2 := utmE2 / (1 - utmE2)
	e1 := (1 - math.Sqrt(1-utmE2)) / (1 + math.Sqrt(1-utmE2))

	m := yy / utmK0
	e2, e4, e6 := utmE2, utmE2*utmE2, utmE2*utmE2*utmE2
	mu := m / (utmA * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := utmA / math.Sqrt(1-utmE2*sinPhi1*sinPhi1)
	r1 := utmA * (1 - utmE2) / math.Pow(1-utmE2*sinPhi1*sinPhi1, 1.5)
	d := (x - utmFE) / (n1 * utmK0)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d*d*d*d/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d*d*d*d*d*d/720)

	lambda := lambda0 + (d-
		(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d*d*d*d/120)/cosPhi1

	return rad2deg(phi), rad2deg(lambda), nil
}
