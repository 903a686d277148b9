// Package geodetic implements the WGS84 transforms TURTLE's stepper depends
// on: geodetic <-> ECEF conversion, the local East/North/Up basis, and
// horizontal (azimuth/elevation) <-> ECEF direction conversion. Angles are
// degrees on every exported function; radians never cross a package
// boundary.
package geodetic

import (
	"math"

	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// WGS84 ellipsoid parameters.
const (
	SemiMajorAxis     = 6378137.0          // a, metres
	FirstEccentricity = 0.081819190842622 // e
)

var (
	e2 = FirstEccentricity * FirstEccentricity
	b  = SemiMajorAxis * math.Sqrt(1-e2) // semi-minor axis
)

// ECEF is a Cartesian position or direction vector in the Earth-Centered
// Earth-Fixed frame, in metres (or metres/unit for a direction).
type ECEF struct {
	X, Y, Z float64
}

// Geodetic is a WGS84 geodetic coordinate: latitude and longitude in
// degrees, ellipsoidal height in metres.
type Geodetic struct {
	Lat, Lon, Alt float64
}

// ENUBasis is the local East/North/Up right-handed frame at a geodetic
// point, expressed as unit vectors in ECEF.
type ENUBasis struct {
	East, North, Up ECEF
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// ECEFFromGeodetic converts a WGS84 geodetic coordinate to ECEF.
func ECEFFromGeodetic(g Geodetic) ECEF {
	phi := deg2rad(g.Lat)
	lambda := deg2rad(g.Lon)
	sinPhi, cosPhi := math.Sincos(phi)
	sinLambda, cosLambda := math.Sincos(lambda)

	r := SemiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)

	return ECEF{
		X: (r + g.Alt) * cosPhi * cosLambda,
		Y: (r + g.Alt) * cosPhi * sinLambda,
		Z: (r*(1-e2) + g.Alt) * sinPhi,
	}
}

// ECEFToGeodetic converts an ECEF position to WGS84 geodetic coordinates
// using Bowring's 1985 single-iteration method, with the closed-form polar
// and equatorial special cases the original implementation carries.
func ECEFToGeodetic(p ECEF) Geodetic {
	if p.X == 0 && p.Y == 0 {
		phi := 90.0
		if p.Z < 0 {
			phi = -90.0
		}
		return Geodetic{Lat: phi, Lon: 0, Alt: math.Abs(p.Z) - b}
	}

	lambda := rad2deg(math.Atan2(p.Y, p.X))

	if p.Z == 0 {
		h := math.Sqrt(p.X*p.X+p.Y*p.Y) - SemiMajorAxis
		return Geodetic{Lat: 0, Lon: lambda, Alt: h}
	}

	ep2 := e2 * SemiMajorAxis * SemiMajorAxis / (b * b)

	pRad := math.Sqrt(p.X*p.X + p.Y*p.Y)
	r := math.Sqrt(pRad*pRad + p.Z*p.Z)

	tanU := (b * p.Z / (SemiMajorAxis * pRad)) * (1 + ep2*b/r)
	u := math.Atan(tanU)
	sinU, cosU := math.Sincos(u)

	tanPhi := (p.Z + ep2*b*sinU*sinU*sinU) / (pRad - e2*SemiMajorAxis*cosU*cosU*cosU)
	phi := math.Atan(tanPhi)
	sinPhi, cosPhi := math.Sincos(phi)

	h := pRad*cosPhi + p.Z*sinPhi - SemiMajorAxis*math.Sqrt(1-e2*sinPhi*sinPhi)

	return Geodetic{Lat: rad2deg(phi), Lon: lambda, Alt: h}
}

// ComputeENUBasis returns the unit East/North/Up vectors at the given
// geodetic latitude/longitude, expressed in ECEF.
func ComputeENUBasis(lat, lon float64) ENUBasis {
	phi := deg2rad(lat)
	lambda := deg2rad(lon)
	sinPhi, cosPhi := math.Sincos(phi)
	sinLambda, cosLambda := math.Sincos(lambda)

	return ENUBasis{
		East:  ECEF{X: -sinLambda, Y: cosLambda, Z: 0},
		North: ECEF{X: -cosLambda * sinPhi, Y: -sinLambda * sinPhi, Z: cosPhi},
		Up:    ECEF{X: cosLambda * cosPhi, Y: sinLambda * cosPhi, Z: sinPhi},
	}
}

// ECEFFromHorizontal converts an azimuth/elevation direction at a given
// geodetic latitude/longitude into an ECEF unit direction vector.
func ECEFFromHorizontal(lat, lon, azimuth, elevation float64) ECEF {
	basis := ComputeENUBasis(lat, lon)

	az := deg2rad(azimuth)
	el := deg2rad(elevation)
	sinAz, cosAz := math.Sincos(az)
	sinEl, cosEl := math.Sincos(el)

	scale := func(v ECEF, s float64) ECEF { return ECEF{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }
	add := func(a, b ECEF) ECEF { return ECEF{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z} }

	d := add(add(scale(basis.East, sinAz*cosEl), scale(basis.North, cosAz*cosEl)), scale(basis.Up, sinEl))
	return d
}

// ECEFToHorizontal projects the ECEF direction d onto the local ENU basis
// at the given geodetic latitude/longitude, returning azimuth and
// elevation in degrees. It fails with DomainError when d has zero norm.
func ECEFToHorizontal(lat, lon float64, d ECEF) (azimuth, elevation float64, err error) {
	norm := math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
	if norm == 0 {
		e := turtleerr.New(turtleerr.DomainError, "geodetic.ECEFToHorizontal", "zero-length direction vector")
		turtleerr.Raise(e)
		return 0, 0, e
	}

	basis := ComputeENUBasis(lat, lon)
	dot := func(a, b ECEF) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

	x := dot(d, basis.East)
	y := dot(d, basis.North)
	z := dot(d, basis.Up)

	az := rad2deg(math.Atan2(x, y))
	if az < 0 {
		az += 360
	}
	el := rad2deg(math.Asin(z / norm))

	return az, el, nil
}
