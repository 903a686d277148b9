// Package stepper implements TURTLE's Stepper: an ordered stack of
// terrain layers (tiled stack, single map, flat plane) queried top-down
// from ECEF positions, with optional geoid correction and an optional
// local linear approximation of the geodetic transform for tight query
// loops.
package stepper

import (
	"math"

	"github.com/geoturtle/turtle/pkg/client"
	"github.com/geoturtle/turtle/pkg/geodetic"
	"github.com/geoturtle/turtle/pkg/grid"
	"github.com/geoturtle/turtle/pkg/stack"
	"github.com/geoturtle/turtle/pkg/turtleerr"
)

// layerKind tags which of the three layer variants a layer holds.
type layerKind int

const (
	layerStack layerKind = iota
	layerMap
	layerFlat
)

type layer struct {
	kind   layerKind
	stack  *stack.Stack
	client *client.Client // present iff kind == layerStack and stack has a lock
	ownedClient bool
	m      *grid.Grid
	ground float64 // layerFlat only
}

// Stepper composes layers into a priority-ordered terrain oracle.
type Stepper struct {
	layers []layer
	geoid  *grid.Grid

	approxRange float64 // metres; 0 disables local linearisation

	hasAnchor  bool
	anchorGeo  geodetic.Geodetic
	anchorECEF geodetic.ECEF
	anchorBasis geodetic.ENUBasis
}

// New builds an empty Stepper. Layers are added with AddStack, AddMap and
// AddFlat and are queried last-added-first.
func New() *Stepper {
	return &Stepper{}
}

// AddStack appends a tiled-stack layer. If s has a lock/unlock pair, the
// stepper creates and exclusively owns a Client over it; a lock-less
// stack is queried directly (single-thread-only, per the stack's own
// contract).
func (st *Stepper) AddStack(s *stack.Stack) error {
	l := layer{kind: layerStack, stack: s}
	if s.HasLock() {
		c, err := client.New(s)
		if err != nil {
			return err
		}
		l.client = c
		l.ownedClient = true
	}
	st.layers = append(st.layers, l)
	return nil
}

// AddMap appends a single-map layer. The map is borrowed; the stepper
// does not take ownership of it.
func (st *Stepper) AddMap(m *grid.Grid) {
	st.layers = append(st.layers, layer{kind: layerMap, m: m})
}

// AddFlat appends a flat-ground layer at groundLevel metres.
func (st *Stepper) AddFlat(groundLevel float64) {
	st.layers = append(st.layers, layer{kind: layerFlat, ground: groundLevel})
}

// SetGeoid installs (or clears, with nil) the geoid undulation map used to
// convert ellipsoidal height to orthometric altitude. The geoid map is
// borrowed.
func (st *Stepper) SetGeoid(geoid *grid.Grid) {
	st.geoid = geoid
}

// SetRange sets the validity radius (metres) of the local ENU
// linearisation. range = 0 (the default) disables the optimisation and
// every Step invokes the exact geodetic transform.
func (st *Stepper) SetRange(r float64) {
	st.approxRange = r
	st.hasAnchor = false
}

// Range returns the currently configured linearisation radius.
func (st *Stepper) Range() float64 { return st.approxRange }

// Close tears down every client the stepper created for its stack layers.
// The first teardown error is surfaced, but every client is still
// released; a stepper is always fully freed even when a client's
// teardown fails, matching spec.md §4.5's "stepper is still freed"
// contract.
func (st *Stepper) Close() error {
	var first error
	for i := range st.layers {
		l := &st.layers[i]
		if l.kind == layerStack && l.ownedClient && l.client != nil {
			if err := l.client.Destroy(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (st *Stepper) geodeticFor(p geodetic.ECEF) geodetic.Geodetic {
	if st.approxRange <= 0 || !st.hasAnchor {
		return st.refreshAnchor(p)
	}

	dx := p.X - st.anchorECEF.X
	dy := p.Y - st.anchorECEF.Y
	dz := p.Z - st.anchorECEF.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if dist > st.approxRange {
		return st.refreshAnchor(p)
	}

	basis := st.anchorBasis
	dot := func(v geodetic.ECEF) float64 { return v.X*dx + v.Y*dy + v.Z*dz }
	dEast := dot(basis.East)
	dNorth := dot(basis.North)
	dUp := dot(basis.Up)

	cosPhi0 := math.Cos(st.anchorGeo.Lat * math.Pi / 180)
	if cosPhi0 == 0 {
		return st.refreshAnchor(p)
	}

	metresPerDegLat := math.Pi / 180 * wgs84MeanRadius(st.anchorGeo.Lat)
	lat := st.anchorGeo.Lat + dNorth/metresPerDegLat
	lon := st.anchorGeo.Lon + dEast/(metresPerDegLat*cosPhi0)
	alt := st.anchorGeo.Alt + dUp

	return geodetic.Geodetic{Lat: lat, Lon: lon, Alt: alt}
}

// wgs84MeanRadius approximates the local meridian radius of curvature,
// accurate enough for the small-range linear approximation it supports.
func wgs84MeanRadius(latDeg float64) float64 {
	phi := latDeg * math.Pi / 180
	sinPhi := math.Sin(phi)
	e2 := geodetic.FirstEccentricity * geodetic.FirstEccentricity
	return geodetic.SemiMajorAxis * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
}

func (st *Stepper) refreshAnchor(p geodetic.ECEF) geodetic.Geodetic {
	g := geodetic.ECEFToGeodetic(p)
	st.anchorGeo = g
	st.anchorECEF = p
	st.anchorBasis = geodetic.ComputeENUBasis(g.Lat, g.Lon)
	st.hasAnchor = true
	return g
}

// Step samples the stepper at ECEF position p, returning geodetic
// latitude/longitude, altitude (above the ellipsoid, or above the geoid
// when one is set), ground elevation from the first matching layer, and
// that layer's index. Layers are tried top-down (last-added first).
//
// wantLayerOut mirrors the "layer_out" out-parameter spec.md §4.5/§7
// describes: when true, exhausting every layer without a match is
// success with layerIndex = -1 and ground = 0; when false, the same
// condition fails with DomainError.
func (st *Stepper) Step(p geodetic.ECEF, wantLayerOut bool) (lat, lon, altitude, ground float64, layerIndex int, err error) {
	g := st.geodeticFor(p)
	lat, lon = g.Lat, g.Lon

	altitude = g.Alt
	if st.geoid != nil {
		u, inside, uerr := st.geoid.Elevation(lon, lat, true)
		if uerr != nil {
			return 0, 0, 0, 0, -1, uerr
		}
		if inside {
			altitude = g.Alt - u
		}
	}

	for i := len(st.layers) - 1; i >= 0; i-- {
		l := &st.layers[i]
		switch l.kind {
		case layerStack:
			var z float64
			var inside bool
			var qerr error
			if l.client != nil {
				z, inside, qerr = l.client.Elevation(lat, lon, true)
			} else {
				z, inside, qerr = l.stack.Elevation(lat, lon, true)
			}
			if qerr != nil {
				return 0, 0, 0, 0, -1, qerr
			}
			if inside {
				return lat, lon, altitude, z, i, nil
			}
		case layerMap:
			x, y := lon, lat
			var perr error
			if proj := l.m.Projection(); proj != nil {
				x, y, perr = proj.Forward(lat, lon)
				if perr != nil {
					return 0, 0, 0, 0, -1, perr
				}
			}
			z, inside, merr := l.m.Elevation(x, y, true)
			if merr != nil {
				return 0, 0, 0, 0, -1, merr
			}
			if inside {
				return lat, lon, altitude, z, i, nil
			}
		case layerFlat:
			return lat, lon, altitude, l.ground, i, nil
		}
	}

	if wantLayerOut {
		return lat, lon, altitude, 0, -1, nil
	}
	e := turtleerr.New(turtleerr.DomainError, "stepper.Step", "no layer matched (%v,%v)", lat, lon)
	turtleerr.Raise(e)
	return lat, lon, altitude, 0, -1, e
}
