package geometry

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// AlbersProjection is an ellipsoidal Albers equal-area conic projection.
// Forward maps geographic (lon, lat) degrees to projected metres; Inverse
// maps back. The math follows Snyder, Map Projections: A Working Manual,
// sections 14-1 through 14-21.
type AlbersProjection struct {
	a  float64 // semi-major axis
	e2 float64 // eccentricity squared

	lat0, lon0   float64 // origin, radians
	sp1, sp2     float64 // standard parallels, radians
	falseEasting float64
	falseNorth   float64

	// derived constants
	n, c, rho0 float64
}

// GRS80 ellipsoid constants.
const (
	grs80A  = 6378137.0
	grs80E2 = 0.006694380022903416
)

// BCAlbers returns the EPSG:3005 projection used by the operational store:
// standard parallels 50 and 58.5, origin 45N 126W, false easting 1000000.
func BCAlbers() *AlbersProjection {
	return NewAlbers(50.0, 58.5, 45.0, -126.0, 1000000.0, 0.0)
}

// NewAlbers constructs an Albers projection on GRS80 with the given
// standard parallels, origin, and false offsets (all degrees / metres).
func NewAlbers(sp1, sp2, lat0, lon0, fe, fn float64) *AlbersProjection {
	p := &AlbersProjection{
		a:            grs80A,
		e2:           grs80E2,
		lat0:         lat0 * math.Pi / 180,
		lon0:         lon0 * math.Pi / 180,
		sp1:          sp1 * math.Pi / 180,
		sp2:          sp2 * math.Pi / 180,
		falseEasting: fe,
		falseNorth:   fn,
	}

	m1 := p.m(p.sp1)
	m2 := p.m(p.sp2)
	q0 := p.q(p.lat0)
	q1 := p.q(p.sp1)
	q2 := p.q(p.sp2)

	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.a * math.Sqrt(p.c-p.n*q0) / p.n

	return p
}

// m is Snyder 14-15.
func (p *AlbersProjection) m(lat float64) float64 {
	sin := math.Sin(lat)
	return math.Cos(lat) / math.Sqrt(1-p.e2*sin*sin)
}

// q is Snyder 3-12.
func (p *AlbersProjection) q(lat float64) float64 {
	e := math.Sqrt(p.e2)
	sin := math.Sin(lat)
	return (1 - p.e2) * (sin/(1-p.e2*sin*sin) - (1/(2*e))*math.Log((1-e*sin)/(1+e*sin)))
}

// Forward projects geographic coordinates (degrees) to metres.
func (p *AlbersProjection) Forward(lon, lat float64) (x, y float64) {
	latR := lat * math.Pi / 180
	lonR := lon * math.Pi / 180

	q := p.q(latR)
	rho := p.a * math.Sqrt(p.c-p.n*q) / p.n
	theta := p.n * (lonR - p.lon0)

	x = rho*math.Sin(theta) + p.falseEasting
	y = p.rho0 - rho*math.Cos(theta) + p.falseNorth
	return x, y
}

// Inverse unprojects metres to geographic coordinates (degrees). The
// latitude series converges in a handful of iterations; the loop is
// bounded so malformed input cannot spin.
func (p *AlbersProjection) Inverse(x, y float64) (lon, lat float64) {
	dx := x - p.falseEasting
	dy := p.rho0 - (y - p.falseNorth)

	rho := math.Hypot(dx, dy)
	theta := math.Atan2(dx, dy)
	if p.n < 0 {
		rho = -rho
		theta = math.Atan2(-dx, -dy)
	}

	q := (p.c - (rho*p.n/p.a)*(rho*p.n/p.a)) / p.n

	e := math.Sqrt(p.e2)
	latR := math.Asin(q / 2)
	for i := 0; i < 15; i++ {
		sin := math.Sin(latR)
		oneMinus := 1 - p.e2*sin*sin
		delta := (oneMinus * oneMinus / (2 * math.Cos(latR))) *
			(q/(1-p.e2) - sin/oneMinus + (1/(2*e))*math.Log((1-e*sin)/(1+e*sin)))
		latR += delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}

	lonR := p.lon0 + theta/p.n
	return lonR * 180 / math.Pi, latR * 180 / math.Pi
}

// ToWGS84 reprojects a point from the given native SRID into the
// canonical geographic CRS. Points already in WGS84 pass through
// unchanged. An unknown SRID means the canonical CRS is undefined for
// the record set, which is unrecoverable.
func ToWGS84(pt orb.Point, srid int) (orb.Point, error) {
	switch srid {
	case assets.WGS84SRID:
		return pt, nil
	case assets.BCAlbersSRID:
		lon, lat := BCAlbers().Inverse(pt[0], pt[1])
		return orb.Point{lon, lat}, nil
	default:
		return orb.Point{}, &errors.ConfigError{
			Component: "geometry",
			Message:   "no transform defined for SRID " + strconv.Itoa(srid),
		}
	}
}
