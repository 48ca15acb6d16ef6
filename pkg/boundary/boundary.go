// Package boundary classifies normalized points against the reference
// jurisdictional boundary.
//
// Convention: the boundary is CLOSED. A point exactly on the boundary is
// classified inside. The on-boundary test is explicit rather than left to
// the containment algorithm's edge behavior, so the convention is visible
// and independently tested.
package boundary

import (
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// onBoundaryEpsilon is the planar tolerance, in degrees, for treating a
// point as exactly on a boundary segment (well under a millimetre).
const onBoundaryEpsilon = 1e-9

// Validator holds the reference polygon set. It is immutable after
// construction and safe for concurrent use: each Check is independent,
// so validation parallelizes freely over the record set.
type Validator struct {
	polygons orb.MultiPolygon
}

// Load reads the boundary from a GeoJSON file (FeatureCollection or bare
// geometry) in WGS84 and unions all polygonal features.
func Load(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data)
}

// Parse builds a Validator from raw GeoJSON bytes.
func Parse(data []byte) (*Validator, error) {
	var geoms []orb.Geometry

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil {
		geoms = append(geoms, g.Geometry())
	} else {
		return nil, &errors.ConfigError{Component: "boundary", Message: "boundary file is not valid GeoJSON", Err: err}
	}

	return New(geoms...)
}

// New builds a Validator from polygonal geometries.
func New(geoms ...orb.Geometry) (*Validator, error) {
	var polygons orb.MultiPolygon
	for _, g := range geoms {
		switch geom := g.(type) {
		case orb.Polygon:
			polygons = append(polygons, geom)
		case orb.MultiPolygon:
			polygons = append(polygons, geom...)
		case orb.Collection:
			for _, sub := range geom {
				v, err := New(sub)
				if err != nil {
					return nil, err
				}
				polygons = append(polygons, v.polygons...)
			}
		default:
			// Non-polygonal features (labels, centrelines) are ignored.
		}
	}

	if len(polygons) == 0 {
		return nil, &errors.ConfigError{Component: "boundary", Message: "boundary contains no polygons"}
	}

	return &Validator{polygons: polygons}, nil
}

// Check classifies a point. It never fails on well-formed input: a point
// far outside all known bounds is a legitimate outside verdict.
func (v *Validator) Check(pt assets.NormalizedPoint) assets.BoundaryVerdict {
	p := pt.Point()

	inside := planar.MultiPolygonContains(v.polygons, p) || v.onBoundary(p)

	verdict := assets.BoundaryVerdict{RecordID: pt.RecordID, Inside: inside}
	if !inside {
		verdict.DistanceKM = v.distanceKM(p)
	}
	return verdict
}

// onBoundary reports whether the point lies on any boundary segment.
func (v *Validator) onBoundary(p orb.Point) bool {
	for _, polygon := range v.polygons {
		for _, ring := range polygon {
			for i := 1; i < len(ring); i++ {
				nearest := closestOnSegment(p, ring[i-1], ring[i])
				if planarDistance(p, nearest) <= onBoundaryEpsilon {
					return true
				}
			}
		}
	}
	return false
}

// distanceKM returns the geodesic distance from the point to the nearest
// boundary segment, in kilometres.
func (v *Validator) distanceKM(p orb.Point) float64 {
	best := math.Inf(1)
	for _, polygon := range v.polygons {
		for _, ring := range polygon {
			for i := 1; i < len(ring); i++ {
				nearest := closestOnSegment(p, ring[i-1], ring[i])
				if d := geo.Distance(p, nearest); d < best {
					best = d
				}
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best / 1000.0
}

// closestOnSegment projects p onto segment ab, clamped to the endpoints.
func closestOnSegment(p, a, b orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

func planarDistance(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}
