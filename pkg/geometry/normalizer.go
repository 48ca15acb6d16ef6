// Package geometry derives canonical WGS84 representative points from raw
// asset geometries. The centroid is computed in the native CRS and the
// centroid alone is reprojected; reprojecting the full geometry first
// would distort shapes spanning projection seams.
package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// Window is the coordinate sanity window for derived points. Points
// outside it are almost certainly data-entry errors rather than real
// out-of-province assets, and are flagged for the QA report.
type Window struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// DefaultWindow covers British Columbia with generous margins.
func DefaultWindow() Window {
	return Window{MinLat: 47, MaxLat: 60, MinLon: -145, MaxLon: -113}
}

// Contains reports whether the point falls inside the window.
func (w Window) Contains(p assets.NormalizedPoint) bool {
	return p.Latitude >= w.MinLat && p.Latitude <= w.MaxLat &&
		p.Longitude >= w.MinLon && p.Longitude <= w.MaxLon
}

// Normalizer turns one AssetRecord into one NormalizedPoint. It is
// stateless and safe for concurrent use across worker goroutines.
type Normalizer struct{}

// NewNormalizer returns a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize derives the canonical representative point for a record.
// When the extraction query already computed WGS84 coordinates in the
// store, those are authoritative. Otherwise the centroid is computed in
// the record's native CRS and reprojected.
//
// Returns a DegenerateGeometryError when the geometry is nil, empty, or
// has zero extent where extent is expected. Identical input always
// yields identical output.
func (n *Normalizer) Normalize(rec *assets.AssetRecord) (assets.NormalizedPoint, error) {
	if rec.HasDerivedCoordinates() {
		return assets.NormalizedPoint{
			RecordID:  rec.ID,
			Latitude:  *rec.Latitude,
			Longitude: *rec.Longitude,
		}, nil
	}

	if reason := degenerateReason(rec.Geometry); reason != "" {
		return assets.NormalizedPoint{}, &errors.DegenerateGeometryError{RecordID: rec.ID, Reason: reason}
	}

	centroid, _ := planar.CentroidArea(rec.Geometry)

	canonical, err := ToWGS84(centroid, rec.SRID)
	if err != nil {
		return assets.NormalizedPoint{}, err
	}

	return assets.NormalizedPoint{
		RecordID:  rec.ID,
		Latitude:  canonical.Lat(),
		Longitude: canonical.Lon(),
	}, nil
}

// degenerateReason classifies unusable geometry. Empty string means the
// geometry can yield a centroid.
func degenerateReason(g orb.Geometry) string {
	if g == nil {
		return "nil"
	}

	switch geom := g.(type) {
	case orb.Point:
		return ""
	case orb.MultiPoint:
		if len(geom) == 0 {
			return "empty"
		}
		return ""
	case orb.LineString:
		if len(geom) < 2 {
			return "empty"
		}
		if planar.Length(geom) == 0 {
			return "zero extent"
		}
		return ""
	case orb.MultiLineString:
		if len(geom) == 0 {
			return "empty"
		}
		if planar.Length(geom) == 0 {
			return "zero extent"
		}
		return ""
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return "empty"
		}
		if planar.Area(geom) == 0 {
			return "zero extent"
		}
		return ""
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return "empty"
		}
		if planar.Area(geom) == 0 {
			return "zero extent"
		}
		return ""
	case orb.Collection:
		if len(geom) == 0 {
			return "empty"
		}
		return ""
	default:
		return ""
	}
}
