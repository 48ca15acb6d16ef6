// Package assets defines the domain types shared by the extraction,
// normalization, validation, publishing, and reporting stages.
package assets

import (
	"time"

	"github.com/paulmach/orb"
)

// WGS84SRID is the canonical geographic coordinate reference system all
// derived points are expressed in.
const WGS84SRID = 4326

// BCAlbersSRID is the native projected CRS of the operational store.
const BCAlbersSRID = 3005

// AssetRecord is a read-only snapshot of one asset row for a single
// pipeline run. Records are never mutated in place, only superseded by
// the next extraction.
type AssetRecord struct {
	// ID is the stable asset identifier, unique across runs. It is the
	// remote key for all publish operations.
	ID string

	// GISID is the secondary spatial identifier shown on QA reports.
	GISID string

	// Table is the source table in the assets schema, e.g. "trails".
	Table string

	// Category is the asset classification, e.g. "Signs".
	Category string

	// Attributes holds the remaining columns. The set varies by table.
	Attributes map[string]any

	// Geometry is the raw geometry in its native CRS. Nil when the
	// stored geometry was NULL.
	Geometry orb.Geometry

	// SRID identifies the native CRS of Geometry.
	SRID int

	// Latitude and Longitude are the store-derived WGS84 centroid
	// coordinates when the extraction query computed them. Nil when the
	// normalizer must compute them in-process.
	Latitude  *float64
	Longitude *float64
}

// HasDerivedCoordinates reports whether the store already computed the
// canonical centroid for this record.
func (r *AssetRecord) HasDerivedCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// NormalizedPoint is the representative location of one AssetRecord in
// the canonical CRS. It is a derived value recomputed every run.
type NormalizedPoint struct {
	RecordID  string
	Latitude  float64
	Longitude float64
}

// Point returns the location as an orb point (lon, lat order).
func (p NormalizedPoint) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// BoundaryVerdict classifies one NormalizedPoint against the reference
// jurisdictional boundary.
type BoundaryVerdict struct {
	RecordID string

	// Inside is true when the point lies within or exactly on the
	// boundary (closed-boundary convention).
	Inside bool

	// DistanceKM is the distance from the point to the boundary in
	// kilometres. Zero for inside points.
	DistanceKM float64
}

// OperationKind describes what the publisher will do with a record.
type OperationKind int

// Operation kinds, in the order the publisher reports them.
const (
	OperationSkip OperationKind = iota
	OperationCreate
	OperationUpdate
)

// String implements fmt.Stringer.
func (k OperationKind) String() string {
	switch k {
	case OperationCreate:
		return "create"
	case OperationUpdate:
		return "update"
	case OperationSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// SyncOperation is one pending publish action for a run. There is exactly
// one per AssetRecord per run.
type SyncOperation struct {
	RecordID string
	Kind     OperationKind

	// Payload is the feature to submit. Nil for skip operations.
	Payload *RemoteFeature
}

// RemoteFeature is the feature service's view of a record. The pipeline
// holds only an ephemeral cached copy for diffing, discarded at run end.
type RemoteFeature struct {
	// ID is the stable asset identifier, never a service-generated one.
	ID string

	// Point is the WGS84 location (lon, lat order).
	Point orb.Point

	// Attributes is the published attribute set, keyed by display label.
	Attributes map[string]any

	// LastModified is the service's edit marker. Informational only; it
	// never participates in diffing.
	LastModified time.Time
}
