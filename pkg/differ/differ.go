// Package differ detects changes between the extracted record set and the
// remote feature service's current state. Diff-before-write keeps publish
// operations idempotent and produces meaningful skip counts.
package differ

import (
	"fmt"
	"math"
	"sort"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
)

// Differ compares desired features against the cached remote state.
type Differ struct {
	coordTolerance float64
}

// Option configures a Differ.
type Option func(*Differ)

// WithCoordinateTolerance overrides the coordinate comparison tolerance
// in degrees.
func WithCoordinateTolerance(tol float64) Option {
	return func(d *Differ) { d.coordTolerance = tol }
}

// New creates a Differ with default settings.
func New(opts ...Option) *Differ {
	d := &Differ{
		// Nine decimal places is well below GPS precision; anything
		// closer is floating-point noise from reprojection.
		coordTolerance: 1e-9,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff produces exactly one SyncOperation per desired feature:
// create when the remote has no feature with that ID, update when the
// remote feature differs, skip when it is already identical. Operations
// are sorted by record ID so partial-failure reports are reproducible.
func (d *Differ) Diff(desired []assets.RemoteFeature, remote map[string]assets.RemoteFeature) *Changeset {
	cs := &Changeset{}

	for i := range desired {
		feature := desired[i]
		op := assets.SyncOperation{RecordID: feature.ID}

		existing, exists := remote[feature.ID]
		switch {
		case !exists:
			op.Kind = assets.OperationCreate
			op.Payload = &feature
		case !d.equal(feature, existing):
			op.Kind = assets.OperationUpdate
			op.Payload = &feature
		default:
			op.Kind = assets.OperationSkip
		}

		cs.Operations = append(cs.Operations, op)
	}

	sort.Slice(cs.Operations, func(i, j int) bool {
		return cs.Operations[i].RecordID < cs.Operations[j].RecordID
	})

	for _, op := range cs.Operations {
		switch op.Kind {
		case assets.OperationCreate:
			cs.Creates++
		case assets.OperationUpdate:
			cs.Updates++
		case assets.OperationSkip:
			cs.Skips++
		}
	}

	return cs
}

// equal compares the published view of two features. The remote
// last-modified marker never participates.
func (d *Differ) equal(a, b assets.RemoteFeature) bool {
	if math.Abs(a.Point.Lon()-b.Point.Lon()) > d.coordTolerance {
		return false
	}
	if math.Abs(a.Point.Lat()-b.Point.Lat()) > d.coordTolerance {
		return false
	}

	if len(a.Attributes) != len(b.Attributes) {
		return false
	}
	for key, av := range a.Attributes {
		bv, ok := b.Attributes[key]
		if !ok {
			return false
		}
		if !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

// valueEqual compares attribute values across the JSON round trip: the
// remote service returns numbers as float64 and nulls as nil, while
// extracted values keep their driver types.
func valueEqual(a, b any) bool {
	if a == nil {
		a = ""
	}
	if b == nil {
		b = ""
	}

	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
