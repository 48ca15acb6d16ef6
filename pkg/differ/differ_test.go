package differ

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
)

func feature(id string, lon, lat float64, attrs map[string]any) assets.RemoteFeature {
	if attrs == nil {
		attrs = map[string]any{"Park": "Goldstream"}
	}
	return assets.RemoteFeature{ID: id, Point: orb.Point{lon, lat}, Attributes: attrs}
}

func TestDiffCreateUpdateSkip(t *testing.T) {
	d := New()

	desired := []assets.RemoteFeature{
		feature("AST-1", -123.5, 48.4, nil),                              // unchanged
		feature("AST-2", -123.6, 48.5, nil),                              // moved remotely
		feature("AST-3", -123.7, 48.6, nil),                              // not on remote
		feature("AST-4", -123.8, 48.7, map[string]any{"Park": "Naikoon"}), // attrs changed
	}
	remote := map[string]assets.RemoteFeature{
		"AST-1": feature("AST-1", -123.5, 48.4, nil),
		"AST-2": feature("AST-2", -123.0, 48.5, nil),
		"AST-4": feature("AST-4", -123.8, 48.7, map[string]any{"Park": "Goldstream"}),
	}

	cs := d.Diff(desired, remote)

	assert.Equal(t, 1, cs.Creates)
	assert.Equal(t, 2, cs.Updates)
	assert.Equal(t, 1, cs.Skips)
	assert.Len(t, cs.Operations, 4)
	assert.True(t, cs.HasChanges())

	kinds := map[string]assets.OperationKind{}
	for _, op := range cs.Operations {
		kinds[op.RecordID] = op.Kind
	}
	assert.Equal(t, assets.OperationSkip, kinds["AST-1"])
	assert.Equal(t, assets.OperationUpdate, kinds["AST-2"])
	assert.Equal(t, assets.OperationCreate, kinds["AST-3"])
	assert.Equal(t, assets.OperationUpdate, kinds["AST-4"])
}

// Diffing the same unchanged set twice yields all skips the second time:
// this is what makes replayed publishes idempotent.
func TestDiffIdempotence(t *testing.T) {
	d := New()
	desired := []assets.RemoteFeature{feature("AST-1", -123.5, 48.4, nil)}

	first := d.Diff(desired, map[string]assets.RemoteFeature{})
	assert.Equal(t, 1, first.Creates)

	// Simulate the remote now holding exactly what we published.
	remote := map[string]assets.RemoteFeature{"AST-1": desired[0]}
	second := d.Diff(desired, remote)
	assert.Equal(t, 0, second.Creates)
	assert.Equal(t, 0, second.Updates)
	assert.Equal(t, 1, second.Skips)
	assert.False(t, second.HasChanges())
}

func TestDiffDeterministicOrder(t *testing.T) {
	d := New()
	desired := []assets.RemoteFeature{
		feature("AST-9", -123.1, 48.1, nil),
		feature("AST-1", -123.2, 48.2, nil),
		feature("AST-5", -123.3, 48.3, nil),
	}

	cs := d.Diff(desired, map[string]assets.RemoteFeature{})
	ids := []string{cs.Operations[0].RecordID, cs.Operations[1].RecordID, cs.Operations[2].RecordID}
	assert.Equal(t, []string{"AST-1", "AST-5", "AST-9"}, ids)
}

func TestDiffCoordinateTolerance(t *testing.T) {
	d := New()

	// A sub-tolerance wiggle from reprojection noise is not a change.
	desired := []assets.RemoteFeature{feature("AST-1", -123.5+1e-12, 48.4, nil)}
	remote := map[string]assets.RemoteFeature{"AST-1": feature("AST-1", -123.5, 48.4, nil)}
	assert.Equal(t, 1, d.Diff(desired, remote).Skips)

	// A real move is.
	desired = []assets.RemoteFeature{feature("AST-1", -123.5001, 48.4, nil)}
	assert.Equal(t, 1, d.Diff(desired, remote).Updates)
}

func TestValueEqualAcrossJSONRoundTrip(t *testing.T) {
	d := New()

	// Extraction yields int64 from the driver; the remote echoes float64.
	desired := []assets.RemoteFeature{feature("AST-1", -123.5, 48.4, map[string]any{"Campsite Number": int64(12), "Description": nil})}
	remote := map[string]assets.RemoteFeature{
		"AST-1": feature("AST-1", -123.5, 48.4, map[string]any{"Campsite Number": float64(12), "Description": ""}),
	}

	cs := d.Diff(desired, remote)
	assert.Equal(t, 1, cs.Skips, "driver/JSON type differences must not register as changes")
}

func TestPending(t *testing.T) {
	d := New()
	desired := []assets.RemoteFeature{
		feature("AST-1", -123.5, 48.4, nil),
		feature("AST-2", -123.6, 48.5, nil),
	}
	remote := map[string]assets.RemoteFeature{"AST-1": desired[0]}

	cs := d.Diff(desired, remote)
	pending := cs.Pending()
	assert.Len(t, pending, 1)
	assert.Equal(t, "AST-2", pending[0].RecordID)
	assert.NotNil(t, pending[0].Payload)
}
