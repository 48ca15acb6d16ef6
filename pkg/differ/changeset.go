package differ

import (
	"fmt"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
)

// Changeset is the full set of pending operations for one run, sorted by
// record ID.
type Changeset struct {
	Operations []assets.SyncOperation

	Creates int
	Updates int
	Skips   int
}

// HasChanges returns true if any operation requires a network call.
func (c *Changeset) HasChanges() bool {
	return c.Creates > 0 || c.Updates > 0
}

// Pending returns the operations that require a network call, preserving
// the deterministic order.
func (c *Changeset) Pending() []assets.SyncOperation {
	pending := make([]assets.SyncOperation, 0, c.Creates+c.Updates)
	for _, op := range c.Operations {
		if op.Kind != assets.OperationSkip {
			pending = append(pending, op)
		}
	}
	return pending
}

// Summary returns a human-readable summary of the changeset.
func (c *Changeset) Summary() string {
	if !c.HasChanges() {
		return fmt.Sprintf("No changes detected (%d up to date)", c.Skips)
	}
	return fmt.Sprintf("%d to create, %d to update, %d up to date", c.Creates, c.Updates, c.Skips)
}
