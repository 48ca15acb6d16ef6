package assetsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bcgov/bcparks-asset-sync/internal/publish"
	"github.com/bcgov/bcparks-asset-sync/internal/report"
)

// RunState is the lifecycle of one pipeline run. States only move
// forward; a failed run stays FAILED.
type RunState int

// Run states, in execution order.
const (
	StateInit RunState = iota
	StateExtracting
	StateNormalizing
	StateValidating
	StatePublishing
	StateReporting
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s RunState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateExtracting:
		return "extracting"
	case StateNormalizing:
		return "normalizing"
	case StateValidating:
		return "validating"
	case StatePublishing:
		return "publishing"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SkippedRecord is one record excluded from publishing, with the reason.
type SkippedRecord struct {
	RecordID string
	Reason   string
}

// Summary is the result of one pipeline run. Every record the run saw is
// accounted for exactly once across the outcome counts.
type Summary struct {
	RunID    string
	State    RunState
	Started  time.Time
	Finished time.Time

	// Extracted is the number of records read from the store.
	Extracted int

	// Normalized is the number that yielded a canonical point.
	Normalized int

	// OutsideBoundary is the number flagged beyond the boundary (past
	// the noise threshold) and routed to the QA report.
	OutsideBoundary int

	// Created, Updated, and Unchanged are the publish outcomes.
	Created   int
	Updated   int
	Unchanged int

	// Skipped lists records excluded before publishing, with reasons
	// (degenerate geometry, out-of-window coordinates, out of boundary).
	Skipped []SkippedRecord

	// Failures lists operations the remote service rejected.
	Failures []publish.Failure

	// Flagged holds the QA report entries for this run.
	Flagged []report.Entry

	// ReportPath is where the QA report was written, empty when no
	// report was produced.
	ReportPath string
}

// Duration returns the wall-clock run time.
func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// String returns a one-line run summary.
func (s *Summary) String() string {
	return fmt.Sprintf("run %s %s: %d extracted, %d created, %d updated, %d unchanged, %d skipped, %d failed",
		s.RunID, s.State, s.Extracted, s.Created, s.Updated, s.Unchanged, len(s.Skipped), len(s.Failures))
}

// newSummary starts a summary for a new run.
func newSummary(now time.Time) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		State:   StateInit,
		Started: now,
	}
}
