package assetsync

import (
	"context"

	"github.com/bcgov/bcparks-asset-sync/internal/extract"
	"github.com/bcgov/bcparks-asset-sync/internal/publish"
	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/differ"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// Sync runs the full pipeline against the remote feature service.
func (p *pipeline) Sync(ctx context.Context) (*Summary, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Start the run
	summary := newSummary(p.config.now())
	ctx = p.runContext(ctx, summary.RunID)
	log := logging.Ctx(ctx)
	log.Info().Msg("Starting sync run")

	fail := func(err error) (*Summary, error) {
		summary.State = StateFailed
		summary.Finished = p.config.now()
		log.Error().Err(err).Str("state", summary.State.String()).Msg("Run failed")
		return summary, err
	}

	// Step 2: Connect to the operational store
	summary.State = StateExtracting
	db, closeStore, err := p.store(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	// Step 3: Extract the working record set
	records, err := p.extractAll(ctx, db)
	if err != nil {
		return fail(err)
	}
	summary.Extracted = len(records)
	log.Info().Int("records", len(records)).Msg("Extraction complete")

	// Step 4: Normalize and validate across the worker pool
	summary.State = StateNormalizing
	outcomes := p.normalizeAndValidate(ctx, records)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	summary.State = StateValidating
	p.collectOutcomes(summary, outcomes)
	logOutcomes(ctx, outcomes)

	// Step 5: Build the desired feature set
	desired := make([]assets.RemoteFeature, 0, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		if o.published() {
			desired = append(desired, assets.BuildFeature(o.record, o.point, p.schema))
		}
	}

	// Step 6: Connect to the remote feature service
	summary.State = StatePublishing
	remote, closeRemote, err := p.remote(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeRemote()

	publisher := publish.NewPublisher(remote, publish.Config{
		LayerURL: p.config.layerURL,
		IDLabel:  p.schema.Label("assetid"),
	})

	// Step 7: Fetch the remote feature set and diff
	remoteFeatures, err := publisher.FetchRemote(ctx)
	if err != nil {
		return fail(err)
	}
	changeset := differ.New().Diff(desired, remoteFeatures)
	log.Info().Msg(changeset.Summary())

	// Step 8: Apply the changeset unless this is a dry run
	if p.config.dryRun {
		log.Info().Msg("Dry run, changeset not applied")
		summary.Unchanged = changeset.Skips
	} else {
		result, applyErr := publisher.Apply(ctx, changeset)
		summary.Created = result.Created
		summary.Updated = result.Updated
		summary.Unchanged = result.Skipped
		summary.Failures = result.Failures
		if applyErr != nil {
			return fail(applyErr)
		}
	}

	// Step 9: Render the QA report
	if p.config.reportPath != "" {
		summary.State = StateReporting
		if err := p.writeReport(ctx, summary); err != nil {
			return fail(err)
		}
		summary.ReportPath = p.config.reportPath
	}

	// Step 10: Finish
	summary.State = StateDone
	summary.Finished = p.config.now()
	log.Info().
		Dur("duration", summary.Duration()).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("skipped", len(summary.Skipped)).
		Int("failed", len(summary.Failures)).
		Msg("Sync run complete")
	return summary, nil
}

// runContext attaches the run logger and run ID to the context.
func (p *pipeline) runContext(ctx context.Context, runID string) context.Context {
	if p.config.logger != nil {
		ctx = logging.WithLogger(ctx, p.config.logger)
	}
	return logging.WithRun(ctx, runID)
}

// extractAll drains the record iterator into the run's working set.
func (p *pipeline) extractAll(ctx context.Context, db extract.Querier) ([]*assets.AssetRecord, error) {
	extractor := extract.New(db, p.schema)
	it, err := extractor.Extract(ctx, p.config.tables...)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var records []*assets.AssetRecord
	for it.Next() {
		records = append(records, it.Record())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// collectOutcomes folds per-record outcomes into the summary.
func (p *pipeline) collectOutcomes(summary *Summary, outcomes []outcome) {
	for i := range outcomes {
		o := &outcomes[i]
		if o.err == nil && o.point.RecordID != "" {
			summary.Normalized++
		}
		if o.published() {
			continue
		}
		summary.Skipped = append(summary.Skipped, SkippedRecord{
			RecordID: o.record.ID,
			Reason:   o.skipReason,
		})
		if !o.verdict.Inside && o.verdict.DistanceKM > p.noiseThreshold() {
			summary.OutsideBoundary++
			summary.Flagged = append(summary.Flagged, flaggedEntry(o))
		}
	}
}
