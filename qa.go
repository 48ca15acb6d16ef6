package assetsync

import (
	"context"
	"os"

	"github.com/bcgov/bcparks-asset-sync/internal/report"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// QA runs extraction, normalization, and validation, then renders the QA
// map. The remote feature service is never contacted.
func (p *pipeline) QA(ctx context.Context) (*Summary, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Start the run
	summary := newSummary(p.config.now())
	ctx = p.runContext(ctx, summary.RunID)
	log := logging.Ctx(ctx)
	log.Info().Msg("Starting QA run")

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

	// Step 4: Normalize and validate
	summary.State = StateNormalizing
	outcomes := p.normalizeAndValidate(ctx, records)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	summary.State = StateValidating
	p.collectOutcomes(summary, outcomes)
	logOutcomes(ctx, outcomes)

	// Step 5: Render the QA report
	if p.config.reportPath != "" {
		summary.State = StateReporting
		if err := p.writeReport(ctx, summary); err != nil {
			return fail(err)
		}
		summary.ReportPath = p.config.reportPath
	}

	// Step 6: Finish
	summary.State = StateDone
	summary.Finished = p.config.now()
	log.Info().
		Dur("duration", summary.Duration()).
		Int("extracted", summary.Extracted).
		Int("flagged", len(summary.Flagged)).
		Msg("QA run complete")
	return summary, nil
}

// flaggedEntry converts one out-of-boundary outcome to a report entry.
func flaggedEntry(o *outcome) report.Entry {
	return report.Entry{
		RecordID:   o.record.ID,
		GISID:      o.record.GISID,
		Category:   o.record.Category,
		Table:      o.record.Table,
		Latitude:   o.point.Latitude,
		Longitude:  o.point.Longitude,
		DistanceKM: o.verdict.DistanceKM,
	}
}

// writeReport renders the QA map for the run's flagged records.
func (p *pipeline) writeReport(ctx context.Context, summary *Summary) error {
	cfg := report.Config{
		Title:            p.config.reportTitle,
		NoiseThresholdKM: p.config.noiseKM,
	}
	if p.config.boundaryPath != "" {
		data, err := os.ReadFile(p.config.boundaryPath)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("path", p.config.boundaryPath).
				Msg("Boundary overlay unavailable, report rendered without it")
		} else {
			cfg.BoundaryGeoJSON = data
		}
	}

	return report.NewGenerator(cfg).WriteFile(ctx, p.config.reportPath, summary.Flagged, summary.Started)
}
