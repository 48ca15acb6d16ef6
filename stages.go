package assetsync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bcgov/bcparks-asset-sync/internal/report"
	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// outcome is the per-record result of the normalize and validate stages.
type outcome struct {
	record  *assets.AssetRecord
	point   assets.NormalizedPoint
	verdict assets.BoundaryVerdict

	// skipReason is non-empty when the record is excluded from
	// publishing. err carries the underlying cause when there is one.
	skipReason string
	err        error
}

// published reports whether the record proceeds to the publish stage.
func (o *outcome) published() bool { return o.skipReason == "" }

// normalizeAndValidate fans the records out over a bounded worker pool.
// Each worker derives the canonical point, checks the sanity window, and
// classifies the point against the boundary. Results are collected and
// re-sorted by record ID so output order never depends on scheduling.
func (p *pipeline) normalizeAndValidate(ctx context.Context, records []*assets.AssetRecord) []outcome {
	workers := p.config.workers
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *assets.AssetRecord)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- p.process(rec)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range records {
			select {
			case jobs <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]outcome, 0, len(records))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].record.ID < outcomes[j].record.ID
	})
	return outcomes
}

// process runs one record through normalization and validation.
func (p *pipeline) process(rec *assets.AssetRecord) outcome {
	o := outcome{record: rec}

	point, err := p.normalizer.Normalize(rec)
	if err != nil {
		if errors.IsDegenerateGeometry(err) {
			o.skipReason = "degenerate geometry"
		} else {
			o.skipReason = "normalization failed"
		}
		o.err = err
		return o
	}
	o.point = point

	// Every normalized point gets a boundary verdict, even when the
	// sanity window already rules it out of publishing: far-out points
	// are exactly what the QA report exists to show.
	if p.validator != nil {
		o.verdict = p.validator.Check(point)
	} else {
		o.verdict = assets.BoundaryVerdict{RecordID: rec.ID, Inside: true}
	}

	if !p.window.Contains(point) {
		o.skipReason = fmt.Sprintf("coordinates outside sanity window (%.5f, %.5f)",
			point.Latitude, point.Longitude)
		return o
	}

	if !o.verdict.Inside && o.verdict.DistanceKM > p.noiseThreshold() {
		o.skipReason = fmt.Sprintf("outside boundary by %.2f km", o.verdict.DistanceKM)
	}

	return o
}

// noiseThreshold returns the configured boundary noise cutoff.
func (p *pipeline) noiseThreshold() float64 {
	if p.config.noiseKM != 0 {
		return p.config.noiseKM
	}
	return report.DefaultNoiseThresholdKM
}

// logOutcomes emits one debug line per skipped record.
func logOutcomes(ctx context.Context, outcomes []outcome) {
	log := logging.Ctx(ctx)
	for _, o := range outcomes {
		if o.published() {
			continue
		}
		log.Debug().
			Str("record", o.record.ID).
			Str("table", o.record.Table).
			Str("reason", o.skipReason).
			Msg("Record excluded from publishing")
	}
}
