// Package assetsync implements the asset location pipeline: extract
// asset records from the operational store, normalize their geometries
// to canonical WGS84 points, validate the points against the
// jurisdictional boundary, publish the resulting changeset to the remote
// feature service, and render a QA map of anything that looks wrong.
//
// The operational store is the source of truth; the remote layer is a
// mirror that converges toward it one run at a time. Runs are
// independent: nothing carries over except what is re-read at run start.
package assetsync

import (
	"context"
	"fmt"

	"github.com/bcgov/bcparks-asset-sync/internal/extract"
	"github.com/bcgov/bcparks-asset-sync/internal/publish"
	"github.com/bcgov/bcparks-asset-sync/internal/transport"
	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/boundary"
	"github.com/bcgov/bcparks-asset-sync/pkg/geometry"
)

// Pipeline runs the asset sync stages.
type Pipeline interface {
	// Sync runs the full pipeline: extract, normalize, validate,
	// publish, report. The summary is returned even on failure, with
	// State FAILED and the progress made so far.
	Sync(ctx context.Context) (*Summary, error)

	// QA runs extraction, normalization, and validation only, and
	// renders the QA report without touching the remote service.
	QA(ctx context.Context) (*Summary, error)
}

// pipeline is the internal implementation of the Pipeline interface.
type pipeline struct {
	config *config

	schema     *assets.Schema
	normalizer *geometry.Normalizer
	window     geometry.Window
	validator  *boundary.Validator
}

// New creates a Pipeline with the given options.
func New(opts ...Option) (Pipeline, error) {
	p := &pipeline{
		config:     defaultConfig(),
		normalizer: geometry.NewNormalizer(),
		window:     geometry.DefaultWindow(),
	}

	if err := p.options(opts...); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}

	// Schema: explicit > file > defaults.
	switch {
	case p.config.schema != nil:
		p.schema = p.config.schema
	case p.config.schemaPath != "":
		schema, err := assets.LoadSchema(p.config.schemaPath)
		if err != nil {
			return nil, err
		}
		p.schema = schema
	default:
		p.schema = assets.DefaultSchema()
	}

	if p.config.window != nil {
		p.window = *p.config.window
	}

	// Boundary: explicit validator > file.
	switch {
	case p.config.validator != nil:
		p.validator = p.config.validator
	case p.config.boundaryPath != "":
		v, err := boundary.Load(p.config.boundaryPath)
		if err != nil {
			return nil, err
		}
		p.validator = v
	}

	return p, nil
}

// options applies the option functions in order.
func (p *pipeline) options(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(p.config); err != nil {
			return err
		}
	}
	return nil
}

// store returns the record source, connecting to Postgres when no store
// was injected. The returned closer must run on every exit path.
func (p *pipeline) store(ctx context.Context) (extract.Querier, func(), error) {
	if p.config.db != nil {
		return p.config.db, func() {}, nil
	}
	pool, err := extract.Connect(ctx, p.config.storeConfig)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// remote returns the publish client, authenticating a transport session
// when no client was injected.
func (p *pipeline) remote(ctx context.Context) (publish.Poster, func(), error) {
	if p.config.remote != nil {
		return p.config.remote, func() {}, nil
	}
	client := transport.NewClient(p.config.remoteConfig)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}
