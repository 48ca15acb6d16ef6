package assetsync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/bcgov/bcparks-asset-sync/internal/extract"
	"github.com/bcgov/bcparks-asset-sync/internal/publish"
	"github.com/bcgov/bcparks-asset-sync/internal/transport"
	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/boundary"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/geometry"
)

// Option is a function that configures a Pipeline instance.
type Option func(*config) error

// config holds the resolved pipeline configuration.
type config struct {
	storeConfig extract.Config
	db          extract.Querier

	remoteConfig transport.Config
	remote       publish.Poster
	layerURL     string

	schema     *assets.Schema
	schemaPath string

	boundaryPath string
	validator    *boundary.Validator
	window       *geometry.Window

	tables []string

	workers int
	dryRun  bool

	reportPath  string
	reportTitle string
	noiseKM     float64

	logger *zerolog.Logger
	now    func() time.Time
}

// defaultConfig returns the baseline configuration.
func defaultConfig() *config {
	return &config{
		workers: 4,
		now:     time.Now,
	}
}

// WithStore configures the operational store connection.
func WithStore(cfg extract.Config) Option {
	return func(c *config) error {
		c.storeConfig = cfg
		return nil
	}
}

// WithQuerier injects a record source directly, bypassing the Postgres
// connection. Used by tests.
func WithQuerier(db extract.Querier) Option {
	return func(c *config) error {
		c.db = db
		return nil
	}
}

// WithRemote configures the feature service connection and target layer.
func WithRemote(cfg transport.Config, layerURL string) Option {
	return func(c *config) error {
		if layerURL == "" {
			return &errors.ConfigError{Component: "remote", Message: "layer URL is required"}
		}
		c.remoteConfig = cfg
		c.layerURL = layerURL
		return nil
	}
}

// WithPoster injects a publish client directly, bypassing transport
// authentication. Used by tests.
func WithPoster(remote publish.Poster, layerURL string) Option {
	return func(c *config) error {
		c.remote = remote
		c.layerURL = layerURL
		return nil
	}
}

// WithSchema sets the published schema explicitly.
func WithSchema(schema *assets.Schema) Option {
	return func(c *config) error {
		c.schema = schema
		return nil
	}
}

// WithSchemaPath loads a schema overlay from a YAML file.
func WithSchemaPath(path string) Option {
	return func(c *config) error {
		c.schemaPath = path
		return nil
	}
}

// WithBoundaryPath loads the jurisdictional boundary from a GeoJSON file.
func WithBoundaryPath(path string) Option {
	return func(c *config) error {
		c.boundaryPath = path
		return nil
	}
}

// WithBoundary sets the boundary validator explicitly.
func WithBoundary(v *boundary.Validator) Option {
	return func(c *config) error {
		c.validator = v
		return nil
	}
}

// WithWindow overrides the coordinate sanity window.
func WithWindow(w geometry.Window) Option {
	return func(c *config) error {
		c.window = &w
		return nil
	}
}

// WithTables restricts a run to the named source tables.
func WithTables(tables ...string) Option {
	return func(c *config) error {
		c.tables = tables
		return nil
	}
}

// WithMaxWorkers bounds the normalize/validate worker pool.
func WithMaxWorkers(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return &errors.ConfigError{Component: "workers", Message: "worker count must be positive"}
		}
		c.workers = n
		return nil
	}
}

// WithDryRun computes the changeset without applying it.
func WithDryRun(enabled bool) Option {
	return func(c *config) error {
		c.dryRun = enabled
		return nil
	}
}

// WithReport configures the QA report output path.
func WithReport(path string) Option {
	return func(c *config) error {
		c.reportPath = path
		return nil
	}
}

// WithReportTitle overrides the QA report heading.
func WithReportTitle(title string) Option {
	return func(c *config) error {
		c.reportTitle = title
		return nil
	}
}

// WithNoiseThreshold overrides the boundary noise cutoff in kilometres.
func WithNoiseThreshold(km float64) Option {
	return func(c *config) error {
		c.noiseKM = km
		return nil
	}
}

// WithLogger sets the run logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithClock overrides the time source. Used by tests for deterministic
// report timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		c.now = now
		return nil
	}
}
