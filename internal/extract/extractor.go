// Package extract reads asset records from the operational Postgres
// store. Extraction is read-only: records are a snapshot per pipeline
// run, never written back.
package extract

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// Config holds the operational store connection parameters, injected at
// run start rather than read from process-wide state.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// DSN renders the pgx connection string. Credentials are URL-escaped so
// passwords with reserved characters survive parsing.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	return u.String()
}

// Connect opens and verifies a connection pool. The pool is a scoped
// resource: the caller must Close it on every exit path.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, errors.WrapConnection("postgres", cfg.Host, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapConnection("postgres", cfg.Host, err)
	}
	logging.Ctx(ctx).Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Postgres connection established")
	return pool, nil
}

// Querier is the read surface the extractor needs. *pgxpool.Pool
// satisfies it; tests substitute a fake.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Extractor produces the working set of asset records for one run.
type Extractor struct {
	db     Querier
	schema *assets.Schema
}

// New creates an Extractor over the given store connection.
func New(db Querier, schema *assets.Schema) *Extractor {
	if schema == nil {
		schema = assets.DefaultSchema()
	}
	return &Extractor{db: db, schema: schema}
}

// Tables discovers the asset tables, excluding non-asset tables.
func (e *Extractor) Tables(ctx context.Context) ([]string, error) {
	rows, err := e.db.Query(ctx, tablesQuery)
	if err != nil {
		return nil, errors.WrapQuery("information_schema.tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapQuery("information_schema.tables", err)
		}
		if !e.schema.IsExcluded(name) {
			tables = append(tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapQuery("information_schema.tables", err)
	}
	return tables, nil
}

// Extract returns a lazy, finite, non-restartable iterator over the
// records of the given tables (all discovered tables when none are
// named). Zero rows is a valid, empty outcome. A malformed table filter
// is a QueryError.
func (e *Extractor) Extract(ctx context.Context, tables ...string) (*RecordIterator, error) {
	if len(tables) == 0 {
		discovered, err := e.Tables(ctx)
		if err != nil {
			return nil, err
		}
		tables = discovered
	}

	for _, table := range tables {
		if !validIdent(table) {
			return nil, &errors.QueryError{Table: table, Err: errors.New("invalid table name")}
		}
	}

	return &RecordIterator{
		ctx:    ctx,
		db:     e.db,
		schema: e.schema,
		tables: tables,
	}, nil
}

// RecordIterator walks the record set one row at a time, advancing
// through the source tables in order. It cannot be restarted; a new run
// extracts from scratch.
type RecordIterator struct {
	ctx    context.Context
	db     Querier
	schema *assets.Schema

	tables []string
	index  int // next table to open

	rows  pgx.Rows
	table string
	cols  []string

	record *assets.AssetRecord
	err    error
	closed bool
}

// Next advances to the next published record. It returns false when the
// set is exhausted or an error occurred; check Err afterwards.
func (it *RecordIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}

	for {
		if it.rows == nil {
			if it.index >= len(it.tables) {
				return false
			}
			if !it.openNext() {
				return false
			}
		}

		for it.rows.Next() {
			rec, err := it.scan()
			if err != nil {
				it.err = err
				it.Close()
				return false
			}
			// Only published categories flow downstream. Line tables
			// carry their own classification per row as well.
			if rec.Category != "" && !it.schema.PublishesCategory(rec.Category) {
				continue
			}
			it.record = rec
			return true
		}

		if err := it.rows.Err(); err != nil {
			it.err = errors.WrapQuery(it.table, err)
			it.Close()
			return false
		}
		it.rows.Close()
		it.rows = nil
	}
}

// Record returns the current record. Valid only after Next returned true.
func (it *RecordIterator) Record() *assets.AssetRecord {
	return it.record
}

// Err returns the error that stopped iteration, if any.
func (it *RecordIterator) Err() error {
	return it.err
}

// Close releases the underlying rows. Safe to call multiple times.
func (it *RecordIterator) Close() {
	if it.rows != nil {
		it.rows.Close()
		it.rows = nil
	}
	it.closed = true
}

// openNext opens the query for the next table.
func (it *RecordIterator) openNext() bool {
	table := it.tables[it.index]
	it.index++

	query := recordQuery(table, it.schema.IsLineTable(table))
	rows, err := it.db.Query(it.ctx, query)
	if err != nil {
		it.err = errors.WrapQuery(table, err)
		it.closed = true
		return false
	}

	it.rows = rows
	it.table = table
	it.cols = it.cols[:0]
	for _, fd := range rows.FieldDescriptions() {
		it.cols = append(it.cols, fd.Name)
	}
	return true
}

// scan maps the current row onto an AssetRecord. Known columns populate
// the typed fields; everything else lands in Attributes.
func (it *RecordIterator) scan() (*assets.AssetRecord, error) {
	values, err := it.rows.Values()
	if err != nil {
		return nil, errors.WrapQuery(it.table, err)
	}

	rec := &assets.AssetRecord{
		Table:      it.table,
		SRID:       assets.BCAlbersSRID,
		Attributes: make(map[string]any),
	}

	for i, col := range it.cols {
		if i >= len(values) {
			break
		}
		val := values[i]
		switch col {
		case "assetid":
			rec.ID = asString(val)
		case "gisid":
			rec.GISID = asString(val)
		case "asset_category":
			rec.Category = asString(val)
			rec.Attributes[col] = rec.Category
		case "gis_latitude":
			if f, ok := asFloat(val); ok {
				rec.Latitude = &f
			}
		case "gis_longitude":
			if f, ok := asFloat(val); ok {
				rec.Longitude = &f
			}
		case "wkb_srid":
			if f, ok := asFloat(val); ok && f != 0 {
				rec.SRID = int(f)
			}
		case "wkb_geojson":
			if s := asString(val); s != "" {
				g, err := geojson.UnmarshalGeometry([]byte(s))
				if err == nil {
					rec.Geometry = g.Geometry()
				}
				// Unparseable geometry stays nil and surfaces later
				// as a degenerate-geometry skip.
			}
		case "wkb_geometry":
			// Raw WKB is superseded by the GeoJSON projection column.
		default:
			rec.Attributes[col] = val
		}
	}

	if rec.ID == "" {
		return nil, &errors.QueryError{Table: it.table, Err: errors.New("row missing assetid")}
	}
	return rec, nil
}

// asString renders scalar driver values as strings.
func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// asFloat extracts numeric driver values.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
