package extract

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// fakeRows implements pgx.Rows over in-memory data.
type fakeRows struct {
	cols   []string
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Values() ([]any, error)        { return r.rows[r.pos-1], nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	vals := r.rows[r.pos-1]
	for i, d := range dest {
		if i >= len(vals) {
			break
		}
		if s, ok := d.(*string); ok {
			*s = vals[i].(string)
		}
	}
	return nil
}

// fakeDB scripts query results by substring match on the SQL.
type fakeDB struct {
	results map[string]*fakeRows
	queries []string
	failOn  string
}

func (db *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	db.queries = append(db.queries, sql)
	if db.failOn != "" && strings.Contains(sql, db.failOn) {
		return nil, errors.New("relation does not exist")
	}
	for key, rows := range db.results {
		if strings.Contains(sql, key) {
			return rows, nil
		}
	}
	return &fakeRows{}, nil
}

func assetColumns() []string {
	return []string{"assetid", "gisid", "asset_category", "asset_name", "wkb_geojson", "wkb_srid", "gis_latitude", "gis_longitude"}
}

func TestDSNEscapesCredentials(t *testing.T) {
	cfg := Config{
		Host:     "db.example",
		Port:     "5432",
		Database: "assets",
		User:     "svc/ro",
		Password: "p@ss:w/rd",
	}

	dsn := cfg.DSN()
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	assert.Equal(t, "db.example:5432", u.Host)
	assert.Equal(t, "/assets", u.Path)
	assert.Equal(t, "svc/ro", u.User.Username())
	password, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss:w/rd", password, "reserved characters must round-trip")
}

func TestTablesExcludesNonAssetTables(t *testing.T) {
	db := &fakeDB{results: map[string]*fakeRows{
		"information_schema": {
			cols: []string{"table_name"},
			rows: [][]any{{"grounds"}, {"qgis_projects"}, {"trails"}},
		},
	}}
	e := New(db, nil)

	tables, err := e.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"grounds", "trails"}, tables)
}

func TestExtractMapsRowsToRecords(t *testing.T) {
	db := &fakeDB{results: map[string]*fakeRows{
		"assets.grounds": {
			cols: assetColumns(),
			rows: [][]any{{
				"A-100", "G-1", "Grounds", "Picnic Shelter",
				`{"type":"Point","coordinates":[1200000,450000]}`, int32(3005),
				48.5, -123.4,
			}},
		},
	}}
	e := New(db, nil)

	it, err := e.Extract(context.Background(), "grounds")
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	rec := it.Record()
	assert.Equal(t, "A-100", rec.ID)
	assert.Equal(t, "G-1", rec.GISID)
	assert.Equal(t, "Grounds", rec.Category)
	assert.Equal(t, "grounds", rec.Table)
	assert.Equal(t, 3005, rec.SRID)
	require.NotNil(t, rec.Latitude)
	assert.InDelta(t, 48.5, *rec.Latitude, 1e-9)
	require.NotNil(t, rec.Longitude)
	assert.InDelta(t, -123.4, *rec.Longitude, 1e-9)
	assert.Equal(t, orb.Point{1200000, 450000}, rec.Geometry)
	assert.Equal(t, "Picnic Shelter", rec.Attributes["asset_name"])
	assert.NotContains(t, rec.Attributes, "wkb_geojson")

	assert.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestExtractFiltersUnpublishedCategories(t *testing.T) {
	db := &fakeDB{results: map[string]*fakeRows{
		"assets.grounds": {
			cols: []string{"assetid", "asset_category"},
			rows: [][]any{
				{"A-1", "Grounds"},
				{"A-2", "Decommissioned"},
				{"A-3", "Trails"},
			},
		},
	}}
	e := New(db, nil)

	it, err := e.Extract(context.Background(), "grounds")
	require.NoError(t, err)
	defer it.Close()

	var ids []string
	for it.Next() {
		ids = append(ids, it.Record().ID)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"A-1", "A-3"}, ids)
}

func TestExtractSpansMultipleTables(t *testing.T) {
	db := &fakeDB{results: map[string]*fakeRows{
		"assets.grounds": {
			cols: []string{"assetid"},
			rows: [][]any{{"A-1"}},
		},
		"assets.trails": {
			cols: []string{"assetid"},
			rows: [][]any{{"T-1"}, {"T-2"}},
		},
	}}
	e := New(db, nil)

	it, err := e.Extract(context.Background(), "grounds", "trails")
	require.NoError(t, err)
	defer it.Close()

	var ids []string
	for it.Next() {
		ids = append(ids, it.Record().ID)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"A-1", "T-1", "T-2"}, ids)
}

func TestExtractEmptyTablesIsValid(t *testing.T) {
	db := &fakeDB{results: map[string]*fakeRows{
		"assets.grounds": {cols: []string{"assetid"}},
	}}
	e := New(db, nil)

	it, err := e.Extract(context.Background(), "grounds")
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestExtractRejectsMalformedTableName(t *testing.T) {
	e := New(&fakeDB{}, nil)

	_, err := e.Extract(context.Background(), "grounds; DROP TABLE grounds")
	require.Error(t, err)
	assert.True(t, errors.IsQuery(err))
}

func TestExtractSurfacesQueryFailure(t *testing.T) {
	db := &fakeDB{failOn: "assets.missing"}
	e := New(db, nil)

	it, err := e.Extract(context.Background(), "missing")
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.True(t, errors.IsQuery(it.Err()))
}

func TestLineTablesCentroidBeforeTransform(t *testing.T) {
	schema := assets.DefaultSchema()
	q := recordQuery("trails", schema.IsLineTable("trails"))
	assert.Contains(t, q, "ST_Transform(ST_Centroid(wkb_geometry), 4326)")

	q = recordQuery("grounds", schema.IsLineTable("grounds"))
	assert.Contains(t, q, "ST_Transform(wkb_geometry, 4326)")
	assert.NotContains(t, q, "ST_Centroid")
}

func TestRowMissingIDStopsIteration(t *testing.T) {
	db := &fakeDB{results: map[string]*fakeRows{
		"assets.grounds": {
			cols: []string{"assetid", "asset_name"},
			rows: [][]any{{"", "Nameless"}},
		},
	}}
	e := New(db, nil)

	it, err := e.Extract(context.Background(), "grounds")
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Next())
	assert.True(t, errors.IsQuery(it.Err()))
}
