package extract

import (
	"fmt"
	"regexp"
)

// tablesQuery lists the asset tables in the operational store.
const tablesQuery = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'assets'
	ORDER BY table_name`

// identPattern matches safe SQL identifiers. Table names come from
// information_schema or operator filters, but they are interpolated into
// SQL, so they are validated regardless.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validIdent reports whether the name is a safe identifier.
func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

// recordQuery builds the extraction query for one table. This is the
// canonical extraction contract: the store reprojects to WGS84 and
// extracts X/Y as separate columns, taking the centroid first for line
// tables. The raw geometry and its SRID ride along so the normalizer can
// reproduce the computation in-process when needed.
func recordQuery(table string, line bool) string {
	if line {
		return fmt.Sprintf(`
	SELECT
		*,
		ST_Y(ST_Transform(ST_Centroid(wkb_geometry), 4326)) AS gis_latitude,
		ST_X(ST_Transform(ST_Centroid(wkb_geometry), 4326)) AS gis_longitude,
		ST_AsGeoJSON(wkb_geometry) AS wkb_geojson,
		ST_SRID(wkb_geometry) AS wkb_srid
	FROM
		assets.%s`, table)
	}
	return fmt.Sprintf(`
	SELECT
		*,
		ST_Y(ST_Transform(wkb_geometry, 4326)) AS gis_latitude,
		ST_X(ST_Transform(wkb_geometry, 4326)) AS gis_longitude,
		ST_AsGeoJSON(wkb_geometry) AS wkb_geojson,
		ST_SRID(wkb_geometry) AS wkb_srid
	FROM
		assets.%s`, table)
}
