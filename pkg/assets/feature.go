package assets

import (
	"time"

	"github.com/paulmach/orb"
)

// BuildFeature assembles the publishable feature for a record: the
// normalized point plus the schema-mapped attribute set. Only mapped
// columns are published; nulls are formatted as empty strings so the
// feature service renders them consistently.
func BuildFeature(rec *AssetRecord, pt NormalizedPoint, schema *Schema) RemoteFeature {
	attrs := make(map[string]any, len(schema.Labels))

	for _, col := range schema.LabelColumns() {
		label := schema.Label(col)
		switch col {
		case "assetid":
			attrs[label] = rec.ID
		case "gisid":
			attrs[label] = rec.GISID
		case "asset_category":
			attrs[label] = rec.Category
		case "gis_latitude":
			attrs[label] = pt.Latitude
		case "gis_longitude":
			attrs[label] = pt.Longitude
		default:
			attrs[label] = cleanValue(rec.Attributes[col])
		}
	}

	return RemoteFeature{
		ID:         rec.ID,
		Point:      orb.Point{pt.Longitude, pt.Latitude},
		Attributes: attrs,
	}
}

// cleanValue normalizes attribute values for publishing: nils become
// empty strings and timestamps are ISO formatted.
func cleanValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if val == "None" {
			return ""
		}
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}
