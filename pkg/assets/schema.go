package assets

import (
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// Schema describes which asset categories are published and how raw
// column names map to the display labels the feature service expects.
// The zero value is unusable; start from DefaultSchema or LoadSchema.
type Schema struct {
	// Categories is the allowlist of published asset classifications.
	Categories []string `yaml:"categories"`

	// LineTables lists tables whose geometry is linear, requiring a
	// centroid before reprojection (trails, roads).
	LineTables []string `yaml:"line_tables"`

	// ExcludeTables lists tables in the assets schema that are not
	// asset data (e.g. qgis_projects).
	ExcludeTables []string `yaml:"exclude_tables"`

	// Labels maps raw column names to the display labels used in
	// published attributes and QA reports.
	Labels map[string]string `yaml:"labels"`
}

// DefaultSchema returns the published schema: the standard category
// allowlist and column labels.
func DefaultSchema() *Schema {
	return &Schema{
		Categories: []string{
			"Grounds",
			"Furniture and Amenities",
			"Signs",
			"Water Service",
			"Transportation",
			"Stormwater",
			"Bridges",
			"Structures",
			"Trails",
			"Buildings",
			"Electrical Telcomm Service",
			"Wastewater Service",
			"Water Management",
			"Fuel Storage",
			"Tools",
		},
		LineTables:    []string{"trails", "roads"},
		ExcludeTables: []string{"qgis_projects"},
		Labels: map[string]string{
			"assetid":          "Asset ID",
			"gisid":            "GIS ID",
			"park":             "Park",
			"park_subarea":     "Park Subarea",
			"asset_category":   "Category - Classification",
			"asset_type":       "Segment - Sub Classification",
			"description":      "Description",
			"campsite_number":  "Campsite Number",
			"name":             "Name",
			"accessible":       "Is Asset Accessible",
			"route_accessible": "Is the Route to the Asset Accessible",
			"gis_latitude":     "GIS Latitude",
			"gis_longitude":    "GIS Longitude",
		},
	}
}

// LoadSchema reads a schema overlay from a YAML file. Fields present in
// the file replace the defaults; absent fields keep them.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var overlay Schema
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, &errors.ConfigError{Component: "schema", Message: "invalid schema file " + path, Err: err}
	}

	schema := DefaultSchema()
	if len(overlay.Categories) > 0 {
		schema.Categories = overlay.Categories
	}
	if len(overlay.LineTables) > 0 {
		schema.LineTables = overlay.LineTables
	}
	if len(overlay.ExcludeTables) > 0 {
		schema.ExcludeTables = overlay.ExcludeTables
	}
	if len(overlay.Labels) > 0 {
		schema.Labels = overlay.Labels
	}
	return schema, nil
}

// PublishesCategory reports whether records of the given classification
// are part of the published set.
func (s *Schema) PublishesCategory(category string) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// IsLineTable reports whether the table stores linear geometry.
func (s *Schema) IsLineTable(table string) bool {
	for _, t := range s.LineTables {
		if t == table {
			return true
		}
	}
	return false
}

// IsExcluded reports whether the table is not asset data.
func (s *Schema) IsExcluded(table string) bool {
	for _, t := range s.ExcludeTables {
		if t == table {
			return true
		}
	}
	return false
}

// Label returns the display label for a raw column name, falling back to
// the raw name for columns without a mapping.
func (s *Schema) Label(column string) string {
	if label, ok := s.Labels[column]; ok {
		return label
	}
	return column
}

// LabelColumns returns the mapped raw column names in a stable order.
func (s *Schema) LabelColumns() []string {
	cols := make([]string, 0, len(s.Labels))
	for col := range s.Labels {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
