// Package report renders the QA map: a self-contained HTML page showing
// every asset whose normalized point fell outside the jurisdictional
// boundary, for manual review. The report is a derived artifact,
// regenerated from scratch every run.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// DefaultNoiseThresholdKM is the boundary noise cutoff: points outside
// the boundary by no more than this distance are treated as boundary
// generalization noise and left off the report.
const DefaultNoiseThresholdKM = 0.05

// Entry is one out-of-boundary asset on the report.
type Entry struct {
	RecordID   string
	GISID      string
	Category   string
	Table      string
	Latitude   float64
	Longitude  float64
	DistanceKM float64
}

// Config configures the report generator.
type Config struct {
	// Title is the page heading (default: "Asset Location QA").
	Title string

	// NoiseThresholdKM overrides the boundary noise cutoff. Negative
	// disables filtering; zero uses the default.
	NoiseThresholdKM float64

	// BoundaryGeoJSON, when set, is drawn as a reference overlay.
	BoundaryGeoJSON []byte
}

// Generator renders QA map reports. Output is deterministic: entries are
// sorted by record ID and the timestamp is caller-supplied.
type Generator struct {
	cfg  Config
	tmpl *template.Template
}

// NewGenerator creates a report generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.Title == "" {
		cfg.Title = "Asset Location QA"
	}
	if cfg.NoiseThresholdKM == 0 {
		cfg.NoiseThresholdKM = DefaultNoiseThresholdKM
	}
	return &Generator{
		cfg:  cfg,
		tmpl: template.Must(template.New("report").Parse(pageTemplate)),
	}
}

// categoryPalette assigns stable marker colors. Categories beyond the
// palette reuse the last color.
var categoryPalette = []string{
	"#d73027", "#4575b4", "#1a9850", "#fdae61", "#7b3294",
	"#e6ab02", "#35978f", "#c51b7d", "#8c510a", "#313695",
	"#66bd63", "#f46d43", "#762a83", "#01665e", "#b2182b",
}

// entryView is an Entry prepared for the template.
type entryView struct {
	Entry
	Color      string
	DistanceKM string
}

// legendItem is one category swatch.
type legendItem struct {
	Category string
	Color    string
	Count    int
}

// page is the template's data root.
type page struct {
	Title        string
	AsOf         string
	Entries      []entryView
	Legend       []legendItem
	BoundaryJSON template.JS
	CenterLat    float64
	CenterLon    float64
}

// Filter drops entries inside the noise threshold and returns the rest
// sorted by record ID.
func (g *Generator) Filter(entries []Entry) []Entry {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if g.cfg.NoiseThresholdKM > 0 && e.DistanceKM <= g.cfg.NoiseThresholdKM {
			continue
		}
		kept = append(kept, e)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].RecordID < kept[j].RecordID })
	return kept
}

// Render writes the report HTML for the given entries. An empty entry
// set still produces a valid page stating that nothing was flagged.
func (g *Generator) Render(w io.Writer, entries []Entry, asOf time.Time) error {
	kept := g.Filter(entries)

	colors := make(map[string]string)
	counts := make(map[string]int)
	var categories []string
	for _, e := range kept {
		if _, ok := colors[e.Category]; !ok {
			categories = append(categories, e.Category)
		}
		counts[e.Category]++
		colors[e.Category] = ""
	}
	sort.Strings(categories)
	for i, c := range categories {
		idx := i
		if idx >= len(categoryPalette) {
			idx = len(categoryPalette) - 1
		}
		colors[c] = categoryPalette[idx]
	}

	p := page{
		Title:     g.cfg.Title,
		AsOf:      asOf.Format("2006-01-02"),
		CenterLat: 54.5,
		CenterLon: -125.5,
	}
	for _, e := range kept {
		p.Entries = append(p.Entries, entryView{
			Entry:      e,
			Color:      colors[e.Category],
			DistanceKM: fmt.Sprintf("%.2f", e.DistanceKM),
		})
	}
	for _, c := range categories {
		p.Legend = append(p.Legend, legendItem{Category: c, Color: colors[c], Count: counts[c]})
	}

	if len(g.cfg.BoundaryGeoJSON) > 0 && json.Valid(g.cfg.BoundaryGeoJSON) {
		p.BoundaryJSON = template.JS(g.cfg.BoundaryGeoJSON)
	}

	return g.tmpl.Execute(w, p)
}

// WriteFile renders the report to a file.
func (g *Generator) WriteFile(ctx context.Context, path string, entries []Entry, asOf time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := g.Render(f, entries, asOf); err != nil {
		return errors.WrapIO("write", path, err)
	}
	logging.Ctx(ctx).Info().
		Str("path", path).
		Int("flagged", len(g.Filter(entries))).
		Msg("QA report written")
	return nil
}
