package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

var asOf = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func sampleEntries() []Entry {
	return []Entry{
		{RecordID: "A-2", GISID: "G-2", Category: "Signs", Table: "signs", Latitude: 49.1, Longitude: -116.2, DistanceKM: 3.4},
		{RecordID: "A-1", GISID: "G-1", Category: "Trails", Table: "trails", Latitude: 48.2, Longitude: -123.9, DistanceKM: 1.2},
		{RecordID: "A-3", GISID: "G-3", Category: "Signs", Table: "signs", Latitude: 59.9, Longitude: -133.0, DistanceKM: 12.75},
	}
}

func render(t *testing.T, g *Generator, entries []Entry) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, entries, asOf))
	return buf.String()
}

func TestRenderIncludesEntriesAndDate(t *testing.T) {
	g := NewGenerator(Config{})
	html := render(t, g, sampleEntries())

	assert.Contains(t, html, "as of 2026-03-14")
	assert.Contains(t, html, "A-1")
	assert.Contains(t, html, "G-2")
	assert.Contains(t, html, "12.75")
	assert.Contains(t, html, "zoomTo(")
	assert.Contains(t, html, "leaflet")
}

func TestRenderSortsByRecordID(t *testing.T) {
	g := NewGenerator(Config{})
	html := render(t, g, sampleEntries())

	i1 := strings.Index(html, "<td>A-1</td>")
	i2 := strings.Index(html, "<td>A-2</td>")
	i3 := strings.Index(html, "<td>A-3</td>")
	require.True(t, i1 >= 0 && i2 >= 0 && i3 >= 0)
	assert.Less(t, i1, i2)
	assert.Less(t, i2, i3)
}

func TestRenderIsDeterministic(t *testing.T) {
	g := NewGenerator(Config{})
	first := render(t, g, sampleEntries())
	second := render(t, g, sampleEntries())
	assert.Equal(t, first, second)
}

// Points barely past the boundary are generalization noise, not data
// problems, and stay off the report.
func TestNoiseFilter(t *testing.T) {
	g := NewGenerator(Config{})
	entries := []Entry{
		{RecordID: "A-1", Category: "Signs", DistanceKM: 0.04},
		{RecordID: "A-2", Category: "Signs", DistanceKM: 0.05},
		{RecordID: "A-3", Category: "Signs", DistanceKM: 0.051},
	}

	kept := g.Filter(entries)
	require.Len(t, kept, 1)
	assert.Equal(t, "A-3", kept[0].RecordID)
}

func TestNoiseFilterDisabled(t *testing.T) {
	g := NewGenerator(Config{NoiseThresholdKM: -1})
	kept := g.Filter([]Entry{{RecordID: "A-1", DistanceKM: 0.001}})
	assert.Len(t, kept, 1)
}

func TestEmptyReportIsValidPage(t *testing.T) {
	g := NewGenerator(Config{})
	html := render(t, g, nil)

	assert.Contains(t, html, "No assets were flagged outside the boundary.")
	assert.Contains(t, html, "<html")
	assert.NotContains(t, html, "<tbody>")
}

func TestLegendCountsPerCategory(t *testing.T) {
	g := NewGenerator(Config{})
	html := render(t, g, sampleEntries())

	assert.Contains(t, html, "Signs (2)")
	assert.Contains(t, html, "Trails (1)")
}

func TestBoundaryOverlayIncluded(t *testing.T) {
	boundary := []byte(`{"type":"FeatureCollection","features":[]}`)
	g := NewGenerator(Config{BoundaryGeoJSON: boundary})
	html := render(t, g, sampleEntries())
	assert.Contains(t, html, "L.geoJSON(")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.html")
	g := NewGenerator(Config{Title: "Weekly QA"})

	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	require.NoError(t, g.WriteFile(ctx, path, sampleEntries(), asOf))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Weekly QA")
	tl.AssertContains(t, "QA report written")
}
