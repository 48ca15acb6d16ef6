package report

// pageTemplate is the self-contained QA map page. Leaflet comes from the
// CDN; everything else is inlined so the file can be opened directly or
// attached to a review ticket.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  body { margin: 0; font-family: system-ui, sans-serif; }
  header { padding: 0.6rem 1rem; background: #234075; color: #fff; }
  header h1 { margin: 0; font-size: 1.1rem; }
  header p { margin: 0.2rem 0 0; font-size: 0.8rem; color: #d9e1f2; }
  #map { height: 62vh; }
  .legend { background: #fff; padding: 0.5rem 0.7rem; border-radius: 4px;
            box-shadow: 0 1px 4px rgba(0,0,0,0.3); font-size: 0.8rem; }
  .legend i { display: inline-block; width: 10px; height: 10px;
              border-radius: 50%; margin-right: 6px; }
  .table-wrap { height: calc(38vh - 3.4rem); overflow-y: auto; }
  table { width: 100%; border-collapse: collapse; font-size: 0.8rem; }
  th, td { padding: 0.3rem 0.6rem; text-align: left; border-bottom: 1px solid #e0e0e0; }
  th { position: sticky; top: 0; background: #f3f5f8; }
  tbody tr { cursor: pointer; }
  tbody tr:hover { background: #eef3fb; }
  .empty { padding: 2rem; text-align: center; color: #555; }
</style>
</head>
<body>
<header>
  <h1>{{.Title}}</h1>
  <p>Assets outside the jurisdictional boundary, as of {{.AsOf}}</p>
</header>
<div id="map"></div>
{{if .Entries}}
<div class="table-wrap">
<table>
  <thead>
    <tr><th>Asset ID</th><th>GIS ID</th><th>Category</th><th>Source Table</th>
        <th>Latitude</th><th>Longitude</th><th>Distance (km)</th></tr>
  </thead>
  <tbody>
  {{range .Entries}}
    <tr onclick="zoomTo({{.Latitude}}, {{.Longitude}})">
      <td>{{.RecordID}}</td><td>{{.GISID}}</td><td>{{.Category}}</td><td>{{.Table}}</td>
      <td>{{printf "%.6f" .Latitude}}</td><td>{{printf "%.6f" .Longitude}}</td><td>{{.DistanceKM}}</td>
    </tr>
  {{end}}
  </tbody>
</table>
</div>
{{else}}
<div class="empty">No assets were flagged outside the boundary.</div>
{{end}}
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], 5);
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

{{if .BoundaryJSON}}
L.geoJSON({{.BoundaryJSON}}, {
  style: { color: '#234075', weight: 1, fillOpacity: 0.05 }
}).addTo(map);
{{end}}

var markers = [];
{{range .Entries}}
markers.push(L.circleMarker([{{.Latitude}}, {{.Longitude}}], {
  radius: 6, color: '{{.Color}}', fillColor: '{{.Color}}', fillOpacity: 0.85
}).addTo(map).bindTooltip('{{.GISID}}'));
{{end}}

{{if .Entries}}
var group = L.featureGroup(markers);
map.fitBounds(group.getBounds().pad(0.2));
{{end}}

function zoomTo(lat, lon) {
  map.setView([lat, lon], 13);
}

{{if .Legend}}
var legend = L.control({position: 'bottomright'});
legend.onAdd = function () {
  var div = L.DomUtil.create('div', 'legend');
  div.innerHTML = '{{range .Legend}}<div><i style="background:{{.Color}}"></i>{{.Category}} ({{.Count}})</div>{{end}}';
  return div;
};
legend.addTo(map);
{{end}}
</script>
</body>
</html>
`
