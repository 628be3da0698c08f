// Package overpass loads infrastructure assets and land cover from the
// OpenStreetMap Overpass API for the impact stage.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/ctessum/geom"
	api "github.com/serjvanilla/go-overpass"

	"github.com/couchcryptid/lakerise/internal/domain"
	"github.com/couchcryptid/lakerise/internal/observability"
)

// Projection maps WGS84 coordinates onto the local analysis plane with an
// equirectangular approximation around the anchor point. Adequate at lake
// scale; the analysis frame is tens of kilometers at most.
type Projection struct {
	Lat0 float64
	Lon0 float64
}

const (
	metersPerDegLat = 110_574.0
	metersPerDegLon = 111_320.0
)

// ToLocal converts a WGS84 coordinate to local meters.
func (p Projection) ToLocal(lat, lon float64) geom.Point {
	return geom.Point{
		X: (lon - p.Lon0) * metersPerDegLon * math.Cos(p.Lat0*math.Pi/180),
		Y: (lat - p.Lat0) * metersPerDegLat,
	}
}

// ToGeo converts a local point back to WGS84.
func (p Projection) ToGeo(pt geom.Point) (lat, lon float64) {
	lat = p.Lat0 + pt.Y/metersPerDegLat
	lon = p.Lon0 + pt.X/(metersPerDegLon*math.Cos(p.Lat0*math.Pi/180))
	return lat, lon
}

// Client queries the Overpass API for assets and land cover inside a local
// bounding box.
type Client struct {
	api     api.Client
	proj    Projection
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Client against the given Overpass endpoint.
func New(endpoint string, timeout time.Duration, proj Projection, logger *slog.Logger, metrics *observability.Metrics) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		api:     api.NewWithSettings(endpoint, 1, httpClient),
		proj:    proj,
		logger:  logger,
		metrics: metrics,
	}
}

// Assets returns buildings, highways, and amenities intersecting bounds.
func (c *Client) Assets(ctx context.Context, bounds *geom.Bounds) ([]domain.Asset, error) {
	q := fmt.Sprintf(`[out:json];
(
  node["amenity"](%s);
  way["building"](%s);
  way["highway"](%s);
);
out body;
>;
out skel qt;
`, c.bbox(bounds), c.bbox(bounds), c.bbox(bounds))

	result, err := c.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("overpass assets: %w", err)
	}
	assets := c.convertAssets(result)
	c.logger.Info("assets loaded", "count", len(assets))
	return assets, nil
}

// LandCover returns classified land-use polygons intersecting bounds.
func (c *Client) LandCover(ctx context.Context, bounds *geom.Bounds) ([]domain.LandCoverParcel, error) {
	q := fmt.Sprintf(`[out:json];
(
  way["landuse"](%s);
  way["natural"~"wood|scrub|wetland"](%s);
);
out body;
>;
out skel qt;
`, c.bbox(bounds), c.bbox(bounds))

	result, err := c.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("overpass land cover: %w", err)
	}
	parcels := c.convertParcels(result)
	c.logger.Info("land cover loaded", "count", len(parcels))
	return parcels, nil
}

// bbox renders a local bounding box as the Overpass (south,west,north,east)
// filter.
func (c *Client) bbox(b *geom.Bounds) string {
	south, west := c.proj.ToGeo(b.Min)
	north, east := c.proj.ToGeo(b.Max)
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", south, west, north, east)
}

func (c *Client) query(ctx context.Context, q string) (*api.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := c.api.Query(q)
	c.metrics.OverpassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.OverpassRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.OverpassRequests.WithLabelValues("success").Inc()
	return &result, nil
}

// convertAssets maps OSM nodes and ways onto domain assets: tagged nodes
// become points, closed ways become polygon footprints, and open ways fall
// back to their centroid. Output order is deterministic (sorted by OSM id).
func (c *Client) convertAssets(result *api.Result) []domain.Asset {
	var assets []domain.Asset

	for _, id := range sortedNodeIDs(result.Nodes) {
		node := result.Nodes[id]
		cat := nodeCategory(node.Tags)
		if cat == "" {
			continue // untagged way member
		}
		assets = append(assets, domain.Asset{
			ID:       fmt.Sprintf("node/%d", id),
			Category: cat,
			Geom:     c.proj.ToLocal(node.Lat, node.Lon),
		})
	}

	for _, id := range sortedWayIDs(result.Ways) {
		way := result.Ways[id]
		cat := wayCategory(way.Tags)
		if cat == "" {
			continue
		}
		g := c.wayGeometry(way)
		if g == nil {
			continue
		}
		assets = append(assets, domain.Asset{
			ID:       fmt.Sprintf("way/%d", id),
			Category: cat,
			Geom:     g,
		})
	}
	return assets
}

func (c *Client) convertParcels(result *api.Result) []domain.LandCoverParcel {
	var parcels []domain.LandCoverParcel
	for _, id := range sortedWayIDs(result.Ways) {
		way := result.Ways[id]
		class := way.Tags["landuse"]
		if class == "" {
			class = way.Tags["natural"]
		}
		if class == "" {
			continue
		}
		poly, ok := c.wayPolygon(way)
		if !ok {
			continue
		}
		parcels = append(parcels, domain.LandCoverParcel{Class: class, Geom: poly})
	}
	return parcels
}

// wayGeometry returns a polygon for closed ways and the centroid point for
// open ones.
func (c *Client) wayGeometry(way *api.Way) geom.Geom {
	if poly, ok := c.wayPolygon(way); ok {
		return poly
	}
	if len(way.Nodes) == 0 {
		return nil
	}
	var lat, lon float64
	for _, n := range way.Nodes {
		lat += n.Lat
		lon += n.Lon
	}
	fn := float64(len(way.Nodes))
	return c.proj.ToLocal(lat/fn, lon/fn)
}

func (c *Client) wayPolygon(way *api.Way) (geom.Polygon, bool) {
	n := len(way.Nodes)
	if n < 4 || way.Nodes[0] == nil || way.Nodes[n-1] == nil || way.Nodes[0].ID != way.Nodes[n-1].ID {
		return nil, false
	}
	ring := make([]geom.Point, 0, n-1)
	for _, node := range way.Nodes[:n-1] {
		if node == nil {
			return nil, false
		}
		ring = append(ring, c.proj.ToLocal(node.Lat, node.Lon))
	}
	return geom.Polygon{ring}, true
}

func nodeCategory(tags map[string]string) string {
	if tags["amenity"] != "" {
		return "amenity"
	}
	return ""
}

func wayCategory(tags map[string]string) string {
	switch {
	case tags["building"] != "":
		return "building"
	case tags["highway"] != "":
		return "highway"
	case tags["amenity"] != "":
		return "amenity"
	}
	return ""
}

func sortedNodeIDs(nodes map[int64]*api.Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedWayIDs(ways map[int64]*api.Way) []int64 {
	ids := make([]int64, 0, len(ways))
	for id := range ways {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
