package domain

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// Asset is an infrastructure entity from the external provider: a point
// (building centroid, facility) or a polygon footprint with a category label.
// Assets are read-only inputs; impact analysis never mutates them.
type Asset struct {
	ID       string
	Category string
	Geom     geom.Geom
}

// LandCoverParcel is a classified land-cover polygon.
type LandCoverParcel struct {
	Class string
	Geom  geom.Polygonal
}

// Zone is a growth or risk polygon under impact analysis.
type Zone struct {
	ID   string
	Geom geom.Polygonal
}

// ImpactRecord associates a zone with one asset or land-cover parcel it
// intersects. Exactly one of AssetID/Category or LandCoverClass is set.
type ImpactRecord struct {
	ZoneID         string
	AssetID        string
	Category       string
	LandCoverClass string
	OverlapM2      float64 // 0 for point assets
}

// ZoneSummary aggregates a zone's impact: asset counts by category and
// affected land-cover area by class, in hectares.
type ZoneSummary struct {
	ZoneID          string
	AssetsByCat     map[string]int
	HectaresByClass map[string]float64
}

type indexedAsset struct {
	geom.Geom
	asset Asset
}

type indexedParcel struct {
	geom.Polygonal
	parcel LandCoverParcel
}

// AnalyzeImpact spatially joins each zone against the asset and land-cover
// collections. Point assets match by strict containment; polygon assets and
// parcels match by positive intersection area.
func AnalyzeImpact(zones []Zone, assets []Asset, parcels []LandCoverParcel) ([]ImpactRecord, []ZoneSummary, error) {
	tree := rtree.NewTree(25, 50)
	for _, a := range assets {
		if a.Geom == nil {
			return nil, nil, fmt.Errorf("asset %q has no geometry", a.ID)
		}
		tree.Insert(indexedAsset{Geom: a.Geom, asset: a})
	}
	parcelTree := rtree.NewTree(25, 50)
	for _, p := range parcels {
		if p.Geom == nil {
			return nil, nil, fmt.Errorf("land-cover parcel %q has no geometry", p.Class)
		}
		parcelTree.Insert(indexedParcel{Polygonal: p.Geom, parcel: p})
	}

	var records []ImpactRecord
	summaries := make([]ZoneSummary, 0, len(zones))
	for _, z := range zones {
		if z.Geom == nil || z.Geom.Area() <= 0 {
			return nil, nil, fmt.Errorf("zone %q: %w", z.ID, ErrEmptyShoreline)
		}
		sum := ZoneSummary{
			ZoneID:          z.ID,
			AssetsByCat:     map[string]int{},
			HectaresByClass: map[string]float64{},
		}

		for _, hit := range tree.SearchIntersect(z.Geom.Bounds()) {
			ia := hit.(indexedAsset)
			rec, ok := assetOverlap(z, ia.asset)
			if !ok {
				continue
			}
			records = append(records, rec)
			sum.AssetsByCat[ia.asset.Category]++
		}

		for _, hit := range parcelTree.SearchIntersect(z.Geom.Bounds()) {
			ip := hit.(indexedParcel)
			isect := z.Geom.Intersection(ip.parcel.Geom)
			if isect == nil {
				continue
			}
			area := isect.Area()
			if area <= 0 {
				continue
			}
			records = append(records, ImpactRecord{
				ZoneID:         z.ID,
				LandCoverClass: ip.parcel.Class,
				OverlapM2:      area,
			})
			sum.HectaresByClass[ip.parcel.Class] += area / 1e4
		}

		summaries = append(summaries, sum)
	}
	return records, summaries, nil
}

// assetOverlap tests one asset against a zone. The rtree search is a
// bounding-box prefilter; this applies the exact geometric predicate.
func assetOverlap(z Zone, a Asset) (ImpactRecord, bool) {
	switch g := a.Geom.(type) {
	case geom.Point:
		if g.Within(z.Geom) != geom.Inside {
			return ImpactRecord{}, false
		}
		return ImpactRecord{ZoneID: z.ID, AssetID: a.ID, Category: a.Category}, true
	case geom.Polygonal:
		isect := z.Geom.Intersection(g)
		if isect == nil {
			return ImpactRecord{}, false
		}
		area := isect.Area()
		if area <= 0 {
			return ImpactRecord{}, false
		}
		return ImpactRecord{ZoneID: z.ID, AssetID: a.ID, Category: a.Category, OverlapM2: area}, true
	default:
		return ImpactRecord{}, false
	}
}
