package domain

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeImpact(t *testing.T) {
	zone := Zone{ID: "growth-2007-2025", Geom: rect(0, 0, 100, 100)}

	t.Run("point asset inside the zone", func(t *testing.T) {
		assets := []Asset{
			{ID: "n1", Category: "building", Geom: geom.Point{X: 50, Y: 50}},
			{ID: "n2", Category: "building", Geom: geom.Point{X: 500, Y: 500}},
		}

		records, summaries, err := AnalyzeImpact([]Zone{zone}, assets, nil)
		require.NoError(t, err)

		require.Len(t, records, 1)
		assert.Equal(t, "n1", records[0].AssetID)
		assert.Equal(t, "growth-2007-2025", records[0].ZoneID)
		assert.Zero(t, records[0].OverlapM2)

		require.Len(t, summaries, 1)
		assert.Equal(t, 1, summaries[0].AssetsByCat["building"])
	})

	t.Run("polygon asset overlap area", func(t *testing.T) {
		assets := []Asset{
			{ID: "w1", Category: "highway", Geom: geom.Geom(rect(90, 40, 120, 60))},
		}

		records, _, err := AnalyzeImpact([]Zone{zone}, assets, nil)
		require.NoError(t, err)

		require.Len(t, records, 1)
		assert.InDelta(t, 10*20, records[0].OverlapM2, 1e-6)
	})

	t.Run("bounding boxes touch but geometries do not", func(t *testing.T) {
		// The L-shaped zone's bbox contains the point; the zone does not.
		l := rect(0, 0, 100, 20)
		l = append(l, rect(0, 0, 20, 100)...)
		assets := []Asset{
			{ID: "n3", Category: "amenity", Geom: geom.Point{X: 80, Y: 80}},
		}

		records, _, err := AnalyzeImpact([]Zone{{ID: "l", Geom: l}}, assets, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("land cover accumulates hectares by class", func(t *testing.T) {
		parcels := []LandCoverParcel{
			{Class: "agriculture", Geom: rect(0, 0, 50, 100)},   // 5000 m² inside
			{Class: "agriculture", Geom: rect(50, 0, 100, 100)}, // 5000 m² inside
			{Class: "forest", Geom: rect(80, 80, 200, 200)},     // 400 m² inside
			{Class: "urban", Geom: rect(300, 300, 400, 400)},    // disjoint
		}

		records, summaries, err := AnalyzeImpact([]Zone{zone}, nil, parcels)
		require.NoError(t, err)

		assert.Len(t, records, 3)
		require.Len(t, summaries, 1)
		assert.InDelta(t, 1.0, summaries[0].HectaresByClass["agriculture"], 1e-9)
		assert.InDelta(t, 0.04, summaries[0].HectaresByClass["forest"], 1e-9)
		assert.NotContains(t, summaries[0].HectaresByClass, "urban")
	})

	t.Run("every zone gets a summary even when empty", func(t *testing.T) {
		far := Zone{ID: "far", Geom: rect(1000, 1000, 1100, 1100)}
		records, summaries, err := AnalyzeImpact([]Zone{zone, far}, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
		require.Len(t, summaries, 2)
		assert.Equal(t, "far", summaries[1].ZoneID)
	})

	t.Run("zone without geometry fails", func(t *testing.T) {
		_, _, err := AnalyzeImpact([]Zone{{ID: "empty"}}, nil, nil)
		assert.ErrorIs(t, err, ErrEmptyShoreline)
	})

	t.Run("asset without geometry fails", func(t *testing.T) {
		_, _, err := AnalyzeImpact([]Zone{zone}, []Asset{{ID: "bad"}}, nil)
		assert.Error(t, err)
	})
}
