package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
)

func TestNormalizeSource(t *testing.T) {
	t.Run("distance", func(t *testing.T) {
		got := normalizeSource([]*entity.SearchResult{
			{AssetID: "a", Score: 0, ScoreKind: entity.ScoreDistance},
			{AssetID: "b", Score: 1, ScoreKind: entity.ScoreDistance},
			{AssetID: "c", Score: 2.5, ScoreKind: entity.ScoreDistance},
		})
		assert.Equal(t, map[string]float64{"a": 1, "b": 0.5, "c": 0}, got)
	})

	t.Run("relevance divides by max", func(t *testing.T) {
		got := normalizeSource([]*entity.SearchResult{
			{AssetID: "a", Score: 8, ScoreKind: entity.ScoreRelevance},
			{AssetID: "b", Score: 2, ScoreKind: entity.ScoreRelevance},
		})
		assert.Equal(t, map[string]float64{"a": 1, "b": 0.25}, got)
	})

	t.Run("rank decays", func(t *testing.T) {
		got := normalizeSource([]*entity.SearchResult{
			{AssetID: "a", ScoreKind: entity.ScoreRank},
			{AssetID: "b", ScoreKind: entity.ScoreRank},
			{AssetID: "c", ScoreKind: entity.ScoreRank},
			{AssetID: "d", ScoreKind: entity.ScoreRank},
		})
		assert.Equal(t, map[string]float64{"a": 1, "b": 0.75, "c": 0.5, "d": 0.25}, got)
	})

	t.Run("weight clamps and keeps best duplicate", func(t *testing.T) {
		got := normalizeSource([]*entity.SearchResult{
			{AssetID: "a", Score: 0.4, ScoreKind: entity.ScoreWeight},
			{AssetID: "a", Score: 0.9, ScoreKind: entity.ScoreWeight},
			{AssetID: "b", Score: 1.7, ScoreKind: entity.ScoreWeight},
		})
		assert.Equal(t, map[string]float64{"a": 0.9, "b": 1}, got)
	})
}

func TestMergeWeightedMean(t *testing.T) {
	weights := config.FusionWeights{Vector: 0.5, Graph: 0.3, Metadata: 0.2}
	merged := merge(map[entity.Source][]*entity.SearchResult{
		entity.SourceVector: {{AssetID: "x", Score: 1, ScoreKind: entity.ScoreDistance}},
		entity.SourceGraph:  {{AssetID: "x", Score: 1, ScoreKind: entity.ScoreWeight}},
		entity.SourceMetadata: {
			{AssetID: "y", ScoreKind: entity.ScoreRank, Filename: "y.png"},
		},
	}, weights)

	assert.Len(t, merged, 2)
	assert.Equal(t, "y", merged[0].AssetID)
	assert.InDelta(t, 1.0, merged[0].Score, 1e-9)
	assert.Equal(t, "x", merged[1].AssetID)
	assert.InDelta(t, (0.5*0.5+0.3*1)/0.8, merged[1].Score, 1e-9)
	assert.Equal(t, []entity.Source{entity.SourceVector, entity.SourceGraph}, merged[1].Sources)
}

func TestMergeZeroWeightsFallBackToMean(t *testing.T) {
	merged := merge(map[entity.Source][]*entity.SearchResult{
		entity.SourceVector: {{AssetID: "x", Score: 0.8, ScoreKind: entity.ScoreWeight}},
		entity.SourceGraph:  {{AssetID: "x", Score: 0.4, ScoreKind: entity.ScoreWeight}},
	}, config.FusionWeights{Metadata: 1})

	assert.InDelta(t, 0.6, merged[0].Score, 1e-9)
}

func TestMergeDisplayFieldPriority(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	merged := merge(map[entity.Source][]*entity.SearchResult{
		entity.SourceGraph: {{AssetID: "x", Score: 1, ScoreKind: entity.ScoreWeight,
			Filename: "graph.mp4", CollectionID: "col-g", CreatedAt: created}},
		entity.SourceVector: {{AssetID: "x", Score: 0, ScoreKind: entity.ScoreDistance,
			Filename: "vector.mp4", MimeType: "video/mp4"}},
		entity.SourceMetadata: {{AssetID: "x", ScoreKind: entity.ScoreRank, Filename: "meta.mp4"}},
	}, config.FusionWeights{Vector: 1, Graph: 1, Metadata: 1})

	got := merged[0]
	assert.Equal(t, "meta.mp4", got.Filename)
	assert.Equal(t, "video/mp4", got.MimeType)
	assert.Equal(t, "col-g", got.CollectionID)
	assert.Equal(t, created, got.CreatedAt)
}

func TestSortResultsTieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	results := []*entity.SearchResult{
		{AssetID: "c", Score: 0.5, CreatedAt: older},
		{AssetID: "b", Score: 0.5, CreatedAt: older},
		{AssetID: "a", Score: 0.5, CreatedAt: newer},
		{AssetID: "d", Score: 0.9, CreatedAt: older},
	}
	sortResults(results)
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(results))
}

func TestPage(t *testing.T) {
	results := []*entity.SearchResult{{AssetID: "a"}, {AssetID: "b"}, {AssetID: "c"}}

	assert.Equal(t, []string{"b", "c"}, ids(page(results, 1, 5)))
	assert.Equal(t, []string{"a"}, ids(page(results, 0, 1)))
	assert.Empty(t, page(results, 3, 5))
}

func TestMatchesIgnoresUnknownFields(t *testing.T) {
	n := &normalizedSearch{
		MediaTypes:   []string{"image"},
		CollectionID: "col-1",
		Tags:         []string{"beach"},
	}

	assert.True(t, n.matches(&entity.SearchResult{AssetID: "unknown"}))
	assert.True(t, n.matches(&entity.SearchResult{MimeType: "IMAGE/png", Tags: []string{"beach", "sky"}}))
	assert.False(t, n.matches(&entity.SearchResult{MimeType: "video/mp4"}))
	assert.False(t, n.matches(&entity.SearchResult{CollectionID: "col-2"}))
	assert.False(t, n.matches(&entity.SearchResult{Tags: []string{"city"}}))
}
