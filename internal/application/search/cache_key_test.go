package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflux-query-api/internal/domain/entity"
)

func searchKey(t *testing.T, req *entity.SearchRequest) string {
	t.Helper()
	n, err := normalizeSearch(req, &testConfig().Search)
	require.NoError(t, err)
	key, err := cacheKey("dataflux:query", kindSearch, n)
	require.NoError(t, err)
	return key
}

func TestCacheKeyIsCanonical(t *testing.T) {
	a := searchKey(t, &entity.SearchRequest{
		Query:      "Red Car ",
		MediaTypes: []string{"video", "image"},
		Filters:    map[string]any{"tags": []any{"b", "a"}, "collection_id": "c1"},
	})
	b := searchKey(t, &entity.SearchRequest{
		Query:      "red car",
		MediaTypes: []string{"image", "VIDEO", "image"},
		Filters:    map[string]any{"collection_id": "c1", "tags": []string{"a", "b"}},
		Limit:      20,
	})
	assert.Equal(t, a, b)
	assert.Regexp(t, `^dataflux:query:search:[0-9a-f]{64}$`, a)
}

func TestCacheKeyDistinguishesPaging(t *testing.T) {
	base := searchKey(t, &entity.SearchRequest{Query: "red car"})

	assert.NotEqual(t, base, searchKey(t, &entity.SearchRequest{Query: "red car", Offset: 20}))
	assert.NotEqual(t, base, searchKey(t, &entity.SearchRequest{Query: "red car", Limit: 5}))
	assert.NotEqual(t, base, searchKey(t, &entity.SearchRequest{Query: "red car", Vector: []float32{0.1}}))
}

func TestCacheKeySeparatesKinds(t *testing.T) {
	n := &normalizedSimilar{AssetID: "A1", Limit: 10}
	similar, err := cacheKey("p", kindSimilar, n)
	require.NoError(t, err)
	search, err := cacheKey("p", kindSearch, n)
	require.NoError(t, err)

	assert.NotEqual(t, similar, search)
	assert.Regexp(t, `^p:similar:`, similar)
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t, []string{"red", "car", "parking-lot"},
		extractKeywords("Find the RED car, in a parking-lot; red car!", 5))
	assert.Equal(t, []string{"dog", "cat"}, extractKeywords("dog cat bird fish", 2))
	assert.Empty(t, extractKeywords("show me the", 5))
}
