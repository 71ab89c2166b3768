package weaviate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.WeaviateConfig{URL: srv.URL, Class: "Asset", Timeout: 2 * time.Second})
}

func TestGetQueryConditionalClauses(t *testing.T) {
	list := getQuery{Class: "Asset", Limit: 10, Offset: 5}.build()
	assert.Contains(t, list, "Asset(limit: 10, offset: 5)")
	assert.NotContains(t, list, "bm25")
	assert.NotContains(t, list, "nearVector")
	assert.NotContains(t, list, "where")

	text := getQuery{Class: "Asset", Text: `red "car"`, Limit: 3}.build()
	assert.Contains(t, text, `bm25: {query: "red \"car\""}`)
	assert.NotContains(t, text, "nearVector")

	vec := getQuery{Class: "Asset", Vector: []float32{0.5, 1}, Where: collectionFilter("c1"), Limit: 3}.build()
	assert.Contains(t, vec, "nearVector: {vector: [0.5, 1]}")
	assert.Contains(t, vec, `where: {path: ["collection_id"], operator: Equal, valueText: "c1"}`)
	assert.NotContains(t, vec, "bm25")

	hybrid := getQuery{Class: "Asset", Text: "beach", Vector: []float32{1}, Hybrid: true, Alpha: 0.5, Limit: 3}.build()
	assert.Contains(t, hybrid, `hybrid: {query: "beach", vector: [1], alpha: 0.5}`)
	assert.NotContains(t, hybrid, "bm25")

	assert.Nil(t, collectionFilter(""))
}

func TestSearchSimilarPreservesBackendOrder(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/graphql", r.URL.Path)
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotQuery = req.Query
		_, _ = w.Write([]byte(`{"data":{"Get":{"Asset":[
			{"_additional":{"id":"w-2","distance":0.4},"entity_id":"a2","filename":"b.mp4","mime_type":"video/mp4","created_at":"2024-01-02T00:00:00Z"},
			{"_additional":{"id":"w-1","distance":0.1},"entity_id":"a1","filename":"a.mp4","mime_type":"video/mp4","created_at":"2024-01-01T00:00:00Z"}
		]}}}`))
	}))

	results, err := c.SearchSimilar(context.Background(), []float32{0.1, 0.2}, 5, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a2", results[0].AssetID, "client must not re-sort")
	assert.Equal(t, "a1", results[1].AssetID)
	assert.InDelta(t, 0.4, results[0].Score, 1e-9)
	assert.Equal(t, entity.ScoreDistance, results[0].ScoreKind)
	assert.Equal(t, []entity.Source{entity.SourceVector}, results[0].Sources)
	assert.Contains(t, gotQuery, "nearVector")
	assert.NotContains(t, gotQuery, "where")
}

func TestTextSearchParsesStringScores(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Get":{"Asset":[
			{"_additional":{"id":"w-1","score":"2.75"},"entity_id":"a1","tags":["beach"],"metadata":"{\"camera\":\"x100\"}"}
		]}}}`))
	}))

	results, err := c.TextSearch(context.Background(), "beach", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 2.75, results[0].Score, 1e-9)
	assert.Equal(t, entity.ScoreRelevance, results[0].ScoreKind)
	assert.Equal(t, "x100", results[0].Metadata["camera"])
}

func TestGraphQLErrorsAreBackendUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"class Asset not found"}]}`))
	}))

	_, err := c.TextSearch(context.Background(), "beach", 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))
	assert.Contains(t, err.Error(), "class Asset not found")
}

func TestNon2xxAndUnreachable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := c.HybridSearch(context.Background(), "x", []float32{1}, 3)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))

	srv := httptest.NewServer(http.NotFoundHandler())
	down := NewClient(&config.WeaviateConfig{URL: srv.URL})
	srv.Close()
	_, err = down.TextSearch(context.Background(), "x", 3)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))
	assert.False(t, down.HealthCheck(context.Background()))
}

// fakeObjects 内存版 /v1/objects
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]map[string]any
}

func (f *fakeObjects) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/v1/objects/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/meta":
		_, _ = w.Write([]byte(`{"version":"1.24.0"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/objects":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["id"].(string); !ok {
			body["id"] = "00000000-0000-0000-0000-000000000001"
		}
		f.objects[body["id"].(string)] = body
		_ = json.NewEncoder(w).Encode(body)
	case r.Method == http.MethodGet:
		obj, ok := f.objects[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(obj)
	case r.Method == http.MethodPatch:
		obj, ok := f.objects[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		props := obj["properties"].(map[string]any)
		for k, v := range body["properties"].(map[string]any) {
			props[k] = v
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete:
		if _, ok := f.objects[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.objects, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	c := newTestClient(t, &fakeObjects{objects: map[string]map[string]any{}})
	ctx := context.Background()

	asset := entity.NewAsset("a-42", "harbor.mov", "video/quicktime", 2048)
	asset.ProcessingStatus = entity.StatusCompleted
	asset.CollectionID = "col-7"
	asset.Tags = []string{"harbor", "boats"}
	asset.Metadata = map[string]any{"camera": "x100"}
	asset.CreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := c.CreateObject(ctx, "", asset.VectorProperties(), []float32{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, ObjectID("a-42"), id)

	byAsset, err := c.GetObject(ctx, "a-42")
	require.NoError(t, err)
	assert.Equal(t, id, byAsset.ID)

	got, err := c.GetObject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, asset.AssetID, got.AssetID)
	assert.Equal(t, asset.Filename, got.Filename)
	assert.Equal(t, asset.MimeType, got.MimeType)
	assert.Equal(t, asset.FileSize, got.FileSize)
	assert.Equal(t, asset.ProcessingStatus, got.ProcessingStatus)
	assert.Equal(t, asset.CollectionID, got.CollectionID)
	assert.Equal(t, asset.Tags, got.Tags)
	assert.Equal(t, asset.Metadata, got.Metadata)
	assert.True(t, asset.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, []float32{0.1, 0.2}, got.Vector)

	require.NoError(t, c.UpdateObject(ctx, id, map[string]any{"filename": "harbor-v2.mov"}, nil))
	got, err = c.GetObject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "harbor-v2.mov", got.Filename)

	require.NoError(t, c.DeleteObject(ctx, "a-42"))
	_, err = c.GetObject(ctx, id)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	assert.True(t, apperrors.IsCode(c.DeleteObject(ctx, id), apperrors.CodeNotFound))
	assert.True(t, c.HealthCheck(ctx))
}
