package neo4j

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
)

type capturedStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters"`
}

// fakeNeo4j 模拟事务提交端点，respond 根据语句返回原始 JSON
type fakeNeo4j struct {
	calls   atomic.Int32
	last    capturedStatement
	respond func(stmt capturedStatement) (int, string)
}

func (f *fakeNeo4j) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/db/data/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		require.Equal(t, commitPath, r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "neo4j", user)
		assert.Equal(t, "secret", pass)

		f.calls.Add(1)
		var body struct {
			Statements []capturedStatement `json:"statements"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Statements, 1)
		f.last = body.Statements[0]

		status, payload := f.respond(f.last)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	})
}

func newTestRepo(t *testing.T, fake *fakeNeo4j) *GraphRepository {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	runner := NewHTTPRunner(&config.GraphConfig{URL: srv.URL, Username: "neo4j", Password: "secret"})
	return NewGraphRepository(NewClientWithRunner(runner))
}

func rows(columns string, data ...string) string {
	parts := make([]string, 0, len(data))
	for _, d := range data {
		parts = append(parts, `{"row":`+d+`}`)
	}
	return `{"results":[{"columns":` + columns + `,"data":[` + strings.Join(parts, ",") + `]}],"errors":[]}`
}

func TestFindSimilarAppliesThreshold(t *testing.T) {
	fake := &fakeNeo4j{respond: func(stmt capturedStatement) (int, string) {
		// 模拟后端忽略阈值，验证客户端截断
		return http.StatusOK, rows(`["id","f","m","s","t","c"]`,
			`["A3","c.jpg","image/jpeg",0.6,"content_similarity","2024-01-01T00:00:00Z"]`,
			`["A2","b.jpg","image/jpeg",0.9,"content_similarity","2024-01-02T00:00:00Z"]`,
		)
	}}
	repo := newTestRepo(t, fake)

	edges, err := repo.FindSimilar(context.Background(), "A1", 0.75, 10)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "A2", edges[0].TargetAssetID)
	assert.Equal(t, "A1", edges[0].SourceAssetID)
	assert.InDelta(t, 0.9, edges[0].SimilarityScore, 1e-9)

	assert.Contains(t, fake.last.Statement, "r.similarity_score >= $threshold")
	assert.Contains(t, fake.last.Statement, "ORDER BY r.similarity_score DESC")
	assert.Equal(t, 0.75, fake.last.Parameters["threshold"])
	assert.EqualValues(t, 10, fake.last.Parameters["limit"])
}

func TestFindSimilarOrdersAndCaps(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["id","f","m","s","t","c"]`,
			`["B","","",0.8,"",null]`,
			`["C","","",0.95,"",null]`,
			`["D","","",0.85,"",null]`,
		)
	}}
	repo := newTestRepo(t, fake)

	edges, err := repo.FindSimilar(context.Background(), "A", 0.5, 2)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "C", edges[0].TargetAssetID)
	assert.Equal(t, "D", edges[1].TargetAssetID)
}

func TestFindSimilarRejectsBadThreshold(t *testing.T) {
	fake := &fakeNeo4j{}
	repo := newTestRepo(t, fake)

	_, err := repo.FindSimilar(context.Background(), "A", 1.2, 10)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
	assert.Zero(t, fake.calls.Load())
}

func TestGetRecommendationsUsesFixedThreshold(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["id","f","m","tags","s","t"]`,
			`["A2","b.jpg","image/jpeg",["sunset"],0.9,"content_similarity"]`,
			`["A4","d.jpg","image/jpeg",[],0.5,"content_similarity"]`,
		)
	}}
	repo := newTestRepo(t, fake)

	recs, err := repo.GetRecommendations(context.Background(), "A1", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A2", recs[0].AssetID)
	assert.Equal(t, []string{"sunset"}, recs[0].Tags)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.SimilarityScore, RecommendationThreshold)
	}
	assert.Equal(t, RecommendationThreshold, fake.last.Parameters["min_score"])
}

func TestLinkSimilarityValidatesBeforeCall(t *testing.T) {
	fake := &fakeNeo4j{}
	repo := newTestRepo(t, fake)

	err := repo.LinkSimilarity(context.Background(), "A1", "A2", 1.5, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
	assert.Zero(t, fake.calls.Load())
}

func TestLinkSimilarityDefaultsType(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["count(r)"]`, `[1]`)
	}}
	repo := newTestRepo(t, fake)

	require.NoError(t, repo.LinkSimilarity(context.Background(), "A1", "A2", 0.9, ""))
	assert.Equal(t, entity.DefaultSimilarityType, fake.last.Parameters["similarity_type"])
	assert.Contains(t, fake.last.Statement, "SIMILAR_TO")
}

func TestLinkAssetSegmentMissingEndpoint(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["count(r)"]`, `[0]`)
	}}
	repo := newTestRepo(t, fake)

	err := repo.LinkAssetSegment(context.Background(), "A1", "S1", 1)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	assert.EqualValues(t, 1, fake.last.Parameters["sequence"])
}

func TestGetGraphStatistics(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["label","nodes","relationships"]`,
			`["Asset",3,4]`,
			`["Segment",5,0]`,
		)
	}}
	repo := newTestRepo(t, fake)

	stats, err := repo.GetGraphStatistics(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 8, stats.TotalNodes)
	assert.EqualValues(t, 4, stats.TotalRelationships)
	assert.EqualValues(t, 3, stats.ByLabel["Asset"].Nodes)
	assert.EqualValues(t, 5, stats.ByLabel["Segment"].Nodes)

	var nodes, rels int64
	for _, ls := range stats.ByLabel {
		nodes += ls.Nodes
		rels += ls.Relationships
	}
	assert.Equal(t, stats.TotalNodes, nodes)
	assert.Equal(t, stats.TotalRelationships, rels)
}

func TestStatisticsAndRelationshipsIgnoreSharedLabel(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["a","b","c","d","e","f"]`,
			`["CONTAINS","S1","Segment",null,null,1]`,
			`["SIMILAR_TO","A2","Asset",0.9,"visual",null]`,
		)
	}}
	repo := newTestRepo(t, fake)

	_, err := repo.GetGraphStatistics(context.Background())
	require.NoError(t, err)
	assert.Contains(t, fake.last.Statement, "[l IN labels(n) WHERE l <> 'Entity'][0]")
	assert.NotContains(t, fake.last.Statement, "labels(n)[0]")

	rels, err := repo.GetAssetRelationships(context.Background(), "A1", 0)
	require.NoError(t, err)
	assert.Contains(t, fake.last.Statement, "[l IN labels(t) WHERE l <> 'Entity'][0]")
	require.Len(t, rels, 2)
	assert.Equal(t, "Segment", rels[0].TargetLabel)
	require.NotNil(t, rels[0].Sequence)
	assert.Equal(t, 1, *rels[0].Sequence)
	assert.Nil(t, rels[0].Score)
	require.NotNil(t, rels[1].Score)
	assert.InDelta(t, 0.9, *rels[1].Score, 1e-9)
}

func TestGetAssetSegmentsOrderedBySequence(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["a","b","c","d","e","f","g","h","i","j","k","l"]`,
			`["e2","S2","scene",2,5.0,9.5,0.7,["dog"],"","park","2024-01-01T00:00:00Z","2024-01-01T00:00:00Z"]`,
			`["e1","S1","scene",1,0.0,5.0,0.9,["cat","dog"],"hi","room","2024-01-01T00:00:00Z","2024-01-01T00:00:00Z"]`,
		)
	}}
	repo := newTestRepo(t, fake)

	segs, err := repo.GetAssetSegments(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "S1", segs[0].SegmentID)
	assert.Equal(t, 1, segs[0].SequenceNumber)
	assert.Equal(t, []string{"cat", "dog"}, segs[0].DetectedObjects)
	assert.Equal(t, "A1", segs[1].AssetID)
	assert.InDelta(t, 4.5, segs[1].Duration(), 1e-9)
}

func TestFindObjectsInSegmentsLowercases(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["a","b","c","d","e","f","g","h","i"]`,
			`["S1","a cat",["cat"],0.95,"A1","a.jpg","image/jpeg","col","2024-01-01T00:00:00Z"]`,
		)
	}}
	repo := newTestRepo(t, fake)

	hits, err := repo.FindObjectsInSegments(context.Background(), "  Cat ", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "cat", fake.last.Parameters["object_name"])
	assert.EqualValues(t, defaultGraphLimit, fake.last.Parameters["limit"])
	assert.Equal(t, "A1", hits[0].AssetID)
	assert.False(t, hits[0].CreatedAt.IsZero())
}

func TestGraphQueryErrorCarriesFirstMessage(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, `{"results":[],"errors":[
			{"code":"Neo.ClientError.Statement.SyntaxError","message":"Invalid input 'X'"},
			{"code":"Neo.ClientError.Other","message":"second"}]}`
	}}
	repo := newTestRepo(t, fake)

	_, err := repo.GetGraphStatistics(context.Background())
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeGraphQueryError, appErr.Code)
	assert.Equal(t, "Invalid input 'X'", appErr.Message)
}

func TestServerErrorIsBackendUnavailable(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusInternalServerError, `oops`
	}}
	repo := newTestRepo(t, fake)

	_, err := repo.GetAssetSegments(context.Background(), "A1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))
}

func TestCreateAssetSerializesMetadata(t *testing.T) {
	fake := &fakeNeo4j{respond: func(capturedStatement) (int, string) {
		return http.StatusOK, rows(`["a.asset_id"]`, `["A1"]`)
	}}
	repo := newTestRepo(t, fake)

	asset := entity.NewAsset("A1", "a.jpg", "image/jpeg", 1024)
	asset.Metadata = map[string]any{"width": 640}
	require.NoError(t, repo.CreateAsset(context.Background(), asset))

	assert.Contains(t, fake.last.Statement, "CREATE (a:Asset:Entity")
	assert.JSONEq(t, `{"width":640}`, fake.last.Parameters["metadata_json"].(string))
	assert.Equal(t, []any{}, fake.last.Parameters["tags"])
}

func TestHealthCheck(t *testing.T) {
	repo := newTestRepo(t, &fakeNeo4j{})
	assert.True(t, repo.HealthCheck(context.Background()))
}
