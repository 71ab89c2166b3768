package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
	apperrors "dataflux-query-api/pkg/errors"
)

type stubGraph struct {
	repository.GraphStore

	stats     *entity.GraphStatistics
	statsErr  error
	recs      []*entity.Recommendation
	rels      []*entity.Relationship
	lastLimit int
}

func (g *stubGraph) GetGraphStatistics(context.Context) (*entity.GraphStatistics, error) {
	return g.stats, g.statsErr
}

func (g *stubGraph) GetRecommendations(_ context.Context, _ string, limit int) ([]*entity.Recommendation, error) {
	g.lastLimit = limit
	return g.recs, nil
}

func (g *stubGraph) GetAssetRelationships(_ context.Context, _ string, limit int) ([]*entity.Relationship, error) {
	g.lastLimit = limit
	return g.rels, nil
}

func (g *stubGraph) GetAssetSegments(context.Context, string) ([]*entity.Segment, error) {
	return nil, nil
}

type stubMetadata struct {
	repository.MetadataStore

	assets, segments int64
	segment          *entity.Segment
}

func (m *stubMetadata) CountAssets(context.Context) (int64, error)   { return m.assets, nil }
func (m *stubMetadata) CountSegments(context.Context) (int64, error) { return m.segments, nil }

func (m *stubMetadata) GetSegment(_ context.Context, id string) (*entity.Segment, error) {
	if m.segment != nil && m.segment.SegmentID == id {
		return m.segment, nil
	}
	return nil, nil
}

func TestStatsCombinesStores(t *testing.T) {
	graph := &stubGraph{stats: &entity.GraphStatistics{
		TotalNodes:         8,
		TotalRelationships: 4,
		ByLabel: map[string]entity.LabelStats{
			"Asset":   {Nodes: 3, Relationships: 4},
			"Segment": {Nodes: 5, Relationships: 0},
		},
	}}
	svc := NewService(graph, &stubMetadata{assets: 3, segments: 5})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalAssets)
	assert.Equal(t, int64(5), stats.TotalSegments)
	assert.Equal(t, int64(8), stats.TotalNodes)
	assert.Equal(t, int64(4), stats.TotalRelationships)

	var nodes int64
	for _, l := range stats.ByLabel {
		nodes += l.Nodes
	}
	assert.Equal(t, stats.TotalNodes, nodes)
}

func TestStatsPropagatesBackendError(t *testing.T) {
	graph := &stubGraph{statsErr: apperrors.BackendUnavailable("graph", errors.New("down"))}
	svc := NewService(graph, &stubMetadata{})

	_, err := svc.Stats(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))
}

func TestGetSegmentNotFound(t *testing.T) {
	seg := entity.NewSegment("S1", "A1", 0)
	svc := NewService(&stubGraph{}, &stubMetadata{segment: seg})

	got, err := svc.GetSegment(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "A1", got.AssetID)

	_, err = svc.GetSegment(context.Background(), "S9")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestListOperationsValidateAndClamp(t *testing.T) {
	graph := &stubGraph{}
	svc := NewService(graph, &stubMetadata{})

	_, err := svc.Relationships(context.Background(), "", 10)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	rels, err := svc.Relationships(context.Background(), "A1", 0)
	require.NoError(t, err)
	assert.NotNil(t, rels)
	assert.Equal(t, defaultListLimit, graph.lastLimit)

	_, err = svc.Recommendations(context.Background(), "A1", 5000)
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, graph.lastLimit)

	segs, err := svc.AssetSegments(context.Background(), "A1")
	require.NoError(t, err)
	assert.NotNil(t, segs)
}
