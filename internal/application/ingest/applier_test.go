package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
	"dataflux-query-api/internal/infrastructure/messaging"
	apperrors "dataflux-query-api/pkg/errors"
)

type recordingGraph struct {
	repository.GraphStore

	assets   []*entity.Asset
	segments []*entity.Segment
	links    []string
	similar  []entity.SimilarityEdge
	linkErr  error
}

func (g *recordingGraph) CreateAsset(_ context.Context, a *entity.Asset) error {
	g.assets = append(g.assets, a)
	return nil
}

func (g *recordingGraph) CreateSegment(_ context.Context, s *entity.Segment) error {
	g.segments = append(g.segments, s)
	return nil
}

func (g *recordingGraph) LinkAssetSegment(_ context.Context, assetID, segmentID string, _ int) error {
	g.links = append(g.links, assetID+"->"+segmentID)
	return g.linkErr
}

func (g *recordingGraph) LinkSimilarity(_ context.Context, a, b string, score float64, typ string) error {
	g.similar = append(g.similar, entity.SimilarityEdge{SourceAssetID: a, TargetAssetID: b, SimilarityScore: score, SimilarityType: typ})
	return nil
}

type recordingVector struct {
	repository.VectorStore

	created   []map[string]any
	deleted   []string
	deleteErr error
}

func (v *recordingVector) CreateObject(_ context.Context, _ string, props map[string]any, _ []float32) (string, error) {
	v.created = append(v.created, props)
	return "obj-1", nil
}

func (v *recordingVector) DeleteObject(_ context.Context, id string) error {
	v.deleted = append(v.deleted, id)
	return v.deleteErr
}

type recordingMetadata struct {
	assets   []string
	segments []string
	deleted  []string
}

func (m *recordingMetadata) UpsertAsset(_ context.Context, a *entity.Asset) error {
	m.assets = append(m.assets, a.AssetID)
	return nil
}

func (m *recordingMetadata) UpsertSegment(_ context.Context, s *entity.Segment) error {
	m.segments = append(m.segments, s.SegmentID)
	return nil
}

func (m *recordingMetadata) DeleteAsset(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

// registry 收集注册的处理器
type registry map[string]messaging.MessageHandler

func (r registry) RegisterHandler(msgType string, h messaging.MessageHandler) { r[msgType] = h }

func setup() (registry, *recordingGraph, *recordingVector, *recordingMetadata) {
	graph, vector, meta := &recordingGraph{}, &recordingVector{}, &recordingMetadata{}
	reg := registry{}
	NewApplier(graph, vector, meta, "Asset").Register(reg)
	return reg, graph, vector, meta
}

func dispatch(t *testing.T, reg registry, eventType string, payload any) error {
	t.Helper()
	msg, err := messaging.NewMessage("m-1", eventType, payload)
	require.NoError(t, err)
	h, ok := reg[eventType]
	require.True(t, ok, "no handler for %s", eventType)
	return h(context.Background(), msg)
}

func TestRegisterCoversAllEvents(t *testing.T) {
	reg, _, _, _ := setup()
	for _, ev := range []string{
		messaging.EventAssetIndexed,
		messaging.EventSegmentDetected,
		messaging.EventSimilarityComputed,
		messaging.EventAssetDeleted,
	} {
		assert.Contains(t, reg, ev)
	}
}

func TestAssetIndexedWritesAllStores(t *testing.T) {
	reg, graph, vector, meta := setup()

	err := dispatch(t, reg, messaging.EventAssetIndexed, AssetIndexed{
		AssetID: "A1", Filename: "beach.jpg", MimeType: "image/jpeg", FileSize: 10,
		ProcessingStatus: "completed", Tags: []string{"beach"}, Vector: []float32{0.1, 0.2},
	})
	require.NoError(t, err)

	require.Len(t, graph.assets, 1)
	assert.Equal(t, entity.StatusCompleted, graph.assets[0].ProcessingStatus)
	require.Len(t, vector.created, 1)
	assert.Equal(t, "A1", vector.created[0]["entity_id"])
	assert.Equal(t, []string{"A1"}, meta.assets)
}

func TestAssetIndexedWithoutVectorSkipsVectorStore(t *testing.T) {
	reg, graph, vector, _ := setup()

	require.NoError(t, dispatch(t, reg, messaging.EventAssetIndexed, AssetIndexed{AssetID: "A2", Filename: "x.png"}))
	assert.Len(t, graph.assets, 1)
	assert.Empty(t, vector.created)
}

func TestAssetIndexedRejectsInvalidAsset(t *testing.T) {
	reg, graph, _, _ := setup()

	err := dispatch(t, reg, messaging.EventAssetIndexed, AssetIndexed{AssetID: "A3", FileSize: -1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
	assert.Empty(t, graph.assets)
}

func TestSegmentDetectedCreatesAndLinks(t *testing.T) {
	reg, graph, _, meta := setup()

	err := dispatch(t, reg, messaging.EventSegmentDetected, SegmentDetected{
		SegmentID: "S1", AssetID: "A1", SequenceNumber: 2, StartTime: 1, EndTime: 3,
		ConfidenceScore: 0.9, DetectedObjects: []string{"dog"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1->S1"}, graph.links)
	assert.Equal(t, []string{"dog"}, graph.segments[0].DetectedObjects)
	assert.Equal(t, []string{"S1"}, meta.segments)
}

func TestSegmentDetectedPropagatesLinkFailure(t *testing.T) {
	reg, graph, _, _ := setup()
	graph.linkErr = apperrors.NotFound("asset A9 not found")

	err := dispatch(t, reg, messaging.EventSegmentDetected, SegmentDetected{SegmentID: "S1", AssetID: "A9"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestSimilarityComputed(t *testing.T) {
	t.Run("symmetric writes both directions", func(t *testing.T) {
		reg, graph, _, _ := setup()
		err := dispatch(t, reg, messaging.EventSimilarityComputed, SimilarityComputed{
			SourceAssetID: "A1", TargetAssetID: "A2", SimilarityScore: 0.9, Symmetric: true,
		})
		require.NoError(t, err)
		require.Len(t, graph.similar, 2)
		assert.Equal(t, "A2", graph.similar[1].SourceAssetID)
		assert.Equal(t, "A1", graph.similar[1].TargetAssetID)
	})

	t.Run("out of range score is rejected before writing", func(t *testing.T) {
		reg, graph, _, _ := setup()
		err := dispatch(t, reg, messaging.EventSimilarityComputed, SimilarityComputed{
			SourceAssetID: "A1", TargetAssetID: "A2", SimilarityScore: 1.5,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
		assert.Empty(t, graph.similar)
	})
}

func TestAssetDeletedToleratesMissingVectorObject(t *testing.T) {
	reg, _, vector, meta := setup()
	vector.deleteErr = apperrors.NotFound("object A1 not found")

	require.NoError(t, dispatch(t, reg, messaging.EventAssetDeleted, AssetDeleted{AssetID: "A1"}))
	assert.Equal(t, []string{"A1"}, vector.deleted)
	assert.Equal(t, []string{"A1"}, meta.deleted)

	vector.deleteErr = errors.New("weaviate down")
	assert.Error(t, dispatch(t, reg, messaging.EventAssetDeleted, AssetDeleted{AssetID: "A1"}))
}

func TestDispatcherAppliesSynchronously(t *testing.T) {
	graph, vector, meta := &recordingGraph{}, &recordingVector{}, &recordingMetadata{}
	d := NewDispatcher()
	NewApplier(graph, vector, meta, "Asset").Register(d)

	id, err := d.PublishEvent(context.Background(), messaging.EventAssetIndexed, AssetIndexed{AssetID: "A9", Filename: "a.mp4"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"A9"}, meta.assets)

	_, err = d.PublishEvent(context.Background(), "unknown.event", map[string]string{})
	assert.Error(t, err)
}
