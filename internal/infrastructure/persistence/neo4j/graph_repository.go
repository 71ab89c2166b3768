package neo4j

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
)

// RecommendationThreshold 推荐使用的固定相似度下限，与 FindSimilar 的调用方阈值相互独立
const RecommendationThreshold = 0.6

const defaultGraphLimit = 10

const (
	cypherCreateAsset = `CREATE (a:Asset:Entity {
  entity_id: $entity_id, asset_id: $asset_id, filename: $filename, mime_type: $mime_type,
  file_size: $file_size, processing_status: $processing_status, collection_id: $collection_id,
  tags: $tags, metadata_json: $metadata_json,
  created_at: datetime($created_at), updated_at: datetime($updated_at)
})
RETURN a.asset_id`

	cypherCreateSegment = `CREATE (s:Segment:Entity {
  entity_id: $entity_id, segment_id: $segment_id, asset_id: $asset_id, segment_type: $segment_type,
  sequence_number: $sequence_number, start_time: $start_time, end_time: $end_time,
  confidence_score: $confidence_score, detected_objects: $detected_objects,
  detected_text: $detected_text, content_description: $content_description,
  created_at: datetime($created_at), updated_at: datetime($updated_at)
})
RETURN s.segment_id`

	cypherLinkAssetSegment = `MATCH (a:Asset {asset_id: $asset_id}), (s:Segment {segment_id: $segment_id})
CREATE (a)-[r:CONTAINS {relationship_type: 'contains', sequence: $sequence, created_at: datetime()}]->(s)
RETURN count(r)`

	cypherLinkSimilarity = `MATCH (a:Asset {asset_id: $source_id}), (b:Asset {asset_id: $target_id})
CREATE (a)-[r:SIMILAR_TO {similarity_score: $score, similarity_type: $similarity_type, created_at: datetime()}]->(b)
RETURN count(r)`

	cypherFindSimilar = `MATCH (:Asset {asset_id: $asset_id})-[r:SIMILAR_TO]->(b:Asset)
WHERE r.similarity_score >= $threshold
RETURN b.asset_id, b.filename, b.mime_type, r.similarity_score, r.similarity_type, toString(r.created_at)
ORDER BY r.similarity_score DESC, b.asset_id ASC
LIMIT $limit`

	cypherRecommendations = `MATCH (:Asset {asset_id: $asset_id})-[r:SIMILAR_TO]->(b:Asset)
WHERE r.similarity_score >= $min_score
RETURN b.asset_id, b.filename, b.mime_type, b.tags, r.similarity_score, r.similarity_type
ORDER BY r.similarity_score DESC, b.asset_id ASC
LIMIT $limit`

	cypherObjectsInSegments = `MATCH (a:Asset)-[:CONTAINS]->(s:Segment)
WHERE any(o IN s.detected_objects WHERE toLower(o) = $object_name)
RETURN s.segment_id, s.content_description, s.detected_objects, s.confidence_score,
  a.asset_id, a.filename, a.mime_type, a.collection_id, toString(a.created_at)
ORDER BY s.confidence_score DESC, s.segment_id ASC
LIMIT $limit`

	cypherAssetSegments = `MATCH (:Asset {asset_id: $asset_id})-[:CONTAINS]->(s:Segment)
RETURN s.entity_id, s.segment_id, s.segment_type, s.sequence_number, s.start_time, s.end_time,
  s.confidence_score, s.detected_objects, s.detected_text, s.content_description,
  toString(s.created_at), toString(s.updated_at)
ORDER BY s.sequence_number ASC`

	cypherAssetRelationships = `MATCH (:Asset {asset_id: $asset_id})-[r:SIMILAR_TO|CONTAINS]->(t)
RETURN type(r), coalesce(t.asset_id, t.segment_id), [l IN labels(t) WHERE l <> 'Entity'][0],
  r.similarity_score, r.similarity_type, r.sequence
ORDER BY type(r) ASC, r.sequence ASC, r.similarity_score DESC
LIMIT $limit`

	cypherGraphStatistics = `MATCH (n)
WITH n, coalesce([l IN labels(n) WHERE l <> 'Entity'][0], '_unlabeled') AS label
OPTIONAL MATCH (n)-[r]->()
RETURN label, count(DISTINCT n) AS nodes, count(r) AS relationships
ORDER BY label`
)

// schemaStatements 约束与索引（幂等）
var schemaStatements = []string{
	"CREATE CONSTRAINT asset_id_unique IF NOT EXISTS FOR (a:Asset) REQUIRE a.asset_id IS UNIQUE",
	"CREATE CONSTRAINT segment_id_unique IF NOT EXISTS FOR (s:Segment) REQUIRE s.segment_id IS UNIQUE",
	"CREATE INDEX asset_mime_type_index IF NOT EXISTS FOR (a:Asset) ON (a.mime_type)",
	"CREATE INDEX asset_collection_index IF NOT EXISTS FOR (a:Asset) ON (a.collection_id)",
	"CREATE INDEX segment_confidence_index IF NOT EXISTS FOR (s:Segment) ON (s.confidence_score)",
	"CREATE INDEX similarity_score_index IF NOT EXISTS FOR ()-[r:SIMILAR_TO]-() ON (r.similarity_score)",
}

// GraphRepository 图仓储实现
type GraphRepository struct {
	client *Client
}

// NewGraphRepository 创建图仓储
func NewGraphRepository(client *Client) *GraphRepository {
	return &GraphRepository{client: client}
}

// CreateAsset 创建资产节点（不保证幂等，重复调用产生重复节点）
func (r *GraphRepository) CreateAsset(ctx context.Context, asset *entity.Asset) error {
	if err := asset.Validate(); err != nil {
		return apperrors.Validation("invalid asset: %v", err)
	}
	created, updated := timestamps(asset.CreatedAt, asset.UpdatedAt)
	_, err := r.client.run(ctx, "CreateAsset", Statement{
		Cypher: cypherCreateAsset,
		Params: map[string]any{
			"entity_id":         asset.ID,
			"asset_id":          asset.AssetID,
			"filename":          asset.Filename,
			"mime_type":         asset.MimeType,
			"file_size":         asset.FileSize,
			"processing_status": string(asset.ProcessingStatus),
			"collection_id":     asset.CollectionID,
			"tags":              nonNilStrings(asset.Tags),
			"metadata_json":     metadataJSON(asset.Metadata),
			"created_at":        created,
			"updated_at":        updated,
		},
	})
	return err
}

// CreateSegment 创建片段节点（不保证幂等）
func (r *GraphRepository) CreateSegment(ctx context.Context, segment *entity.Segment) error {
	if err := segment.Validate(); err != nil {
		return apperrors.Validation("invalid segment: %v", err)
	}
	created, updated := timestamps(segment.CreatedAt, segment.UpdatedAt)
	_, err := r.client.run(ctx, "CreateSegment", Statement{
		Cypher: cypherCreateSegment,
		Params: map[string]any{
			"entity_id":           segment.ID,
			"segment_id":          segment.SegmentID,
			"asset_id":            segment.AssetID,
			"segment_type":        segment.SegmentType,
			"sequence_number":     segment.SequenceNumber,
			"start_time":          segment.StartTime,
			"end_time":            segment.EndTime,
			"confidence_score":    segment.ConfidenceScore,
			"detected_objects":    nonNilStrings(segment.DetectedObjects),
			"detected_text":       segment.DetectedText,
			"content_description": segment.ContentDescription,
			"created_at":          created,
			"updated_at":          updated,
		},
	})
	return err
}

// LinkAssetSegment 创建 CONTAINS 边
func (r *GraphRepository) LinkAssetSegment(ctx context.Context, assetID, segmentID string, sequence int) error {
	if assetID == "" || segmentID == "" {
		return apperrors.Validation("asset_id and segment_id are required")
	}
	res, err := r.client.run(ctx, "LinkAssetSegment", Statement{
		Cypher: cypherLinkAssetSegment,
		Params: map[string]any{"asset_id": assetID, "segment_id": segmentID, "sequence": sequence},
	})
	if err != nil {
		return err
	}
	if countOf(res) == 0 {
		return apperrors.NotFound("asset %s or segment %s not found", assetID, segmentID)
	}
	return nil
}

// LinkSimilarity 创建 a -> b 的 SIMILAR_TO 边，score 必须在 [0,1]
func (r *GraphRepository) LinkSimilarity(ctx context.Context, assetA, assetB string, score float64, similarityType string) error {
	if err := entity.ValidateSimilarityScore(score); err != nil {
		return apperrors.Validation("%v", err)
	}
	if assetA == "" || assetB == "" {
		return apperrors.Validation("both asset ids are required")
	}
	if assetA == assetB {
		return apperrors.Validation("asset %s cannot be similar to itself", assetA)
	}
	if similarityType == "" {
		similarityType = entity.DefaultSimilarityType
	}
	res, err := r.client.run(ctx, "LinkSimilarity", Statement{
		Cypher: cypherLinkSimilarity,
		Params: map[string]any{
			"source_id":       assetA,
			"target_id":       assetB,
			"score":           score,
			"similarity_type": similarityType,
		},
	})
	if err != nil {
		return err
	}
	if countOf(res) == 0 {
		return apperrors.NotFound("asset %s or %s not found", assetA, assetB)
	}
	return nil
}

// FindSimilar 返回 score >= threshold 的出边，score 降序，最多 limit 条
func (r *GraphRepository) FindSimilar(ctx context.Context, assetID string, threshold float64, limit int) ([]*entity.SimilarityEdge, error) {
	if assetID == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, apperrors.Validation("threshold must be within [0,1], got %v", threshold)
	}
	limit = normalizeLimit(limit)

	res, err := r.client.run(ctx, "FindSimilar", Statement{
		Cypher: cypherFindSimilar,
		Params: map[string]any{"asset_id": assetID, "threshold": threshold, "limit": limit},
	})
	if err != nil {
		return nil, err
	}

	edges := make([]*entity.SimilarityEdge, 0, len(res.Rows))
	for _, row := range res.Rows {
		score, _ := asFloat(cell(row, 3))
		if score < threshold {
			continue
		}
		edges = append(edges, &entity.SimilarityEdge{
			SourceAssetID:   assetID,
			TargetAssetID:   asString(cell(row, 0)),
			TargetFilename:  asString(cell(row, 1)),
			TargetMimeType:  asString(cell(row, 2)),
			SimilarityScore: score,
			SimilarityType:  asString(cell(row, 4)),
			CreatedAt:       asTime(cell(row, 5)),
		})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].SimilarityScore > edges[j].SimilarityScore
	})
	return capSlice(edges, limit), nil
}

// GetRecommendations 固定阈值 0.6 的推荐，不接受调用方阈值
func (r *GraphRepository) GetRecommendations(ctx context.Context, assetID string, limit int) ([]*entity.Recommendation, error) {
	if assetID == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	limit = normalizeLimit(limit)

	res, err := r.client.run(ctx, "GetRecommendations", Statement{
		Cypher: cypherRecommendations,
		Params: map[string]any{"asset_id": assetID, "min_score": RecommendationThreshold, "limit": limit},
	})
	if err != nil {
		return nil, err
	}

	recs := make([]*entity.Recommendation, 0, len(res.Rows))
	for _, row := range res.Rows {
		score, _ := asFloat(cell(row, 4))
		if score < RecommendationThreshold {
			continue
		}
		recs = append(recs, &entity.Recommendation{
			AssetID:         asString(cell(row, 0)),
			Filename:        asString(cell(row, 1)),
			MimeType:        asString(cell(row, 2)),
			Tags:            asStrings(cell(row, 3)),
			SimilarityScore: score,
			SimilarityType:  asString(cell(row, 5)),
		})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SimilarityScore > recs[j].SimilarityScore
	})
	return capSlice(recs, limit), nil
}

// FindObjectsInSegments 查找 detected_objects 包含 objectName 的片段，置信度降序
func (r *GraphRepository) FindObjectsInSegments(ctx context.Context, objectName string, limit int) ([]*entity.SegmentObjectHit, error) {
	name := strings.ToLower(strings.TrimSpace(objectName))
	if name == "" {
		return nil, apperrors.Validation("object name is required")
	}
	limit = normalizeLimit(limit)

	res, err := r.client.run(ctx, "FindObjectsInSegments", Statement{
		Cypher: cypherObjectsInSegments,
		Params: map[string]any{"object_name": name, "limit": limit},
	})
	if err != nil {
		return nil, err
	}

	hits := make([]*entity.SegmentObjectHit, 0, len(res.Rows))
	for _, row := range res.Rows {
		confidence, _ := asFloat(cell(row, 3))
		hits = append(hits, &entity.SegmentObjectHit{
			SegmentID:          asString(cell(row, 0)),
			ContentDescription: asString(cell(row, 1)),
			DetectedObjects:    asStrings(cell(row, 2)),
			ConfidenceScore:    confidence,
			AssetID:            asString(cell(row, 4)),
			Filename:           asString(cell(row, 5)),
			MimeType:           asString(cell(row, 6)),
			CollectionID:       asString(cell(row, 7)),
			CreatedAt:          asTime(cell(row, 8)),
		})
	}
	return hits, nil
}

// GetAssetSegments 资产的全部片段，sequence_number 升序
func (r *GraphRepository) GetAssetSegments(ctx context.Context, assetID string) ([]*entity.Segment, error) {
	if assetID == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	res, err := r.client.run(ctx, "GetAssetSegments", Statement{
		Cypher: cypherAssetSegments,
		Params: map[string]any{"asset_id": assetID},
	})
	if err != nil {
		return nil, err
	}

	segments := make([]*entity.Segment, 0, len(res.Rows))
	for _, row := range res.Rows {
		seq, _ := asInt(cell(row, 3))
		start, _ := asFloat(cell(row, 4))
		end, _ := asFloat(cell(row, 5))
		confidence, _ := asFloat(cell(row, 6))
		segments = append(segments, &entity.Segment{
			Entity: entity.Entity{
				ID:        asString(cell(row, 0)),
				Type:      entity.EntityTypeSegment,
				CreatedAt: asTime(cell(row, 10)),
				UpdatedAt: asTime(cell(row, 11)),
			},
			SegmentID:          asString(cell(row, 1)),
			AssetID:            assetID,
			SegmentType:        asString(cell(row, 2)),
			SequenceNumber:     int(seq),
			StartTime:          start,
			EndTime:            end,
			ConfidenceScore:    confidence,
			DetectedObjects:    asStrings(cell(row, 7)),
			DetectedText:       asString(cell(row, 8)),
			ContentDescription: asString(cell(row, 9)),
		})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].SequenceNumber < segments[j].SequenceNumber
	})
	return segments, nil
}

// GetAssetRelationships 资产的 SIMILAR_TO / CONTAINS 出边
func (r *GraphRepository) GetAssetRelationships(ctx context.Context, assetID string, limit int) ([]*entity.Relationship, error) {
	if assetID == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	if limit <= 0 {
		limit = 100
	}
	res, err := r.client.run(ctx, "GetAssetRelationships", Statement{
		Cypher: cypherAssetRelationships,
		Params: map[string]any{"asset_id": assetID, "limit": limit},
	})
	if err != nil {
		return nil, err
	}

	rels := make([]*entity.Relationship, 0, len(res.Rows))
	for _, row := range res.Rows {
		rel := &entity.Relationship{
			SourceID:       assetID,
			Type:           asString(cell(row, 0)),
			TargetID:       asString(cell(row, 1)),
			TargetLabel:    asString(cell(row, 2)),
			SimilarityType: asString(cell(row, 4)),
		}
		if score, ok := asFloat(cell(row, 3)); ok {
			rel.Score = &score
		}
		if seq, ok := asInt(cell(row, 5)); ok {
			s := int(seq)
			rel.Sequence = &s
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// GetGraphStatistics 按主标签统计节点数与出边数，各标签之和等于总数
func (r *GraphRepository) GetGraphStatistics(ctx context.Context) (*entity.GraphStatistics, error) {
	res, err := r.client.run(ctx, "GetGraphStatistics", Statement{Cypher: cypherGraphStatistics})
	if err != nil {
		return nil, err
	}

	stats := &entity.GraphStatistics{ByLabel: make(map[string]entity.LabelStats, len(res.Rows))}
	for _, row := range res.Rows {
		label := asString(cell(row, 0))
		nodes, _ := asInt(cell(row, 1))
		rels, _ := asInt(cell(row, 2))

		ls := stats.ByLabel[label]
		ls.Nodes += nodes
		ls.Relationships += rels
		stats.ByLabel[label] = ls

		stats.TotalNodes += nodes
		stats.TotalRelationships += rels
	}
	return stats, nil
}

// HealthCheck 健康检查
func (r *GraphRepository) HealthCheck(ctx context.Context) bool {
	return r.client.HealthCheck(ctx)
}

// EnsureSchema 创建约束与索引
func (r *GraphRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.client.run(ctx, "EnsureSchema", Statement{Cypher: stmt}); err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultGraphLimit
	}
	return limit
}

func capSlice[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func countOf(res *Result) int64 {
	if res == nil || len(res.Rows) == 0 {
		return 0
	}
	n, _ := asInt(cell(res.Rows[0], 0))
	return n
}

func timestamps(created, updated time.Time) (string, string) {
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return created.UTC().Format(time.RFC3339Nano), updated.UTC().Format(time.RFC3339Nano)
}

// metadataJSON 节点属性不支持嵌套 map，序列化为 JSON 文本
func metadataJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
