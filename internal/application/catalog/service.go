// Package catalog 资产、片段与图关系的直接查询
//
// 与检索编排不同，这里的每个操作只访问确定的后端，后端失败直接返回错误。
package catalog

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
	apperrors "dataflux-query-api/pkg/errors"
)

var tracer = otel.Tracer("catalog")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Stats /api/v1/stats 响应体
type Stats struct {
	TotalAssets        int64                        `json:"total_assets"`
	TotalSegments      int64                        `json:"total_segments"`
	TotalNodes         int64                        `json:"total_nodes"`
	TotalRelationships int64                        `json:"total_relationships"`
	ByLabel            map[string]entity.LabelStats `json:"by_label"`
}

// Service 目录查询服务
type Service struct {
	graph    repository.GraphStore
	metadata repository.MetadataStore
}

// NewService 创建目录查询服务
func NewService(graph repository.GraphStore, metadata repository.MetadataStore) *Service {
	return &Service{graph: graph, metadata: metadata}
}

// GetSegment 片段详情，不存在时返回 NotFound
func (s *Service) GetSegment(ctx context.Context, segmentID string) (*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "catalog.Service.GetSegment")
	defer span.End()

	segmentID = strings.TrimSpace(segmentID)
	if segmentID == "" {
		return nil, apperrors.Validation("segment id is required")
	}
	seg, err := s.metadata.GetSegment(ctx, segmentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if seg == nil {
		return nil, apperrors.NotFound("segment %s not found", segmentID)
	}
	return seg, nil
}

// AssetSegments 资产的片段，按序号升序
func (s *Service) AssetSegments(ctx context.Context, assetID string) ([]*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "catalog.Service.AssetSegments")
	defer span.End()

	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, apperrors.Validation("asset id is required")
	}
	segments, err := s.graph.GetAssetSegments(ctx, assetID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if segments == nil {
		segments = []*entity.Segment{}
	}
	return segments, nil
}

// Relationships 资产的出边
func (s *Service) Relationships(ctx context.Context, assetID string, limit int) ([]*entity.Relationship, error) {
	ctx, span := tracer.Start(ctx, "catalog.Service.Relationships")
	defer span.End()

	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	rels, err := s.graph.GetAssetRelationships(ctx, assetID, clampLimit(limit))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if rels == nil {
		rels = []*entity.Relationship{}
	}
	return rels, nil
}

// Recommendations 固定阈值的推荐
func (s *Service) Recommendations(ctx context.Context, assetID string, limit int) ([]*entity.Recommendation, error) {
	ctx, span := tracer.Start(ctx, "catalog.Service.Recommendations")
	defer span.End()

	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	recs, err := s.graph.GetRecommendations(ctx, assetID, clampLimit(limit))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if recs == nil {
		recs = []*entity.Recommendation{}
	}
	return recs, nil
}

// Stats 并行汇总关系库计数与图统计
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "catalog.Service.Stats")
	defer span.End()

	var (
		out   Stats
		graph *entity.GraphStatistics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.metadata.CountAssets(gctx)
		out.TotalAssets = n
		return err
	})
	g.Go(func() error {
		n, err := s.metadata.CountSegments(gctx)
		out.TotalSegments = n
		return err
	})
	g.Go(func() error {
		var err error
		graph, err = s.graph.GetGraphStatistics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out.ByLabel = map[string]entity.LabelStats{}
	if graph != nil {
		out.TotalNodes = graph.TotalNodes
		out.TotalRelationships = graph.TotalRelationships
		if graph.ByLabel != nil {
			out.ByLabel = graph.ByLabel
		}
	}
	return &out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
