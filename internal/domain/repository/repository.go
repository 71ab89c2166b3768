// Package repository 定义数据访问层接口
//
// 检索编排只依赖这里的能力接口，具体后端实现位于 infrastructure/persistence。
package repository

import (
	"context"
	"time"

	"dataflux-query-api/internal/domain/entity"
)

// VectorStore 向量库能力
type VectorStore interface {
	// SearchSimilar 最近邻检索，collectionID 为空时不加 where 条件
	SearchSimilar(ctx context.Context, vector []float32, limit int, collectionID string) ([]*entity.SearchResult, error)

	// HybridSearch BM25 + 向量混合检索
	HybridSearch(ctx context.Context, text string, vector []float32, limit int) ([]*entity.SearchResult, error)

	// TextSearch 纯 BM25 检索
	TextSearch(ctx context.Context, text string, limit int) ([]*entity.SearchResult, error)

	// GetObject 获取对象，不存在时返回 NotFound
	GetObject(ctx context.Context, id string) (*entity.Asset, error)

	// CreateObject 创建对象并返回 ID
	CreateObject(ctx context.Context, class string, properties map[string]any, vector []float32) (string, error)

	// UpdateObject 更新对象属性，vector 非空时同时替换向量
	UpdateObject(ctx context.Context, id string, properties map[string]any, vector []float32) error

	// DeleteObject 删除对象
	DeleteObject(ctx context.Context, id string) error

	// HealthCheck 健康检查
	HealthCheck(ctx context.Context) bool
}

// GraphStore 图数据库能力
type GraphStore interface {
	CreateAsset(ctx context.Context, asset *entity.Asset) error
	CreateSegment(ctx context.Context, segment *entity.Segment) error
	LinkAssetSegment(ctx context.Context, assetID, segmentID string, sequence int) error
	LinkSimilarity(ctx context.Context, assetA, assetB string, score float64, similarityType string) error

	// FindSimilar 返回 score >= threshold 的出边，按 score 降序
	FindSimilar(ctx context.Context, assetID string, threshold float64, limit int) ([]*entity.SimilarityEdge, error)

	// GetRecommendations 使用固定阈值 0.6 的推荐
	GetRecommendations(ctx context.Context, assetID string, limit int) ([]*entity.Recommendation, error)

	FindObjectsInSegments(ctx context.Context, objectName string, limit int) ([]*entity.SegmentObjectHit, error)
	GetAssetSegments(ctx context.Context, assetID string) ([]*entity.Segment, error)
	GetAssetRelationships(ctx context.Context, assetID string, limit int) ([]*entity.Relationship, error)
	GetGraphStatistics(ctx context.Context) (*entity.GraphStatistics, error)
	HealthCheck(ctx context.Context) bool
}

// MetadataFilter 关系库过滤条件
type MetadataFilter struct {
	Query            string
	MediaTypes       []string
	CollectionID     string
	ProcessingStatus entity.ProcessingStatus
	Tags             []string
	Limit            int
}

// MetadataStore 关系型元数据存储能力
type MetadataStore interface {
	// SearchAssets 按过滤条件检索，created_at 降序
	SearchAssets(ctx context.Context, filter MetadataFilter) ([]*entity.Asset, error)

	// GetAsset 不存在时返回 nil, nil
	GetAsset(ctx context.Context, assetID string) (*entity.Asset, error)

	// GetSegment 不存在时返回 nil, nil
	GetSegment(ctx context.Context, segmentID string) (*entity.Segment, error)

	CountAssets(ctx context.Context) (int64, error)
	CountSegments(ctx context.Context) (int64, error)
	HealthCheck(ctx context.Context) error
}

// ResultCache 检索结果缓存
type ResultCache interface {
	// Get 命中时返回原始载荷；未命中返回 nil, false, nil
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set 写入载荷，过期时间从写入时刻固定计算
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}
