package entity

import (
	"time"
)

// Source 结果来源后端
type Source string

const (
	SourceVector   Source = "vector"
	SourceGraph    Source = "graph"
	SourceMetadata Source = "metadata"
)

// ScoreKind 后端返回得分的语义
type ScoreKind string

const (
	// ScoreDistance 向量距离，越小越相似
	ScoreDistance ScoreKind = "distance"
	// ScoreRelevance BM25 / hybrid 相关度，越大越相关，无上界
	ScoreRelevance ScoreKind = "relevance"
	// ScoreWeight 图边权重或置信度，落在 [0,1]
	ScoreWeight ScoreKind = "weight"
	// ScoreRank 无分值，仅按返回顺序
	ScoreRank ScoreKind = "rank"
)

// SearchRequest 检索请求（不持久化）
type SearchRequest struct {
	Query        string
	Vector       []float32
	MediaTypes   []string
	CollectionID string
	Filters      map[string]any
	Limit        int
	Offset       int

	// IncludeSegments 为分页后的每条结果附带图中的片段
	IncludeSegments bool
	// ConfidenceMin 图命中与附带片段的最低置信度，0 表示不限制
	ConfidenceMin   float64
}

// HasFilters 是否带有任何过滤条件
func (r *SearchRequest) HasFilters() bool {
	return len(r.MediaTypes) > 0 || r.CollectionID != "" || len(r.Filters) > 0
}

// SimilarRequest 相似资产请求
type SimilarRequest struct {
	AssetID string
	Limit   int

	// Threshold 图相似边的最低分，nil 时取配置默认值
	Threshold  *float64
	MediaTypes []string
}

// SearchResult 单条检索结果
type SearchResult struct {
	AssetID          string           `json:"asset_id"`
	Score            float64          `json:"score"`
	ScoreKind        ScoreKind        `json:"-"`
	Sources          []Source         `json:"sources,omitempty"`
	Filename         string           `json:"filename,omitempty"`
	MimeType         string           `json:"mime_type,omitempty"`
	FileSize         int64            `json:"file_size,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status,omitempty"`
	CollectionID     string           `json:"collection_id,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	Segments         []*Segment       `json:"segments,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ResultFromAsset 由资产构造结果
func ResultFromAsset(a *Asset, score float64, kind ScoreKind) *SearchResult {
	return &SearchResult{
		AssetID:          a.AssetID,
		Score:            score,
		ScoreKind:        kind,
		Filename:         a.Filename,
		MimeType:         a.MimeType,
		FileSize:         a.FileSize,
		ProcessingStatus: a.ProcessingStatus,
		CollectionID:     a.CollectionID,
		Tags:             a.Tags,
		Metadata:         a.Metadata,
		CreatedAt:        a.CreatedAt,
	}
}
