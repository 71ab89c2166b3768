package dto

import (
	"dataflux-query-api/internal/domain/entity"
)

// SearchRequest 检索请求体
//
// media_type 兼容单值，media_types 为多值形式，两者合并。
type SearchRequest struct {
	Query      string         `json:"query"`
	Vector     []float32      `json:"vector,omitempty"`
	MediaType  string         `json:"media_type,omitempty"`
	MediaTypes []string       `json:"media_types,omitempty"`
	Filters    map[string]any `json:"filters,omitempty"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`

	IncludeSegments bool    `json:"include_segments,omitempty"`
	ConfidenceMin   float64 `json:"confidence_min,omitempty"`
}

// ToEntity 转换为领域请求
func (r *SearchRequest) ToEntity() *entity.SearchRequest {
	mediaTypes := make([]string, 0, len(r.MediaTypes)+1)
	if r.MediaType != "" {
		mediaTypes = append(mediaTypes, r.MediaType)
	}
	mediaTypes = append(mediaTypes, r.MediaTypes...)

	return &entity.SearchRequest{
		Query:      r.Query,
		Vector:     r.Vector,
		MediaTypes: mediaTypes,
		Filters:    r.Filters,
		Limit:      r.Limit,
		Offset:     r.Offset,

		IncludeSegments: r.IncludeSegments,
		ConfidenceMin:   r.ConfidenceMin,
	}
}

// SimilarRequest 相似资产请求体
//
// threshold 省略时使用服务端默认阈值。
type SimilarRequest struct {
	AssetID    string   `json:"asset_id"`
	Limit      int      `json:"limit"`
	Threshold  *float64 `json:"threshold,omitempty"`
	MediaTypes []string `json:"media_types,omitempty"`
}

// ToEntity 转换为领域请求
func (r *SimilarRequest) ToEntity() *entity.SimilarRequest {
	return &entity.SimilarRequest{
		AssetID:    r.AssetID,
		Limit:      r.Limit,
		Threshold:  r.Threshold,
		MediaTypes: r.MediaTypes,
	}
}

// SegmentListResponse 片段列表
type SegmentListResponse struct {
	Segments []*entity.Segment `json:"segments"`
	Total    int               `json:"total"`
}

// RelationshipListResponse 关系列表
type RelationshipListResponse struct {
	AssetID       string                 `json:"asset_id"`
	Relationships []*entity.Relationship `json:"relationships"`
	Total         int                    `json:"total"`
}

// RecommendationListResponse 推荐列表
type RecommendationListResponse struct {
	AssetID         string                   `json:"asset_id"`
	Recommendations []*entity.Recommendation `json:"recommendations"`
	Total           int                      `json:"total"`
}
