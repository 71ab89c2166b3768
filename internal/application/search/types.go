package search

import (
	"dataflux-query-api/internal/domain/entity"
)

// SearchResponse /api/v1/search 响应体，不含任何请求级字段
type SearchResponse struct {
	Results []*entity.SearchResult `json:"results"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// SimilarResponse /api/v1/similar 响应体
type SimilarResponse struct {
	SimilarAssets []*entity.SearchResult `json:"similar_assets"`
	Total         int                    `json:"total"`
}

// Result 编排结果
//
// Body 是序列化后的响应体，缓存命中时原样返回。
type Result struct {
	Body     []byte
	CacheHit bool

	// Degraded 本次请求失败或超时的后端，缓存命中时为空
	Degraded []entity.Source
}
