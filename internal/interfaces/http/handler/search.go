package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"dataflux-query-api/internal/application/search"
	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/interfaces/http/dto"
	"dataflux-query-api/internal/interfaces/http/middleware"
)

// Searcher 检索编排能力
type Searcher interface {
	Search(ctx context.Context, req *entity.SearchRequest) (*search.Result, error)
	Similar(ctx context.Context, req *entity.SimilarRequest) (*search.Result, error)
}

// SearchHandler 检索处理器
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search 跨后端检索
// @Summary 跨后端检索资产
// @Description 向量、图与元数据三路并发检索，融合排序后分页
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} search.SearchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	res, err := h.searcher.Search(c.Request.Context(), req.ToEntity())
	if err != nil {
		respondError(c, err)
		return
	}
	writeResult(c, res)
}

// Similar 相似资产
// @Summary 查找相似资产
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SimilarRequest true "相似请求"
// @Success 200 {object} search.SimilarResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/similar [post]
func (h *SearchHandler) Similar(c *gin.Context) {
	var req dto.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	res, err := h.searcher.Similar(c.Request.Context(), req.ToEntity())
	if err != nil {
		respondError(c, err)
		return
	}
	writeResult(c, res)
}

func writeResult(c *gin.Context, res *search.Result) {
	if res.CacheHit {
		c.Header(middleware.CacheHeader, "HIT")
	} else {
		c.Header(middleware.CacheHeader, "MISS")
	}
	if len(res.Degraded) > 0 {
		names := make([]string, len(res.Degraded))
		for i, s := range res.Degraded {
			names[i] = string(s)
		}
		c.Header(middleware.DegradedHeader, strings.Join(names, ","))
	}
	dto.JSONBody(c, res.Body)
}
