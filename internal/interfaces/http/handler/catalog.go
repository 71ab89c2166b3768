package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dataflux-query-api/internal/application/catalog"
	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/interfaces/http/dto"
)

// Catalog 目录查询能力
type Catalog interface {
	GetSegment(ctx context.Context, segmentID string) (*entity.Segment, error)
	AssetSegments(ctx context.Context, assetID string) ([]*entity.Segment, error)
	Relationships(ctx context.Context, assetID string, limit int) ([]*entity.Relationship, error)
	Recommendations(ctx context.Context, assetID string, limit int) ([]*entity.Recommendation, error)
	Stats(ctx context.Context) (*catalog.Stats, error)
}

// CatalogHandler 片段、关系与统计处理器
type CatalogHandler struct {
	catalog Catalog
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(catalog Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GetSegment 获取片段详情
// @Summary 获取片段详情
// @Tags Catalog
// @Produce json
// @Param id path string true "片段 ID"
// @Success 200 {object} entity.Segment
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/segments/{id} [get]
func (h *CatalogHandler) GetSegment(c *gin.Context) {
	seg, err := h.catalog.GetSegment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seg)
}

// AssetSegments 获取资产下的片段
// @Summary 资产片段列表
// @Tags Catalog
// @Produce json
// @Param id path string true "资产 ID"
// @Success 200 {object} dto.SegmentListResponse
// @Router /api/v1/assets/{id}/segments [get]
func (h *CatalogHandler) AssetSegments(c *gin.Context) {
	segments, err := h.catalog.AssetSegments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SegmentListResponse{Segments: segments, Total: len(segments)})
}

// Relationships 获取资产关系
// @Summary 资产关系列表
// @Tags Catalog
// @Produce json
// @Param asset_id query string true "资产 ID"
// @Param limit query int false "条数" default(20)
// @Success 200 {object} dto.RelationshipListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/relationships [get]
func (h *CatalogHandler) Relationships(c *gin.Context) {
	assetID, err := dto.RequiredQuery(c, "asset_id")
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := dto.BindLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rels, err := h.catalog.Relationships(c.Request.Context(), assetID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RelationshipListResponse{AssetID: assetID, Relationships: rels, Total: len(rels)})
}

// Recommendations 推荐资产
// @Summary 推荐资产
// @Description 基于相似边推荐，阈值固定为 0.6
// @Tags Catalog
// @Produce json
// @Param asset_id query string true "资产 ID"
// @Param limit query int false "条数" default(20)
// @Success 200 {object} dto.RecommendationListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/recommendations [get]
func (h *CatalogHandler) Recommendations(c *gin.Context) {
	assetID, err := dto.RequiredQuery(c, "asset_id")
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := dto.BindLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recs, err := h.catalog.Recommendations(c.Request.Context(), assetID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RecommendationListResponse{AssetID: assetID, Recommendations: recs, Total: len(recs)})
}

// Stats 统计信息
// @Summary 数据统计
// @Tags Catalog
// @Produce json
// @Success 200 {object} catalog.Stats
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/stats [get]
func (h *CatalogHandler) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
