// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"dataflux-query-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	searchHandler *handler.SearchHandler,
	catalogHandler *handler.CatalogHandler,
) {
	// 检索
	v1.POST("/search", searchHandler.Search)
	v1.POST("/similar", searchHandler.Similar)

	// 片段与资产
	v1.GET("/segments/:id", catalogHandler.GetSegment)
	v1.GET("/assets/:id/segments", catalogHandler.AssetSegments)

	// 图关系
	v1.GET("/relationships", catalogHandler.Relationships)
	v1.GET("/recommendations", catalogHandler.Recommendations)

	v1.GET("/stats", catalogHandler.Stats)
}
