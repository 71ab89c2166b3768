// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataflux-query-api/internal/interfaces/http/dto"
	"dataflux-query-api/pkg/errors"
	"dataflux-query-api/pkg/logger"
)

// respondError 将错误转换为结构化响应，5xx 记录日志
func respondError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	if appErr.HTTPStatus == 0 || appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", err,
			"path", c.FullPath(),
			"code", string(appErr.Code),
		)
	}
	dto.FromAppError(c, appErr)
}
