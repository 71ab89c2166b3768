// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dataflux-query-api/pkg/errors"
)

// BindLimit 解析 limit 查询参数，缺省返回 0 交由服务层取默认值
func BindLimit(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Validation("limit must be a non-negative integer, got %q", raw)
	}
	return v, nil
}

// RequiredQuery 读取必填查询参数
func RequiredQuery(c *gin.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return "", errors.Validation("%s is required", name)
	}
	return v, nil
}
