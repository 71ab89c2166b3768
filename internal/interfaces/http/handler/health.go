// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessProbe 单个依赖的就绪探测
type ReadinessProbe struct {
	Name string
	// Required 为 false 时失败只标记 degraded，不影响就绪态
	Required bool
	Check    func(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version string
	probes  []ReadinessProbe
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, probes ...ReadinessProbe) *HealthHandler {
	return &HealthHandler{version: version, probes: probes}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.version,
	})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Description 并发探测各存储后端
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	type outcome struct {
		idx   int
		check *readinessCheck
	}
	results := make(chan outcome, len(h.probes))
	for i, p := range h.probes {
		go func(i int, p ReadinessProbe) {
			start := time.Now()
			err := p.Check(ctx)
			chk := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				chk.Error = err.Error()
				chk.Status = "degraded"
				if p.Required {
					chk.Status = "error"
				}
			}
			results <- outcome{idx: i, check: chk}
		}(i, p)
	}

	ready := true
	checks := make(map[string]*readinessCheck, len(h.probes))
	for range h.probes {
		o := <-results
		checks[h.probes[o.idx].Name] = o.check
		if o.check.Status == "error" {
			ready = false
		}
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
