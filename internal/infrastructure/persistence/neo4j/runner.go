// Package neo4j 提供 Neo4j 图数据库访问层实现
//
// Cypher 逻辑与传输解耦：HTTP 事务端点与 Bolt 驱动都实现 Runner，
// 结果统一解码为按列排列的行。
package neo4j

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"dataflux-query-api/internal/config"
)

var tracer = otel.Tracer("neo4j")

const backendName = "graph"

// Statement 参数化 Cypher 语句
type Statement struct {
	Cypher string
	Params map[string]any
}

// Result 单条语句的结果
type Result struct {
	Columns []string
	Rows    [][]any
}

// Runner 执行 Cypher 的传输层
type Runner interface {
	// Run 执行单条语句；存储返回的错误转换为 GraphQueryError，传输错误转换为 BackendUnavailable
	Run(ctx context.Context, stmt Statement) (*Result, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewRunner 按配置选择传输方式
func NewRunner(ctx context.Context, cfg *config.GraphConfig) (Runner, error) {
	switch cfg.Driver {
	case "", "http":
		return NewHTTPRunner(cfg), nil
	case "bolt":
		return NewBoltRunner(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported graph driver %q", cfg.Driver)
	}
}
