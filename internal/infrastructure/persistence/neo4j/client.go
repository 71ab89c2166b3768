package neo4j

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"dataflux-query-api/internal/config"
)

// Client Neo4j 客户端
type Client struct {
	runner Runner
	driver string
}

// NewClient 创建 Neo4j 客户端
func NewClient(ctx context.Context, cfg *config.GraphConfig) (*Client, error) {
	runner, err := NewRunner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{runner: runner, driver: cfg.Driver}, nil
}

// NewClientWithRunner 使用指定传输创建客户端
func NewClientWithRunner(runner Runner) *Client {
	return &Client{runner: runner, driver: "custom"}
}

// run 执行语句并记录 span
func (c *Client) run(ctx context.Context, op string, stmt Statement) (*Result, error) {
	ctx, span := tracer.Start(ctx, "neo4j."+op)
	defer span.End()
	span.SetAttributes(attribute.String("neo4j.driver", c.driver))

	res, err := c.runner.Run(ctx, stmt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("neo4j.rows", len(res.Rows)))
	return res, nil
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "neo4j.HealthCheck")
	defer span.End()

	if err := c.runner.Ping(ctx); err != nil {
		span.RecordError(err)
		return false
	}
	return true
}

// Close 关闭连接
func (c *Client) Close(ctx context.Context) error {
	if err := c.runner.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j runner: %w", err)
	}
	return nil
}
