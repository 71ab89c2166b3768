// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dataflux-query-api/internal/config"
)

var tracer = otel.Tracer("milvus")

const backendName = "vector"

// Client Milvus 客户端
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 创建 Milvus 客户端
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	mc := client.Config{Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	if cfg.User != "" && cfg.Password != "" {
		mc.Username = cfg.User
		mc.Password = cfg.Password
	}

	milvusClient, err := client.NewClient(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return NewClientWith(milvusClient, cfg), nil
}

// NewClientWith 使用已有连接创建客户端
func NewClientWith(milvusClient client.Client, cfg *config.MilvusConfig) *Client {
	return &Client{milvus: milvusClient, config: cfg}
}

// Close 关闭 Milvus 连接
func (c *Client) Close() error {
	return c.milvus.Close()
}

// Collection 资产集合名称
func (c *Client) Collection() string {
	if c.config.Collection == "" {
		return "dataflux_assets"
	}
	return c.config.Collection
}

// Ping 检查连接
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.Ping")
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.Collection()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// HasCollection 检查集合是否存在
func (c *Client) HasCollection(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", c.Collection())))
	defer span.End()

	return c.milvus.HasCollection(ctx, c.Collection())
}

// LoadCollection 加载集合到内存
func (c *Client) LoadCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", c.Collection())))
	defer span.End()

	return c.milvus.LoadCollection(ctx, c.Collection(), false)
}
