// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"

	"dataflux-query-api/internal/application/catalog"
	"dataflux-query-api/internal/application/ingest"
	"dataflux-query-api/internal/application/search"
	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/repository"
	"dataflux-query-api/internal/infrastructure/messaging"
	"dataflux-query-api/internal/infrastructure/persistence/milvus"
	"dataflux-query-api/internal/infrastructure/persistence/neo4j"
	"dataflux-query-api/internal/infrastructure/persistence/postgres"
	"dataflux-query-api/internal/infrastructure/persistence/redis"
	"dataflux-query-api/internal/infrastructure/persistence/weaviate"
	"dataflux-query-api/internal/interfaces/http/handler"
	"dataflux-query-api/internal/interfaces/http/router"
	"dataflux-query-api/pkg/logger"
)

// VectorBackend 按配置选定的向量库实现
type VectorBackend struct {
	Store        repository.VectorStore
	Class        string
	EnsureSchema func(ctx context.Context) (bool, error)
}

// Worker 图同步 worker 依赖容器
type Worker struct {
	Consumer *messaging.Consumer
	Applier  *ingest.Applier
}

// Bootstrap 初始化命令依赖容器
type Bootstrap struct {
	Metadata *postgres.MetadataRepository
	TxMgr    *postgres.TxManager
	Graph    *neo4j.GraphRepository
	Vector   *VectorBackend
	Producer *messaging.Producer
	Applier  *ingest.Applier
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideGraphClient 提供 Neo4j 客户端，传输由 graph.driver 决定
func ProvideGraphClient(ctx context.Context, cfg *config.Config) (*neo4j.Client, func(), error) {
	client, err := neo4j.NewClient(ctx, &cfg.Graph)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn(ctx, "failed to close graph client", "error", err.Error())
		}
	}
	return client, cleanup, nil
}

// ProvideVectorBackend 按 vector.provider 选择 Weaviate 或 Milvus
func ProvideVectorBackend(ctx context.Context, cfg *config.Config) (*VectorBackend, func(), error) {
	switch cfg.Vector.Provider {
	case "milvus":
		client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			return nil, nil, err
		}
		repo := milvus.NewRepository(client)
		cleanup := func() {
			_ = client.Close()
		}
		return &VectorBackend{
			Store:        repo,
			Class:        cfg.Vector.Milvus.Collection,
			EnsureSchema: repo.EnsureCollection,
		}, cleanup, nil
	case "weaviate", "":
		client := weaviate.NewClient(&cfg.Vector.Weaviate)
		return &VectorBackend{
			Store:        client,
			Class:        client.Class(),
			EnsureSchema: client.EnsureSchema,
		}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported vector provider %q", cfg.Vector.Provider)
	}
}

// ProvideVectorStore 提取向量库能力接口
func ProvideVectorStore(b *VectorBackend) repository.VectorStore {
	return b.Store
}

// ProvideResultCache 结果缓存，cache.result.enabled 为 false 时返回 nil
func ProvideResultCache(cfg *config.Config, cache *redis.Cache) repository.ResultCache {
	if !cfg.Cache.Result.Enabled {
		return nil
	}
	return cache
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewProducer(redisClient.Redis(), messaging.Stream(rs.Stream), rs.MaxLen)
}

// ProvideMessagingConsumer 提供图同步消费者
func ProvideMessagingConsumer(redisClient *redis.Client, cfg *config.Config) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	stream := messaging.Stream(rs.Stream)
	if stream == "" {
		stream = messaging.StreamAssetEvents
	}
	group := messaging.ConsumerGroup(rs.ConsumerGroup)
	if group == "" {
		group = messaging.ConsumerGroupGraphSync
	}

	host, _ := os.Hostname()
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        stream,
		Group:         group,
		ConsumerName:  fmt.Sprintf("%s-%s-%d", cfg.App.Name, host, os.Getpid()),
		BatchSize:     rs.BatchSize,
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		ClaimMinIdle:  rs.ClaimMinIdle,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}

// ProvideApplier 提供写侧事件应用器
func ProvideApplier(graph repository.GraphStore, vector *VectorBackend, metadata *postgres.MetadataRepository) *ingest.Applier {
	return ingest.NewApplier(graph, vector.Store, metadata, vector.Class)
}

// ProvideHealthHandler 提供健康检查处理器
//
// postgres 与 redis 为必需依赖，向量库和图库失败只标记 degraded。
func ProvideHealthHandler(
	cfg *config.Config,
	pg *postgres.Client,
	redisClient *redis.Client,
	vector repository.VectorStore,
	graph repository.GraphStore,
) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version,
		handler.ReadinessProbe{Name: "postgres", Required: true, Check: pg.HealthCheck},
		handler.ReadinessProbe{Name: "redis", Required: true, Check: redisClient.HealthCheck},
		handler.ReadinessProbe{Name: "vector", Check: boolProbe("vector", vector.HealthCheck)},
		handler.ReadinessProbe{Name: "graph", Check: boolProbe("graph", graph.HealthCheck)},
	)
}

func boolProbe(name string, check func(ctx context.Context) bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if !check(ctx) {
			return fmt.Errorf("%s health check failed", name)
		}
		return nil
	}
}

// ProvideRouter 提供 HTTP 路由器
func ProvideRouter(cfg *config.Config, h router.Handlers, limiter *redis.RateLimiter) *router.Router {
	return router.New(cfg, h, limiter, redis.BuildRateLimitKey)
}

var (
	_ repository.VectorStore = (*weaviate.Client)(nil)
	_ repository.VectorStore = (*milvus.Repository)(nil)
	_ repository.GraphStore  = (*neo4j.GraphRepository)(nil)
	_ handler.Searcher       = (*search.Orchestrator)(nil)
	_ handler.Catalog        = (*catalog.Service)(nil)
	_ ingest.MetadataWriter  = (*postgres.MetadataRepository)(nil)
)
