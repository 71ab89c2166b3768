//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"dataflux-query-api/internal/application/catalog"
	"dataflux-query-api/internal/application/search"
	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/repository"
	"dataflux-query-api/internal/infrastructure/persistence/neo4j"
	"dataflux-query-api/internal/infrastructure/persistence/postgres"
	"dataflux-query-api/internal/infrastructure/persistence/redis"
	"dataflux-query-api/internal/interfaces/http/handler"
	"dataflux-query-api/internal/interfaces/http/router"
)

// InitializeApp 初始化查询 API（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StoreSet,
		RedisSet,
		SearchSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化图同步 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		StoreSet,
		RedisSet,
		ProvideMessagingConsumer,
		ProvideApplier,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeBootstrap 初始化 bootstrap 命令依赖
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		ProvidePostgresClient,
		postgres.NewMetadataRepository,
		postgres.NewTxManager,
		ProvideGraphClient,
		neo4j.NewGraphRepository,
		ProvideVectorBackend,
		ProvideRedisClient,
		ProvideMessagingProducer,
		wire.Bind(new(repository.GraphStore), new(*neo4j.GraphRepository)),
		ProvideApplier,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}

// StoreSet 三类存储后端
var StoreSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewMetadataRepository,
	wire.Bind(new(repository.MetadataStore), new(*postgres.MetadataRepository)),
	ProvideGraphClient,
	neo4j.NewGraphRepository,
	wire.Bind(new(repository.GraphStore), new(*neo4j.GraphRepository)),
	ProvideVectorBackend,
	ProvideVectorStore,
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
)

// SearchSet 检索编排与目录查询
var SearchSet = wire.NewSet(
	ProvideResultCache,
	search.NewOrchestrator,
	catalog.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	wire.Bind(new(handler.Searcher), new(*search.Orchestrator)),
	wire.Bind(new(handler.Catalog), new(*catalog.Service)),
	handler.NewSearchHandler,
	handler.NewCatalogHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)
