// Package main 存储初始化命令：建表、向量 schema、图约束，并可选导入种子事件
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"dataflux-query-api/internal/application/bootstrap"
	"dataflux-query-api/internal/application/ingest"
	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/wire"
	"dataflux-query-api/pkg/logger"
)

func main() {
	seedFile := flag.String("seed", "", "JSONL file of write-side events to import")
	direct := flag.Bool("direct", false, "apply seed events in-process instead of publishing to the stream")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall bootstrap timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deps, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize bootstrap dependencies", err)
	}
	defer cleanup()

	runner := bootstrap.NewRunner()
	runner.Add("postgres-migrate", deps.Metadata.Migrate)
	runner.Add("vector-schema", func(ctx context.Context) error {
		created, err := deps.Vector.EnsureSchema(ctx)
		if err != nil {
			return err
		}
		logger.Info(ctx, "vector schema ready", "provider", cfg.Vector.Provider, "class", deps.Vector.Class, "created", created)
		return nil
	})
	runner.Add("graph-schema", deps.Graph.EnsureSchema)

	if *seedFile != "" {
		runner.Add("seed", func(ctx context.Context) error {
			f, err := os.Open(*seedFile)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			if !*direct {
				n, err := bootstrap.Seed(ctx, f, deps.Producer)
				logger.Info(ctx, "seed events published", "count", n)
				return err
			}

			// 直写模式下元数据在同一事务内提交
			dispatcher := ingest.NewDispatcher()
			deps.Applier.Register(dispatcher)
			return deps.TxMgr.WithTransaction(ctx, func(txCtx context.Context) error {
				n, err := bootstrap.Seed(txCtx, f, dispatcher)
				logger.Info(txCtx, "seed events applied", "count", n)
				return err
			})
		})
	}

	if err := runner.Run(ctx); err != nil {
		logger.Fatal(ctx, "bootstrap failed", err)
	}
	logger.Info(ctx, "bootstrap completed")
}
