package neo4j

import (
	"context"
	"errors"
	"fmt"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"dataflux-query-api/internal/config"
	apperrors "dataflux-query-api/pkg/errors"
)

// BoltRunner 通过官方驱动的 Bolt 协议执行 Cypher
type BoltRunner struct {
	driver   driver.DriverWithContext
	database string
}

// NewBoltRunner 创建 Bolt 传输并校验连通性
func NewBoltRunner(ctx context.Context, cfg *config.GraphConfig) (*BoltRunner, error) {
	d, err := driver.NewDriverWithContext(cfg.BoltURI, driver.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}
	return &BoltRunner{driver: d, database: cfg.Database}, nil
}

// Run 执行单条语句
func (r *BoltRunner) Run(ctx context.Context, stmt Statement) (*Result, error) {
	session := r.driver.NewSession(ctx, driver.SessionConfig{
		DatabaseName: r.database,
		AccessMode:   driver.AccessModeWrite,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, stmt.Cypher, stmt.Params)
	if err != nil {
		return nil, translateBoltError(err)
	}

	keys, err := result.Keys()
	if err != nil {
		return nil, translateBoltError(err)
	}

	res := &Result{Columns: keys}
	for result.Next(ctx) {
		res.Rows = append(res.Rows, result.Record().Values)
	}
	if err := result.Err(); err != nil {
		return nil, translateBoltError(err)
	}
	return res, nil
}

// Ping 校验连通性
func (r *BoltRunner) Ping(ctx context.Context) error {
	if err := r.driver.VerifyConnectivity(ctx); err != nil {
		return apperrors.BackendUnavailable(backendName, err)
	}
	return nil
}

// Close 关闭驱动
func (r *BoltRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// translateBoltError 服务端错误保留首条消息，其余视为后端不可用
func translateBoltError(err error) error {
	var neoErr *driver.Neo4jError
	if errors.As(err, &neoErr) {
		return apperrors.GraphQuery(neoErr.Code, neoErr.Msg)
	}
	return apperrors.BackendUnavailable(backendName, err)
}
