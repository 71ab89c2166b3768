package milvus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
)

// rrfK RRF 常数
const rrfK = 60

// Repository 基于 Milvus 的向量库实现
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) dim() int {
	if r.client.config.Dimension > 0 {
		return r.client.config.Dimension
	}
	return 512
}

func (r *Repository) metric() entity.MetricType {
	switch strings.ToUpper(r.client.config.MetricType) {
	case "L2":
		return entity.L2
	case "IP":
		return entity.IP
	default:
		return entity.COSINE
	}
}

// toDistance 统一为越小越相似的距离，COSINE/IP 的相似度转换为 1-s
func (r *Repository) toDistance(score float32) float64 {
	if r.metric() == entity.L2 {
		return float64(score)
	}
	return 1 - float64(score)
}

// SearchSimilar 最近邻检索
func (r *Repository) SearchSimilar(ctx context.Context, vector []float32, limit int, collectionID string) ([]*domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "milvus.SearchSimilar",
		trace.WithAttributes(attribute.Int("top_k", limit)))
	defer span.End()

	expr := ""
	if collectionID != "" {
		expr = fieldCollectionID + " == " + quote(collectionID)
	}
	results, err := r.search(ctx, vector, expr, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func (r *Repository) search(ctx context.Context, vector []float32, expr string, limit int) ([]*domain.SearchResult, error) {
	if len(vector) == 0 {
		return nil, apperrors.Validation("vector is required")
	}
	ef := r.client.config.SearchEf
	if ef < limit {
		ef = limit
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	res, err := r.client.milvus.Search(ctx,
		r.client.Collection(),
		nil,
		expr,
		scalarFields,
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		r.metric(),
		limit,
		sp,
	)
	if err != nil {
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to search: %w", err))
	}

	var out []*domain.SearchResult
	for _, result := range res {
		for i := 0; i < result.ResultCount; i++ {
			row := rowFrom(result.Fields, i)
			sr := domain.ResultFromAsset(row.toAsset(), r.toDistance(result.Scores[i]), domain.ScoreDistance)
			sr.Sources = []domain.Source{domain.SourceVector}
			out = append(out, sr)
		}
	}
	return out, nil
}

// TextSearch 文件名子串匹配，按返回顺序排名
func (r *Repository) TextSearch(ctx context.Context, text string, limit int) ([]*domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "milvus.TextSearch",
		trace.WithAttributes(attribute.Int("top_k", limit)))
	defer span.End()

	rows, err := r.query(ctx, fieldFilename+" like "+likePattern(strings.TrimSpace(text)), limit, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]*domain.SearchResult, 0, len(rows))
	for i, row := range rows {
		sr := domain.ResultFromAsset(row.toAsset(), float64(i), domain.ScoreRank)
		sr.Sources = []domain.Source{domain.SourceVector}
		out = append(out, sr)
	}
	return out, nil
}

// HybridSearch 向量召回与文本召回按 RRF 融合
func (r *Repository) HybridSearch(ctx context.Context, text string, vector []float32, limit int) ([]*domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "milvus.HybridSearch",
		trace.WithAttributes(attribute.Int("top_k", limit)))
	defer span.End()

	// 多召回用于重排
	vecResults, err := r.search(ctx, vector, "", limit*2)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var kwResults []*domain.SearchResult
	if strings.TrimSpace(text) != "" {
		kwResults, err = r.TextSearch(ctx, text, limit*2)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	merged := fusionRank(vecResults, kwResults, 0.5, 0.5)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	span.SetAttributes(attribute.Int("result_count", len(merged)))
	return merged, nil
}

// fusionRank RRF 融合重排
func fusionRank(vecResults, kwResults []*domain.SearchResult, vecWeight, kwWeight float64) []*domain.SearchResult {
	scores := make(map[string]float64)
	results := make(map[string]*domain.SearchResult)
	var order []string

	for i, res := range vecResults {
		scores[res.AssetID] += vecWeight / (rrfK + float64(i+1))
		if _, ok := results[res.AssetID]; !ok {
			results[res.AssetID] = res
			order = append(order, res.AssetID)
		}
	}
	for i, res := range kwResults {
		scores[res.AssetID] += kwWeight / (rrfK + float64(i+1))
		if _, ok := results[res.AssetID]; !ok {
			results[res.AssetID] = res
			order = append(order, res.AssetID)
		}
	}

	merged := make([]*domain.SearchResult, 0, len(order))
	for _, id := range order {
		res := results[id]
		res.Score = scores[id]
		res.ScoreKind = domain.ScoreRelevance
		merged = append(merged, res)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

// GetObject 按主键获取对象（附带向量）
func (r *Repository) GetObject(ctx context.Context, id string) (*domain.Asset, error) {
	ctx, span := tracer.Start(ctx, "milvus.GetObject",
		trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	row, err := r.get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if row == nil {
		return nil, apperrors.NotFound("object %s not found", id)
	}
	return row.toAsset(), nil
}

func (r *Repository) get(ctx context.Context, id string) (*assetRow, error) {
	rows, err := r.query(ctx, fieldID+" == "+quote(id), 1, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *Repository) query(ctx context.Context, expr string, limit int, withVector bool) ([]*assetRow, error) {
	fields := scalarFields
	if withVector {
		fields = append(append([]string{}, scalarFields...), fieldVector)
	}
	rs, err := r.client.milvus.Query(ctx, r.client.Collection(), nil, expr, fields, client.WithLimit(int64(limit)))
	if err != nil {
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to query: %w", err))
	}
	n := 0
	if c := rs.GetColumn(fieldID); c != nil {
		n = c.Len()
	}
	rows := make([]*assetRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, rowFrom(rs, i))
	}
	return rows, nil
}

// CreateObject 插入对象，主键取 entity_id，缺省时生成 UUID；class 固定为配置的集合
func (r *Repository) CreateObject(ctx context.Context, class string, properties map[string]any, vector []float32) (string, error) {
	ctx, span := tracer.Start(ctx, "milvus.CreateObject",
		trace.WithAttributes(attribute.String("class", class)))
	defer span.End()

	if len(vector) != r.dim() {
		return "", apperrors.Validation("vector dimension must be %d, got %d", r.dim(), len(vector))
	}
	row := rowFromProperties(nil, properties)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.Vector = vector

	if _, err := r.client.milvus.Insert(ctx, r.client.Collection(), "", columns([]*assetRow{row}, r.dim())...); err != nil {
		span.RecordError(err)
		return "", apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to insert object: %w", err))
	}
	return row.ID, nil
}

// UpdateObject 读取-合并-Upsert，vector 为空时保留原向量
func (r *Repository) UpdateObject(ctx context.Context, id string, properties map[string]any, vector []float32) error {
	ctx, span := tracer.Start(ctx, "milvus.UpdateObject",
		trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	existing, err := r.get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if existing == nil {
		return apperrors.NotFound("object %s not found", id)
	}

	row := rowFromProperties(existing, properties)
	row.ID = id
	if len(vector) > 0 {
		if len(vector) != r.dim() {
			return apperrors.Validation("vector dimension must be %d, got %d", r.dim(), len(vector))
		}
		row.Vector = vector
	}

	if _, err := r.client.milvus.Upsert(ctx, r.client.Collection(), "", columns([]*assetRow{row}, r.dim())...); err != nil {
		span.RecordError(err)
		return apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to upsert object: %w", err))
	}
	return nil
}

// DeleteObject 删除对象
func (r *Repository) DeleteObject(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "milvus.DeleteObject",
		trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	existing, err := r.get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if existing == nil {
		return apperrors.NotFound("object %s not found", id)
	}
	if err := r.client.milvus.Delete(ctx, r.client.Collection(), "", fieldID+" == "+quote(id)); err != nil {
		span.RecordError(err)
		return apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to delete object: %w", err))
	}
	return nil
}

// HealthCheck 健康检查
func (r *Repository) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx) == nil
}

// EnsureCollection 确保集合与索引可用（不存在则创建），返回是否新建
func (r *Repository) EnsureCollection(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection",
		trace.WithAttributes(attribute.String("collection", r.client.Collection())))
	defer span.End()

	exists, err := r.client.HasCollection(ctx)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		schema := AssetSchema(r.client.Collection(), r.dim())
		if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return false, fmt.Errorf("failed to create collection: %w", err)
		}
		if err := r.createIndex(ctx); err != nil {
			span.RecordError(err)
			return false, err
		}
	}

	if err := r.client.LoadCollection(ctx); err != nil {
		span.RecordError(err)
		return !exists, fmt.Errorf("failed to load collection: %w", err)
	}
	return !exists, nil
}

// createIndex 创建 HNSW 索引
func (r *Repository) createIndex(ctx context.Context) error {
	m, ef := r.client.config.HNSWM, r.client.config.HNSWEfConstruction
	if m <= 0 {
		m = 16
	}
	if ef <= 0 {
		ef = 200
	}
	idx, err := entity.NewIndexHNSW(r.metric(), m, ef)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	if err := r.client.milvus.CreateIndex(ctx, r.client.Collection(), fieldVector, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
