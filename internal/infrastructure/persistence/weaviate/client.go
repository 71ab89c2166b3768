// Package weaviate 提供 Weaviate 向量库客户端（GraphQL + REST）
package weaviate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
)

var tracer = otel.Tracer("weaviate")

const backendName = "vector"

// hybridAlpha hybrid 查询中向量部分的权重
const hybridAlpha = 0.5

// objectNamespace 非 UUID 形式的 asset_id 映射为确定性对象 ID 时使用的命名空间
var objectNamespace = uuid.MustParse("6f1c2a4e-9d0b-5c3e-8a7f-1b2d3e4f5a6b")

// ObjectID 返回资产在 Weaviate 中的对象 ID：UUID 原样使用，其余按 SHA-1 派生
func ObjectID(assetID string) string {
	if id, err := uuid.Parse(assetID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(objectNamespace, []byte(assetID)).String()
}

// Client Weaviate 客户端
type Client struct {
	baseURL    string
	class      string
	apiKey     string
	httpClient *http.Client
}

// NewClient 创建 Weaviate 客户端
func NewClient(cfg *config.WeaviateConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	class := cfg.Class
	if class == "" {
		class = "Asset"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		class:   class,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Class 返回默认类名
func (c *Client) Class() string {
	return c.class
}

// SearchSimilar 最近邻检索
func (c *Client) SearchSimilar(ctx context.Context, vector []float32, limit int, collectionID string) ([]*entity.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "weaviate.SearchSimilar")
	defer span.End()
	span.SetAttributes(attribute.Int("weaviate.limit", limit), attribute.Int("weaviate.dim", len(vector)))

	results, err := c.get(ctx, getQuery{
		Class:  c.class,
		Vector: vector,
		Where:  collectionFilter(collectionID),
		Limit:  limit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}

// HybridSearch 文本与向量混合检索
func (c *Client) HybridSearch(ctx context.Context, text string, vector []float32, limit int) ([]*entity.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "weaviate.HybridSearch")
	defer span.End()
	span.SetAttributes(attribute.Int("weaviate.limit", limit))

	results, err := c.get(ctx, getQuery{
		Class:  c.class,
		Text:   text,
		Vector: vector,
		Hybrid: true,
		Alpha:  hybridAlpha,
		Limit:  limit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}

// TextSearch BM25 检索
func (c *Client) TextSearch(ctx context.Context, text string, limit int) ([]*entity.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "weaviate.TextSearch")
	defer span.End()
	span.SetAttributes(attribute.Int("weaviate.limit", limit))

	results, err := c.get(ctx, getQuery{
		Class: c.class,
		Text:  text,
		Limit: limit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}

// GetObject 按 ID 获取对象（附带向量）
func (c *Client) GetObject(ctx context.Context, id string) (*entity.Asset, error) {
	ctx, span := tracer.Start(ctx, "weaviate.GetObject")
	defer span.End()
	span.SetAttributes(attribute.String("weaviate.id", id))

	var obj restObject
	status, err := c.do(ctx, http.MethodGet, "/v1/objects/"+url.PathEscape(ObjectID(id))+"?include=vector", nil, &obj)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, apperrors.NotFound("object %s not found", id)
	case !is2xx(status):
		err := apperrors.BackendUnavailable(backendName, fmt.Errorf("get object: unexpected status %d", status))
		span.RecordError(err)
		return nil, err
	}
	return obj.toAsset(), nil
}

// CreateObject 创建对象
func (c *Client) CreateObject(ctx context.Context, class string, properties map[string]any, vector []float32) (string, error) {
	ctx, span := tracer.Start(ctx, "weaviate.CreateObject")
	defer span.End()

	if class == "" {
		class = c.class
	}
	body := map[string]any{
		"class":      class,
		"properties": encodeProperties(properties),
	}
	if assetID, ok := properties["entity_id"].(string); ok && assetID != "" {
		body["id"] = ObjectID(assetID)
	}
	if len(vector) > 0 {
		body["vector"] = vector
	}

	var created restObject
	status, err := c.do(ctx, http.MethodPost, "/v1/objects", body, &created)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if !is2xx(status) {
		err := apperrors.BackendUnavailable(backendName, fmt.Errorf("create object: unexpected status %d", status))
		span.RecordError(err)
		return "", err
	}
	if created.ID == "" {
		err := apperrors.BackendUnavailable(backendName, fmt.Errorf("create object: no id returned"))
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("weaviate.id", created.ID))
	return created.ID, nil
}

// UpdateObject 合并更新对象属性
func (c *Client) UpdateObject(ctx context.Context, id string, properties map[string]any, vector []float32) error {
	ctx, span := tracer.Start(ctx, "weaviate.UpdateObject")
	defer span.End()
	span.SetAttributes(attribute.String("weaviate.id", id))

	body := map[string]any{
		"class":      c.class,
		"properties": encodeProperties(properties),
	}
	if len(vector) > 0 {
		body["vector"] = vector
	}

	status, err := c.do(ctx, http.MethodPatch, "/v1/objects/"+url.PathEscape(ObjectID(id)), body, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return c.checkMutation(status, "update", id)
}

// DeleteObject 删除对象
func (c *Client) DeleteObject(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "weaviate.DeleteObject")
	defer span.End()
	span.SetAttributes(attribute.String("weaviate.id", id))

	status, err := c.do(ctx, http.MethodDelete, "/v1/objects/"+url.PathEscape(ObjectID(id)), nil, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return c.checkMutation(status, "delete", id)
}

// HealthCheck GET /v1/meta 返回 200 即健康
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "weaviate.HealthCheck")
	defer span.End()

	status, err := c.do(ctx, http.MethodGet, "/v1/meta", nil, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}
	return status == http.StatusOK
}

func (c *Client) checkMutation(status int, op, id string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound("object %s not found", id)
	case !is2xx(status):
		return apperrors.BackendUnavailable(backendName, fmt.Errorf("%s object: unexpected status %d", op, status))
	}
	return nil
}

// get 执行 Get 查询并保持后端返回顺序
func (c *Client) get(ctx context.Context, q getQuery) ([]*entity.SearchResult, error) {
	reqBody := graphQLRequest{
		Query:     q.build(),
		Variables: map[string]any{},
	}

	var resp graphQLResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/graphql", reqBody, &resp)
	if err != nil {
		return nil, err
	}
	if !is2xx(status) {
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("graphql: unexpected status %d", status))
	}
	if len(resp.Errors) > 0 {
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	kind := scoreKindFor(q)
	objects := resp.Data.Get[q.Class]
	results := make([]*entity.SearchResult, 0, len(objects))
	for i, obj := range objects {
		results = append(results, obj.toResult(kind, i))
	}
	return results, nil
}

// scoreKindFor 根据查询子句判断 score 语义
func scoreKindFor(q getQuery) entity.ScoreKind {
	hasText := strings.TrimSpace(q.Text) != ""
	switch {
	case hasText:
		return entity.ScoreRelevance
	case len(q.Vector) > 0:
		return entity.ScoreDistance
	default:
		return entity.ScoreRank
	}
}

// do 发送请求；网络错误转换为 BackendUnavailable，状态码交由调用方判断
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.BackendUnavailable(backendName, err)
	}
	defer resp.Body.Close()

	if out == nil || !is2xx(resp.StatusCode) || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to decode response: %w", err))
	}
	return resp.StatusCode, nil
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
