package weaviate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apperrors "dataflux-query-api/pkg/errors"
)

type propertyDef struct {
	Name        string   `json:"name"`
	DataType    []string `json:"dataType"`
	Description string   `json:"description,omitempty"`
}

type classDef struct {
	Class       string        `json:"class"`
	Description string        `json:"description"`
	Vectorizer  string        `json:"vectorizer"`
	Properties  []propertyDef `json:"properties"`
}

// assetClass Asset 类定义，向量由上游提供
func assetClass(name string) classDef {
	return classDef{
		Class:       name,
		Description: "Media assets with embeddings",
		Vectorizer:  "none",
		Properties: []propertyDef{
			{Name: "entity_id", DataType: []string{"text"}, Description: "Asset identifier"},
			{Name: "filename", DataType: []string{"text"}},
			{Name: "mime_type", DataType: []string{"text"}},
			{Name: "file_size", DataType: []string{"int"}},
			{Name: "processing_status", DataType: []string{"text"}},
			{Name: "created_at", DataType: []string{"date"}},
			{Name: "metadata", DataType: []string{"text"}, Description: "JSON encoded metadata"},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "collection_id", DataType: []string{"text"}},
		},
	}
}

// EnsureSchema 创建 Asset 类，已存在时跳过；返回是否新建
func (c *Client) EnsureSchema(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "weaviate.EnsureSchema")
	defer span.End()

	status, err := c.do(ctx, http.MethodGet, "/v1/schema/"+url.PathEscape(c.class), nil, nil)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if status == http.StatusOK {
		return false, nil
	}

	status, err = c.do(ctx, http.MethodPost, "/v1/schema", assetClass(c.class), nil)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if !is2xx(status) {
		err := apperrors.BackendUnavailable(backendName, fmt.Errorf("create class %s: unexpected status %d", c.class, status))
		span.RecordError(err)
		return false, err
	}
	return true, nil
}
