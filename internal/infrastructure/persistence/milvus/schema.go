package milvus

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	domain "dataflux-query-api/internal/domain/entity"
)

// 字段名
const (
	fieldID               = "id"
	fieldVector           = "vector"
	fieldFilename         = "filename"
	fieldMimeType         = "mime_type"
	fieldFileSize         = "file_size"
	fieldProcessingStatus = "processing_status"
	fieldCollectionID     = "collection_id"
	fieldCreatedAt        = "created_at"
	fieldAttrs            = "attrs"
)

var scalarFields = []string{
	fieldID, fieldFilename, fieldMimeType, fieldFileSize,
	fieldProcessingStatus, fieldCollectionID, fieldCreatedAt, fieldAttrs,
}

// AssetSchema 资产集合 Schema；tags 与 metadata 存放在 JSON 字段 attrs
func AssetSchema(collection string, dim int) *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}
	id := varchar(fieldID, 128)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: collection,
		Description:    "Media assets for similarity search",
		Fields: []*entity.Field{
			id,
			{
				Name:       fieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
			varchar(fieldFilename, 1024),
			varchar(fieldMimeType, 128),
			{Name: fieldFileSize, DataType: entity.FieldTypeInt64},
			varchar(fieldProcessingStatus, 32),
			varchar(fieldCollectionID, 128),
			{Name: fieldCreatedAt, DataType: entity.FieldTypeInt64},
			{Name: fieldAttrs, DataType: entity.FieldTypeJSON},
		},
	}
}

type attrs struct {
	Tags     []string       `json:"tags"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// assetRow 集合中的一行
type assetRow struct {
	ID               string
	Vector           []float32
	Filename         string
	MimeType         string
	FileSize         int64
	ProcessingStatus string
	CollectionID     string
	CreatedAt        int64
	Attrs            attrs
}

// rowFromProperties 将向量库属性映射为行，base 非空时在其上合并
func rowFromProperties(base *assetRow, props map[string]any) *assetRow {
	row := &assetRow{}
	if base != nil {
		*row = *base
	}
	for k, v := range props {
		switch k {
		case "entity_id":
			row.ID = toString(v)
		case fieldFilename:
			row.Filename = toString(v)
		case fieldMimeType:
			row.MimeType = toString(v)
		case fieldFileSize:
			row.FileSize = toInt64(v)
		case fieldProcessingStatus:
			row.ProcessingStatus = toString(v)
		case fieldCollectionID:
			row.CollectionID = toString(v)
		case fieldCreatedAt:
			if t, err := time.Parse(time.RFC3339Nano, toString(v)); err == nil {
				row.CreatedAt = t.UnixMilli()
			}
		case "tags":
			row.Attrs.Tags = toStrings(v)
		case "metadata":
			switch m := v.(type) {
			case map[string]any:
				row.Attrs.Metadata = m
			case string:
				_ = json.Unmarshal([]byte(m), &row.Attrs.Metadata)
			}
		}
	}
	if row.CreatedAt == 0 {
		row.CreatedAt = time.Now().UnixMilli()
	}
	if row.Attrs.Tags == nil {
		row.Attrs.Tags = []string{}
	}
	return row
}

func (r *assetRow) toAsset() *domain.Asset {
	a := &domain.Asset{
		Entity: domain.Entity{
			ID:   r.ID,
			Type: domain.EntityTypeAsset,
		},
		AssetID:          r.ID,
		Filename:         r.Filename,
		MimeType:         r.MimeType,
		FileSize:         r.FileSize,
		ProcessingStatus: domain.ProcessingStatus(r.ProcessingStatus),
		CollectionID:     r.CollectionID,
		Metadata:         r.Attrs.Metadata,
		Tags:             r.Attrs.Tags,
		Vector:           r.Vector,
	}
	if r.CreatedAt > 0 {
		a.CreatedAt = time.UnixMilli(r.CreatedAt).UTC()
		a.UpdatedAt = a.CreatedAt
	}
	return a
}

// columns 构建插入列
func columns(rows []*assetRow, dim int) []entity.Column {
	n := len(rows)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	filenames := make([]string, n)
	mimeTypes := make([]string, n)
	sizes := make([]int64, n)
	statuses := make([]string, n)
	collections := make([]string, n)
	created := make([]int64, n)
	attrsCol := make([][]byte, n)

	for i, r := range rows {
		ids[i] = r.ID
		vectors[i] = r.Vector
		filenames[i] = r.Filename
		mimeTypes[i] = r.MimeType
		sizes[i] = r.FileSize
		statuses[i] = r.ProcessingStatus
		collections[i] = r.CollectionID
		created[i] = r.CreatedAt
		b, err := json.Marshal(r.Attrs)
		if err != nil {
			b = []byte(`{"tags":[]}`)
		}
		attrsCol[i] = b
	}

	return []entity.Column{
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, dim, vectors),
		entity.NewColumnVarChar(fieldFilename, filenames),
		entity.NewColumnVarChar(fieldMimeType, mimeTypes),
		entity.NewColumnInt64(fieldFileSize, sizes),
		entity.NewColumnVarChar(fieldProcessingStatus, statuses),
		entity.NewColumnVarChar(fieldCollectionID, collections),
		entity.NewColumnInt64(fieldCreatedAt, created),
		entity.NewColumnJSONBytes(fieldAttrs, attrsCol),
	}
}

// columnGetter ResultSet 与 SearchResult.Fields 共有的按名取列能力
type columnGetter interface {
	GetColumn(name string) entity.Column
}

// rowsFrom 从结果列中读取第 i 行
func rowFrom(cols columnGetter, i int) *assetRow {
	r := &assetRow{}
	if c, ok := cols.GetColumn(fieldID).(*entity.ColumnVarChar); ok && i < c.Len() {
		r.ID = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldVector).(*entity.ColumnFloatVector); ok && i < c.Len() {
		r.Vector = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldFilename).(*entity.ColumnVarChar); ok && i < c.Len() {
		r.Filename = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldMimeType).(*entity.ColumnVarChar); ok && i < c.Len() {
		r.MimeType = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldFileSize).(*entity.ColumnInt64); ok && i < c.Len() {
		r.FileSize = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldProcessingStatus).(*entity.ColumnVarChar); ok && i < c.Len() {
		r.ProcessingStatus = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldCollectionID).(*entity.ColumnVarChar); ok && i < c.Len() {
		r.CollectionID = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldCreatedAt).(*entity.ColumnInt64); ok && i < c.Len() {
		r.CreatedAt = c.Data()[i]
	}
	if c, ok := cols.GetColumn(fieldAttrs).(*entity.ColumnJSONBytes); ok && i < c.Len() {
		_ = json.Unmarshal(c.Data()[i], &r.Attrs)
	}
	if r.Attrs.Tags == nil {
		r.Attrs.Tags = []string{}
	}
	return r
}

// quote 表达式字符串字面量
func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// likePattern 转义 like 通配符
func likePattern(s string) string {
	s = strings.NewReplacer(`%`, `\%`, `_`, `\_`).Replace(s)
	return quote("%" + s + "%")
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case domain.ProcessingStatus:
		return string(t)
	default:
		b, _ := json.Marshal(t)
		return strings.Trim(string(b), `"`)
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	}
	return 0
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	}
	return nil
}
