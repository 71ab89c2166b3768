package weaviate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// assetFields Asset 类查询返回的属性
var assetFields = []string{
	"entity_id",
	"filename",
	"mime_type",
	"file_size",
	"processing_status",
	"created_at",
	"metadata",
	"tags",
	"collection_id",
}

// whereFilter 单条件过滤
type whereFilter struct {
	Path     []string
	Operator string
	Value    string
}

// getQuery Get 查询参数
type getQuery struct {
	Class  string
	Text   string
	Vector []float32
	Where  *whereFilter
	Hybrid bool
	Alpha  float64
	Limit  int
	Offset int
}

// build 生成 GraphQL 查询
//
// bm25 / nearVector / where 仅在对应输入非空时出现；三者皆空时退化为 limit/offset 列表查询。
// Hybrid 且文本和向量同时存在时使用 hybrid 子句。
func (q getQuery) build() string {
	args := []string{"limit: " + strconv.Itoa(q.Limit)}
	if q.Offset > 0 {
		args = append(args, "offset: "+strconv.Itoa(q.Offset))
	}

	text := strings.TrimSpace(q.Text)
	switch {
	case q.Hybrid && text != "" && len(q.Vector) > 0:
		args = append(args, fmt.Sprintf("hybrid: {query: %s, vector: %s, alpha: %s}",
			quote(text), vectorLiteral(q.Vector), strconv.FormatFloat(q.Alpha, 'f', -1, 64)))
	default:
		if text != "" {
			args = append(args, fmt.Sprintf("bm25: {query: %s}", quote(text)))
		}
		if len(q.Vector) > 0 {
			args = append(args, fmt.Sprintf("nearVector: {vector: %s}", vectorLiteral(q.Vector)))
		}
	}
	if q.Where != nil {
		args = append(args, q.Where.literal())
	}

	var b strings.Builder
	b.WriteString("{ Get { ")
	b.WriteString(q.Class)
	b.WriteString("(")
	b.WriteString(strings.Join(args, ", "))
	b.WriteString(") { _additional { id distance score } ")
	b.WriteString(strings.Join(assetFields, " "))
	b.WriteString(" } } }")
	return b.String()
}

func (w *whereFilter) literal() string {
	path := make([]string, len(w.Path))
	for i, p := range w.Path {
		path[i] = quote(p)
	}
	return fmt.Sprintf("where: {path: [%s], operator: %s, valueText: %s}",
		strings.Join(path, ", "), w.Operator, quote(w.Value))
}

// collectionFilter collection_id 等值过滤，空值返回 nil
func collectionFilter(collectionID string) *whereFilter {
	if collectionID == "" {
		return nil
	}
	return &whereFilter{
		Path:     []string{"collection_id"},
		Operator: "Equal",
		Value:    collectionID,
	}
}

// quote 生成 GraphQL 字符串字面量（与 JSON 字符串转义规则一致）
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
