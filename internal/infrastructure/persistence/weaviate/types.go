package weaviate

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"dataflux-query-api/internal/domain/entity"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data struct {
		Get map[string][]gqlObject `json:"Get"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// flexFloat 兼容数字和字符串两种编码（Weaviate 的 score 以字符串返回）
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unq
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.Value, f.Valid = v, true
	return nil
}

// assetProps Asset 类属性
type assetProps struct {
	EntityID         string          `json:"entity_id"`
	Filename         string          `json:"filename"`
	MimeType         string          `json:"mime_type"`
	FileSize         flexFloat       `json:"file_size"`
	ProcessingStatus string          `json:"processing_status"`
	CreatedAt        string          `json:"created_at"`
	Metadata         json.RawMessage `json:"metadata"`
	Tags             []string        `json:"tags"`
	CollectionID     string          `json:"collection_id"`
}

type additional struct {
	ID       string    `json:"id"`
	Distance flexFloat `json:"distance"`
	Score    flexFloat `json:"score"`
}

// gqlObject Get 结果条目：_additional 与属性平铺在同一层
type gqlObject struct {
	Additional additional
	Props      assetProps
}

func (o *gqlObject) UnmarshalJSON(b []byte) error {
	var head struct {
		Additional additional `json:"_additional"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &o.Props); err != nil {
		return err
	}
	o.Additional = head.Additional
	return nil
}

type restObject struct {
	ID                 string     `json:"id"`
	Class              string     `json:"class"`
	Properties         assetProps `json:"properties"`
	Vector             []float32  `json:"vector"`
	CreationTimeUnix   int64      `json:"creationTimeUnix"`
	LastUpdateTimeUnix int64      `json:"lastUpdateTimeUnix"`
}

func (o gqlObject) toResult(kind entity.ScoreKind, rank int) *entity.SearchResult {
	a := o.Props.toAsset(o.Additional.ID)
	var score float64
	switch kind {
	case entity.ScoreDistance:
		score = o.Additional.Distance.Value
	case entity.ScoreRelevance:
		score = o.Additional.Score.Value
	default:
		score = float64(rank)
	}
	r := entity.ResultFromAsset(a, score, kind)
	r.Sources = []entity.Source{entity.SourceVector}
	return r
}

func (o restObject) toAsset() *entity.Asset {
	a := o.Properties.toAsset(o.ID)
	a.Vector = o.Vector
	if a.CreatedAt.IsZero() && o.CreationTimeUnix > 0 {
		a.CreatedAt = time.UnixMilli(o.CreationTimeUnix).UTC()
	}
	if o.LastUpdateTimeUnix > 0 {
		a.UpdatedAt = time.UnixMilli(o.LastUpdateTimeUnix).UTC()
	}
	return a
}

func (p assetProps) toAsset(objectID string) *entity.Asset {
	a := &entity.Asset{
		Entity: entity.Entity{
			ID:   objectID,
			Type: entity.EntityTypeAsset,
		},
		AssetID:          p.EntityID,
		Filename:         p.Filename,
		MimeType:         p.MimeType,
		FileSize:         int64(p.FileSize.Value),
		ProcessingStatus: entity.ProcessingStatus(p.ProcessingStatus),
		CollectionID:     p.CollectionID,
		Metadata:         decodeMetadata(p.Metadata),
		Tags:             p.Tags,
	}
	if a.AssetID == "" {
		a.AssetID = objectID
	}
	if t, err := time.Parse(time.RFC3339Nano, p.CreatedAt); err == nil {
		a.CreatedAt = t.UTC()
	}
	return a
}

// decodeMetadata metadata 以 JSON 文本存储，也兼容直接存对象
func decodeMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

// encodeProperties metadata 序列化为 JSON 文本，其余原样
func encodeProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "metadata" {
			if m, ok := v.(map[string]any); ok {
				b, err := json.Marshal(m)
				if err == nil {
					out[k] = string(b)
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}
