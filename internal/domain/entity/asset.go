package entity

import (
	"fmt"
	"strings"
	"time"
)

// ProcessingStatus 资产处理状态
type ProcessingStatus string

const (
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid 是否为合法状态
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Asset 媒体资产（由摄取子系统写入，本服务只读）
type Asset struct {
	Entity
	AssetID          string           `json:"asset_id"`
	Filename         string           `json:"filename"`
	MimeType         string           `json:"mime_type"`
	FileSize         int64            `json:"file_size"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CollectionID     string           `json:"collection_id,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	Tags             []string         `json:"tags,omitempty"`

	// Vector 仅在向量库显式返回时填充
	Vector []float32 `json:"-"`
}

// NewAsset 创建资产
func NewAsset(assetID, filename, mimeType string, fileSize int64) *Asset {
	return &Asset{
		Entity:           newEntity(EntityTypeAsset),
		AssetID:          assetID,
		Filename:         filename,
		MimeType:         mimeType,
		FileSize:         fileSize,
		ProcessingStatus: StatusQueued,
		Metadata:         map[string]any{},
		Tags:             []string{},
	}
}

// Validate 校验资产字段
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.AssetID) == "" {
		return fmt.Errorf("asset_id is required")
	}
	if a.FileSize < 0 {
		return fmt.Errorf("file_size must be >= 0, got %d", a.FileSize)
	}
	if a.ProcessingStatus != "" && !a.ProcessingStatus.Valid() {
		return fmt.Errorf("invalid processing_status %q", a.ProcessingStatus)
	}
	return nil
}

// MediaType 返回 mime 主类型，例如 video/mp4 -> video
func (a *Asset) MediaType() string {
	if i := strings.IndexByte(a.MimeType, '/'); i > 0 {
		return a.MimeType[:i]
	}
	return a.MimeType
}

// HasTag 是否包含标签（忽略大小写）
func (a *Asset) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// VectorProperties 向量库对象属性，asset_id 存放在 entity_id
func (a *Asset) VectorProperties() map[string]any {
	props := map[string]any{
		"entity_id":         a.AssetID,
		"filename":          a.Filename,
		"mime_type":         a.MimeType,
		"file_size":         a.FileSize,
		"processing_status": string(a.ProcessingStatus),
		"tags":              a.Tags,
		"collection_id":     a.CollectionID,
	}
	if !a.CreatedAt.IsZero() {
		props["created_at"] = a.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(a.Metadata) > 0 {
		props["metadata"] = a.Metadata
	}
	return props
}
