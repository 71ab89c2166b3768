package entity

import (
	"fmt"
	"math"
	"time"
)

// 图关系类型
const (
	RelContains  = "CONTAINS"
	RelSimilarTo = "SIMILAR_TO"
)

// DefaultSimilarityType 默认相似度类型
const DefaultSimilarityType = "content_similarity"

// SimilarityEdge 资产间有向相似边 source -> target
type SimilarityEdge struct {
	SourceAssetID   string    `json:"source_asset_id"`
	TargetAssetID   string    `json:"target_asset_id"`
	SimilarityScore float64   `json:"similarity_score"`
	SimilarityType  string    `json:"similarity_type"`
	CreatedAt       time.Time `json:"created_at,omitempty"`

	// 目标资产的展示字段
	TargetFilename string `json:"target_filename,omitempty"`
	TargetMimeType string `json:"target_mime_type,omitempty"`
}

// ValidateSimilarityScore 相似度必须落在 [0,1]
func ValidateSimilarityScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return fmt.Errorf("similarity_score must be within [0,1], got %v", score)
	}
	return nil
}

// ContainsEdge 资产包含片段
type ContainsEdge struct {
	AssetID   string `json:"asset_id"`
	SegmentID string `json:"segment_id"`
	Sequence  int    `json:"sequence"`
}

// Recommendation 推荐结果
type Recommendation struct {
	AssetID         string   `json:"asset_id"`
	Filename        string   `json:"filename"`
	MimeType        string   `json:"mime_type"`
	Tags            []string `json:"tags,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
	SimilarityType  string   `json:"similarity_type"`
}

// SegmentObjectHit 片段中检测到指定对象的命中
type SegmentObjectHit struct {
	SegmentID          string    `json:"segment_id"`
	ContentDescription string    `json:"content_description,omitempty"`
	DetectedObjects    []string  `json:"detected_objects"`
	ConfidenceScore    float64   `json:"confidence_score"`
	AssetID            string    `json:"asset_id"`
	Filename           string    `json:"filename"`
	MimeType           string    `json:"mime_type"`
	CollectionID       string    `json:"collection_id,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
}

// Relationship 资产的出边
type Relationship struct {
	SourceID       string   `json:"source_id"`
	TargetID       string   `json:"target_id"`
	TargetLabel    string   `json:"target_label"`
	Type           string   `json:"type"`
	Score          *float64 `json:"score,omitempty"`
	SimilarityType string   `json:"similarity_type,omitempty"`
	Sequence       *int     `json:"sequence,omitempty"`
}

// LabelStats 单个标签的统计
type LabelStats struct {
	Nodes         int64 `json:"nodes"`
	Relationships int64 `json:"relationships"`
}

// GraphStatistics 图统计
type GraphStatistics struct {
	TotalNodes         int64                 `json:"total_nodes"`
	TotalRelationships int64                 `json:"total_relationships"`
	ByLabel            map[string]LabelStats `json:"by_label"`
}
