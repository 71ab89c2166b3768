package ingest

import (
	"time"

	"dataflux-query-api/internal/domain/entity"
)

// AssetIndexed asset.indexed 载荷
type AssetIndexed struct {
	AssetID          string         `json:"asset_id"`
	Filename         string         `json:"filename"`
	MimeType         string         `json:"mime_type"`
	FileSize         int64          `json:"file_size"`
	ProcessingStatus string         `json:"processing_status"`
	CollectionID     string         `json:"collection_id,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	Vector           []float32      `json:"vector,omitempty"`
}

func (e *AssetIndexed) toAsset() *entity.Asset {
	a := entity.NewAsset(e.AssetID, e.Filename, e.MimeType, e.FileSize)
	if e.ProcessingStatus != "" {
		a.ProcessingStatus = entity.ProcessingStatus(e.ProcessingStatus)
	}
	a.CollectionID = e.CollectionID
	if e.Tags != nil {
		a.Tags = e.Tags
	}
	if e.Metadata != nil {
		a.Metadata = e.Metadata
	}
	if !e.CreatedAt.IsZero() {
		a.CreatedAt = e.CreatedAt.UTC()
		a.UpdatedAt = a.CreatedAt
	}
	a.Vector = e.Vector
	return a
}

// SegmentDetected segment.detected 载荷
type SegmentDetected struct {
	SegmentID          string   `json:"segment_id"`
	AssetID            string   `json:"asset_id"`
	SegmentType        string   `json:"segment_type,omitempty"`
	SequenceNumber     int      `json:"sequence_number"`
	StartTime          float64  `json:"start_time"`
	EndTime            float64  `json:"end_time"`
	ConfidenceScore    float64  `json:"confidence_score"`
	DetectedObjects    []string `json:"detected_objects,omitempty"`
	DetectedText       string   `json:"detected_text,omitempty"`
	ContentDescription string   `json:"content_description,omitempty"`
}

func (e *SegmentDetected) toSegment() *entity.Segment {
	s := entity.NewSegment(e.SegmentID, e.AssetID, e.SequenceNumber)
	if e.SegmentType != "" {
		s.SegmentType = e.SegmentType
	}
	s.StartTime = e.StartTime
	s.EndTime = e.EndTime
	s.ConfidenceScore = e.ConfidenceScore
	if e.DetectedObjects != nil {
		s.DetectedObjects = e.DetectedObjects
	}
	s.DetectedText = e.DetectedText
	s.ContentDescription = e.ContentDescription
	return s
}

// SimilarityComputed similarity.computed 载荷
type SimilarityComputed struct {
	SourceAssetID   string  `json:"source_asset_id"`
	TargetAssetID   string  `json:"target_asset_id"`
	SimilarityScore float64 `json:"similarity_score"`
	SimilarityType  string  `json:"similarity_type,omitempty"`
	Symmetric       bool    `json:"symmetric,omitempty"`
}

// AssetDeleted asset.deleted 载荷
type AssetDeleted struct {
	AssetID string `json:"asset_id"`
}
