package postgres

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"dataflux-query-api/internal/domain/entity"
)

// AssetModel assets 表
type AssetModel struct {
	ID               string         `gorm:"column:id;primaryKey;type:varchar(128)"`
	EntityID         string         `gorm:"column:entity_id;type:varchar(64)"`
	Filename         string         `gorm:"column:filename;not null"`
	MimeType         string         `gorm:"column:mime_type;index"`
	FileSize         int64          `gorm:"column:file_size"`
	FileHash         string         `gorm:"column:file_hash;index"`
	ProcessingStatus string         `gorm:"column:processing_status;index"`
	CollectionID     string         `gorm:"column:collection_id;index"`
	Tags             pq.StringArray `gorm:"column:tags;type:text[]"`
	Metadata         []byte         `gorm:"column:metadata;type:jsonb"`
	CreatedAt        time.Time      `gorm:"column:created_at;index"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

// TableName 表名
func (AssetModel) TableName() string {
	return "assets"
}

// SegmentModel segments 表
type SegmentModel struct {
	ID                 string         `gorm:"column:id;primaryKey;type:varchar(128)"`
	EntityID           string         `gorm:"column:entity_id;type:varchar(64)"`
	AssetID            string         `gorm:"column:asset_id;index;not null"`
	SegmentType        string         `gorm:"column:segment_type"`
	SequenceNumber     int            `gorm:"column:sequence_number"`
	StartTime          float64        `gorm:"column:start_time"`
	EndTime            float64        `gorm:"column:end_time"`
	ConfidenceScore    float64        `gorm:"column:confidence_score"`
	DetectedObjects    pq.StringArray `gorm:"column:detected_objects;type:text[]"`
	DetectedText       string         `gorm:"column:detected_text"`
	ContentDescription string         `gorm:"column:content_description"`
	CreatedAt          time.Time      `gorm:"column:created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

// TableName 表名
func (SegmentModel) TableName() string {
	return "segments"
}

func (m *AssetModel) toEntity() *entity.Asset {
	a := &entity.Asset{
		Entity: entity.Entity{
			ID:        m.EntityID,
			Type:      entity.EntityTypeAsset,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		AssetID:          m.ID,
		Filename:         m.Filename,
		MimeType:         m.MimeType,
		FileSize:         m.FileSize,
		ProcessingStatus: entity.ProcessingStatus(m.ProcessingStatus),
		CollectionID:     m.CollectionID,
		Tags:             []string(m.Tags),
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &a.Metadata)
	}
	return a
}

func assetModelFrom(a *entity.Asset) *AssetModel {
	m := &AssetModel{
		ID:               a.AssetID,
		EntityID:         a.ID,
		Filename:         a.Filename,
		MimeType:         a.MimeType,
		FileSize:         a.FileSize,
		ProcessingStatus: string(a.ProcessingStatus),
		CollectionID:     a.CollectionID,
		Tags:             pq.StringArray(a.Tags),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if len(a.Metadata) > 0 {
		m.Metadata, _ = json.Marshal(a.Metadata)
	}
	return m
}

func (m *SegmentModel) toEntity() *entity.Segment {
	s := &entity.Segment{
		Entity: entity.Entity{
			ID:        m.EntityID,
			Type:      entity.EntityTypeSegment,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		SegmentID:          m.ID,
		AssetID:            m.AssetID,
		SegmentType:        m.SegmentType,
		SequenceNumber:     m.SequenceNumber,
		StartTime:          m.StartTime,
		EndTime:            m.EndTime,
		ConfidenceScore:    m.ConfidenceScore,
		DetectedObjects:    []string(m.DetectedObjects),
		DetectedText:       m.DetectedText,
		ContentDescription: m.ContentDescription,
	}
	if s.DetectedObjects == nil {
		s.DetectedObjects = []string{}
	}
	return s
}

func segmentModelFrom(s *entity.Segment) *SegmentModel {
	return &SegmentModel{
		ID:                 s.SegmentID,
		EntityID:           s.ID,
		AssetID:            s.AssetID,
		SegmentType:        s.SegmentType,
		SequenceNumber:     s.SequenceNumber,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		ConfidenceScore:    s.ConfidenceScore,
		DetectedObjects:    pq.StringArray(s.DetectedObjects),
		DetectedText:       s.DetectedText,
		ContentDescription: s.ContentDescription,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}
