package entity

import (
	"fmt"
	"strings"
)

// Segment 资产的子单元（如一个场景）
type Segment struct {
	Entity
	SegmentID          string   `json:"segment_id"`
	AssetID            string   `json:"asset_id"`
	SegmentType        string   `json:"segment_type"`
	SequenceNumber     int      `json:"sequence_number"`
	StartTime          float64  `json:"start_time"`
	EndTime            float64  `json:"end_time"`
	ConfidenceScore    float64  `json:"confidence_score"`
	DetectedObjects    []string `json:"detected_objects"`
	DetectedText       string   `json:"detected_text,omitempty"`
	ContentDescription string   `json:"content_description,omitempty"`
}

// NewSegment 创建片段
func NewSegment(segmentID, assetID string, sequence int) *Segment {
	return &Segment{
		Entity:          newEntity(EntityTypeSegment),
		SegmentID:       segmentID,
		AssetID:         assetID,
		SegmentType:     "scene",
		SequenceNumber:  sequence,
		DetectedObjects: []string{},
	}
}

// Validate 校验片段字段
func (s *Segment) Validate() error {
	if strings.TrimSpace(s.SegmentID) == "" {
		return fmt.Errorf("segment_id is required")
	}
	if strings.TrimSpace(s.AssetID) == "" {
		return fmt.Errorf("asset_id is required")
	}
	if s.SequenceNumber < 0 {
		return fmt.Errorf("sequence_number must be >= 0, got %d", s.SequenceNumber)
	}
	if s.EndTime < s.StartTime {
		return fmt.Errorf("end_time %.3f is before start_time %.3f", s.EndTime, s.StartTime)
	}
	if s.ConfidenceScore < 0 || s.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score must be within [0,1], got %v", s.ConfidenceScore)
	}
	return nil
}

// Duration 片段时长（秒）
func (s *Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}
