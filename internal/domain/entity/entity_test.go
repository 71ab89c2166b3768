package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetValidate(t *testing.T) {
	a := NewAsset("a-1", "beach.mp4", "video/mp4", 1024)
	assert.NoError(t, a.Validate())
	assert.Equal(t, EntityTypeAsset, a.Type)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "video", a.MediaType())

	a.FileSize = -1
	assert.Error(t, a.Validate())

	a.FileSize = 0
	a.ProcessingStatus = "archived"
	assert.Error(t, a.Validate())
}

func TestSegmentValidate(t *testing.T) {
	s := NewSegment("s-1", "a-1", 0)
	s.StartTime, s.EndTime = 10, 12.5
	s.ConfidenceScore = 0.8
	assert.NoError(t, s.Validate())
	assert.InDelta(t, 2.5, s.Duration(), 1e-9)

	s.EndTime = 9
	assert.Error(t, s.Validate())

	s.EndTime = 12
	s.ConfidenceScore = 1.2
	assert.Error(t, s.Validate())
}

func TestValidateSimilarityScore(t *testing.T) {
	for _, ok := range []float64{0, 0.6, 1} {
		assert.NoError(t, ValidateSimilarityScore(ok))
	}
	for _, bad := range []float64{-0.01, 1.01, math.NaN()} {
		assert.Error(t, ValidateSimilarityScore(bad))
	}
}

func TestAssetHasTagIgnoresCase(t *testing.T) {
	a := NewAsset("a-1", "x.jpg", "image/jpeg", 1)
	a.Tags = []string{"Beach", "sunset"}
	assert.True(t, a.HasTag("beach"))
	assert.False(t, a.HasTag("city"))
}
