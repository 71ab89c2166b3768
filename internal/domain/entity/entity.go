// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// EntityType 实体类型
type EntityType string

const (
	EntityTypeAsset   EntityType = "asset"
	EntityTypeSegment EntityType = "segment"
)

// Entity 所有领域记录的公共字段
type Entity struct {
	ID        string     `json:"id"`
	Type      EntityType `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// newEntity 生成带 UUID 与时间戳的基础实体
func newEntity(t EntityType) Entity {
	now := time.Now().UTC()
	return Entity{
		ID:        uuid.NewString(),
		Type:      t,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
