package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// 缓存键种类
const (
	kindSearch  = "search"
	kindSimilar = "similar"
)

// cacheKey 生成 <prefix>:<kind>:<sha256>
//
// v 必须是字段顺序固定的结构体，切片在归一化阶段已排序。
func cacheKey(prefix, kind string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	if prefix == "" {
		return kind + ":" + hex.EncodeToString(sum[:]), nil
	}
	return prefix + ":" + kind + ":" + hex.EncodeToString(sum[:]), nil
}
